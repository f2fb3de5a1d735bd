// Package events provides helper functions for logging appearance events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opencode-ai/themesync/internal/models"
)

// Repository is the minimal interface needed to write events.
type Repository interface {
	Create(ctx context.Context, event *models.Event) error
}

// HostEntityID is the entity id used for host-scoped events.
const HostEntityID = "host"

// LogThemeActivated records a change of the active selection.
func LogThemeActivated(ctx context.Context, repo Repository, themeID, previousID string, mode models.Mode, converged bool) error {
	entityID := themeID
	if entityID == "" {
		entityID = "none"
	}
	return write(ctx, repo, models.EventTypeThemeActivated, models.EntityTypeTheme, entityID, models.ThemeActivatedPayload{
		PreviousID: previousID,
		Mode:       mode,
		Converged:  converged,
	})
}

// LogThemeChanged records a theme lifecycle event (created, imported, deleted).
func LogThemeChanged(ctx context.Context, repo Repository, eventType models.EventType, themeID string) error {
	if themeID == "" {
		return fmt.Errorf("theme id is required")
	}
	return write(ctx, repo, eventType, models.EntityTypeTheme, themeID, nil)
}

// LogStyling records a theme block being applied or removed.
func LogStyling(ctx context.Context, repo Repository, applied bool, themeID string) error {
	eventType := models.EventTypeThemeRemoved
	if applied {
		eventType = models.EventTypeThemeApplied
	}
	if themeID == "" {
		themeID = "none"
	}
	return write(ctx, repo, eventType, models.EntityTypeTheme, themeID, nil)
}

// LogModeSync records the outcome of a mode synchronization.
func LogModeSync(ctx context.Context, repo Repository, target models.Mode, layers []string, took time.Duration, converged bool) error {
	eventType := models.EventTypeModeSynced
	if !converged {
		eventType = models.EventTypeModeSyncFailed
	}
	if layers == nil {
		layers = []string{}
	}
	return write(ctx, repo, eventType, models.EntityTypeHost, HostEntityID, models.ModeSyncPayload{
		Target:   target,
		Layers:   layers,
		Duration: took.String(),
	})
}

// LogModeChanged records an external host mode change.
func LogModeChanged(ctx context.Context, repo Repository, mode models.Mode) error {
	return write(ctx, repo, models.EventTypeModeChanged, models.EntityTypeHost, HostEntityID, map[string]models.Mode{"mode": mode})
}

// LogError records a non-fatal failure.
func LogError(ctx context.Context, repo Repository, where string, cause error) error {
	if cause == nil {
		return nil
	}
	return write(ctx, repo, models.EventTypeError, models.EntityTypeSystem, "themesync", models.ErrorPayload{
		Error:   cause.Error(),
		Context: where,
	})
}

func write(ctx context.Context, repo Repository, eventType models.EventType, entityType models.EntityType, entityID string, payload any) error {
	if repo == nil {
		return fmt.Errorf("event repository is required")
	}

	event := &models.Event{
		Type:       eventType,
		EntityType: entityType,
		EntityID:   entityID,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
		}
		event.Payload = data
	}

	return repo.Create(ctx, event)
}
