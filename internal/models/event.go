package models

import (
	"encoding/json"
	"strings"
	"time"
)

// EventType categorizes events in the system.
type EventType string

const (
	// Theme events
	EventTypeThemeCreated   EventType = "theme.created"
	EventTypeThemeImported  EventType = "theme.imported"
	EventTypeThemeDeleted   EventType = "theme.deleted"
	EventTypeThemeActivated EventType = "theme.activated"
	EventTypeThemeApplied   EventType = "theme.applied"
	EventTypeThemeRemoved   EventType = "theme.removed"

	// Mode events
	EventTypeModeSynced     EventType = "mode.synced"
	EventTypeModeSyncFailed EventType = "mode.sync_failed"
	EventTypeModeChanged    EventType = "mode.changed"

	// System events
	EventTypeError   EventType = "error"
	EventTypeWarning EventType = "warning"
)

// EntityType identifies the type of entity an event relates to.
type EntityType string

const (
	EntityTypeTheme  EntityType = "theme"
	EntityTypeHost   EntityType = "host"
	EntityTypeSystem EntityType = "system"
)

// Event represents an append-only log entry.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// EntityType identifies what kind of entity this event relates to.
	EntityType EntityType `json:"entity_type"`

	// EntityID is the ID of the related entity.
	EntityID string `json:"entity_id"`

	// Payload contains event-specific data.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Metadata contains additional context.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks if the event is valid.
func (e *Event) Validate() error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(string(e.Type)) == "" {
		validation.AddMessage("type", "event type is required")
	}
	if strings.TrimSpace(string(e.EntityType)) == "" {
		validation.AddMessage("entity_type", "entity_type is required")
	}
	if strings.TrimSpace(e.EntityID) == "" {
		validation.AddMessage("entity_id", "entity_id is required")
	}
	return validation.Err()
}

// ThemeActivatedPayload is the payload for theme.activated events.
type ThemeActivatedPayload struct {
	PreviousID string `json:"previous_id,omitempty"`
	Mode       Mode   `json:"mode,omitempty"`
	Converged  bool   `json:"converged"`
}

// ModeSyncPayload is the payload for mode.synced and mode.sync_failed events.
type ModeSyncPayload struct {
	Target   Mode     `json:"target"`
	Layers   []string `json:"layers"`
	Duration string   `json:"duration"`
}

// ErrorPayload is the payload for error events.
type ErrorPayload struct {
	Error   string `json:"error"`
	Context string `json:"context,omitempty"`
}
