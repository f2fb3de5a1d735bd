package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opencode-ai/themesync/internal/models"
)

// Settings keys.
const (
	SettingActiveThemeID = "active_theme_id"
	SettingWindow        = "window"
)

// ErrSettingNotFound is returned when a key has never been written.
var ErrSettingNotFound = errors.New("setting not found")

// SettingsRepository stores the settings blob as independent keys so a
// write to one key never touches the others.
type SettingsRepository struct {
	db     *DB
	themes *ThemeRepository
}

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db, themes: NewThemeRepository(db)}
}

// Get decodes the value stored under key into out.
func (r *SettingsRepository) Get(ctx context.Context, key string, out any) error {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT value_json FROM settings WHERE key = ?`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSettingNotFound
		}
		return fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("failed to decode setting %s: %w", key, err)
	}
	return nil
}

// Set encodes value and stores it under key.
func (r *SettingsRepository) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode setting %s: %w", key, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at
	`, key, string(data), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// LoadSettings assembles the settings blob. Missing keys keep their
// defaults, and missing fields inside a stored key keep theirs.
func (r *SettingsRepository) LoadSettings(ctx context.Context) (models.Settings, error) {
	settings := models.DefaultSettings()

	var active *string
	switch err := r.Get(ctx, SettingActiveThemeID, &active); {
	case err == nil:
		settings.ActiveThemeID = active
	case !errors.Is(err, ErrSettingNotFound):
		return settings, err
	}

	window := settings.Window
	switch err := r.Get(ctx, SettingWindow, &window); {
	case err == nil:
		settings.Window = window
	case !errors.Is(err, ErrSettingNotFound):
		return settings, err
	}

	themes, err := r.themes.List(ctx)
	if err != nil {
		return settings, err
	}
	if themes != nil {
		settings.Themes = themes
	}
	return settings, nil
}

// SaveSettings writes the selection, window preferences and, when non-nil,
// the full theme set.
func (r *SettingsRepository) SaveSettings(ctx context.Context, settings models.Settings) error {
	if err := r.SaveActiveThemeID(ctx, settings.ActiveThemeID); err != nil {
		return err
	}
	if err := r.Set(ctx, SettingWindow, settings.Window); err != nil {
		return err
	}
	if settings.Themes == nil {
		return nil
	}
	return r.themes.SaveAll(ctx, settings.Themes)
}

// SaveActiveThemeID persists the active selection. Nil clears it.
func (r *SettingsRepository) SaveActiveThemeID(ctx context.Context, id *string) error {
	return r.Set(ctx, SettingActiveThemeID, id)
}

// ActiveThemeID returns the persisted selection or "".
func (r *SettingsRepository) ActiveThemeID(ctx context.Context) (string, error) {
	var active *string
	if err := r.Get(ctx, SettingActiveThemeID, &active); err != nil {
		if errors.Is(err, ErrSettingNotFound) {
			return "", nil
		}
		return "", err
	}
	if active == nil {
		return "", nil
	}
	return *active, nil
}
