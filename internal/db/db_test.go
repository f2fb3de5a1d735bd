package db

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/opencode-ai/themesync/internal/models"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	_, err = database.MigrateUp(context.Background())
	require.NoError(t, err)
	return database
}

func sampleTheme(id, name string) *models.Theme {
	return &models.Theme{
		ID:          id,
		Name:        name,
		Description: "sample",
		Mode:        models.ModeDark,
		Colors: []models.Color{
			{Name: "bg", Value: "#101010"},
			{Name: "fg", Value: "#eeeeee"},
		},
		Assignments: map[models.SemanticVar]string{
			models.VarBackgroundPrimary: "var(--bg)",
			models.VarText:              "var(--fg)",
		},
	}
}

func TestMigrateUpIdempotent(t *testing.T) {
	ctx := context.Background()
	database, err := OpenInMemory()
	require.NoError(t, err)
	defer database.Close()

	applied, err := database.MigrateUp(ctx)
	require.NoError(t, err)
	require.Equal(t, len(migrations), applied)

	applied, err = database.MigrateUp(ctx)
	require.NoError(t, err)
	require.Zero(t, applied)

	version, err := database.SchemaVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, migrations[len(migrations)-1].version, version)
}

func TestOpenFileDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "themesync.db")

	database, err := Open(path)
	require.NoError(t, err)
	_, err = database.MigrateUp(ctx)
	require.NoError(t, err)
	require.NoError(t, NewThemeRepository(database).Save(ctx, sampleTheme("a", "Alpha")))
	require.NoError(t, database.Close())

	database, err = Open(path)
	require.NoError(t, err)
	defer database.Close()
	require.Equal(t, path, database.Path())

	theme, err := NewThemeRepository(database).Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "Alpha", theme.Name)
}

func TestThemeRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewThemeRepository(openTestDB(t))

	theme := sampleTheme("t1", "Night")
	theme.BuiltIn = true
	require.NoError(t, repo.Save(ctx, theme))
	require.False(t, theme.CreatedAt.IsZero())

	got, err := repo.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, theme.Name, got.Name)
	require.Equal(t, theme.Mode, got.Mode)
	require.True(t, got.BuiltIn)
	require.Equal(t, theme.Colors, got.Colors)
	require.Equal(t, theme.Assignments, got.Assignments)
	require.WithinDuration(t, theme.CreatedAt, got.CreatedAt, time.Millisecond)

	theme.Name = "Midnight"
	theme.UpdatedAt = time.Now().UTC()
	require.NoError(t, repo.Save(ctx, theme))
	got, err = repo.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, "Midnight", got.Name)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestThemeRepositoryListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewThemeRepository(openTestDB(t))

	require.NoError(t, repo.Save(ctx, sampleTheme("b", "Beta")))
	require.NoError(t, repo.Save(ctx, sampleTheme("a", "Alpha")))

	themes, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, themes, 2)
	require.Equal(t, "Alpha", themes[0].Name)

	require.NoError(t, repo.Delete(ctx, "a"))
	require.ErrorIs(t, repo.Delete(ctx, "a"), ErrThemeNotFound)

	_, err = repo.Get(ctx, "a")
	require.ErrorIs(t, err, ErrThemeNotFound)
}

func TestThemeRepositorySaveAll(t *testing.T) {
	ctx := context.Background()
	repo := NewThemeRepository(openTestDB(t))

	require.NoError(t, repo.Save(ctx, sampleTheme("old", "Old")))
	require.NoError(t, repo.SaveAll(ctx, []*models.Theme{sampleTheme("new", "New")}))

	themes, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, themes, 1)
	require.Equal(t, "new", themes[0].ID)
}

func TestSettingsDefaultsWhenEmpty(t *testing.T) {
	repo := NewSettingsRepository(openTestDB(t))

	settings, err := repo.LoadSettings(context.Background())
	require.NoError(t, err)
	require.Nil(t, settings.ActiveThemeID)
	require.Equal(t, 1.0, settings.Window.Opacity)
	require.NotNil(t, settings.Themes)
	require.Empty(t, settings.Themes)
}

func TestSettingsShallowMerge(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	repo := NewSettingsRepository(database)

	// A stored window blob missing the opacity field keeps the default.
	_, err := database.ExecContext(ctx,
		`INSERT INTO settings (key, value_json, updated_at) VALUES (?, ?, ?)`,
		SettingWindow, `{"always_on_top":true,"unknown":42}`, "2026-01-01T00:00:00Z")
	require.NoError(t, err)

	settings, err := repo.LoadSettings(ctx)
	require.NoError(t, err)
	require.True(t, settings.Window.AlwaysOnTop)
	require.Equal(t, 1.0, settings.Window.Opacity)
}

func TestSettingsKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(openTestDB(t))

	id := "t1"
	require.NoError(t, repo.Set(ctx, SettingWindow, models.WindowPrefs{Opacity: 0.8, Vibrancy: true}))
	require.NoError(t, repo.SaveActiveThemeID(ctx, &id))

	settings, err := repo.LoadSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, "t1", settings.ActiveID())
	require.Equal(t, 0.8, settings.Window.Opacity)
	require.True(t, settings.Window.Vibrancy)

	require.NoError(t, repo.SaveActiveThemeID(ctx, nil))
	active, err := repo.ActiveThemeID(ctx)
	require.NoError(t, err)
	require.Empty(t, active)

	settings, err = repo.LoadSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, 0.8, settings.Window.Opacity)
}

func TestSaveSettingsWithThemes(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(openTestDB(t))

	id := "a"
	in := models.DefaultSettings()
	in.ActiveThemeID = &id
	in.Themes = []*models.Theme{sampleTheme("a", "Alpha"), sampleTheme("b", "Beta")}
	require.NoError(t, repo.SaveSettings(ctx, in))

	out, err := repo.LoadSettings(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", out.ActiveID())
	require.Len(t, out.Themes, 2)

	// Nil themes leave the stored set alone.
	in.Themes = nil
	require.NoError(t, repo.SaveSettings(ctx, in))
	out, err = repo.LoadSettings(ctx)
	require.NoError(t, err)
	require.Len(t, out.Themes, 2)
}

func TestEventRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepository(openTestDB(t))

	payload, err := json.Marshal(models.ThemeActivatedPayload{Mode: models.ModeDark, Converged: true})
	require.NoError(t, err)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "a"} {
		require.NoError(t, repo.Create(ctx, &models.Event{
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			Type:       models.EventTypeThemeActivated,
			EntityType: models.EntityTypeTheme,
			EntityID:   id,
			Payload:    payload,
			Metadata:   map[string]string{"source": "test"},
		}))
	}

	events, err := repo.List(ctx, EventQuery{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.True(t, events[0].Timestamp.After(events[1].Timestamp))
	require.Equal(t, "test", events[0].Metadata["source"])
	require.JSONEq(t, string(payload), string(events[0].Payload))

	since := base.Add(time.Second)
	events, err = repo.List(ctx, EventQuery{Since: &since, Ascending: true})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "b", events[0].EntityID)

	entityID := "a"
	events, err = repo.List(ctx, EventQuery{EntityID: &entityID})
	require.NoError(t, err)
	require.Len(t, events, 2)

	got, err := repo.Get(ctx, events[0].ID)
	require.NoError(t, err)
	require.Equal(t, events[0].ID, got.ID)

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrEventNotFound)

	pruned, err := repo.Prune(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, pruned)
}

func TestEventRepositoryRejectsInvalid(t *testing.T) {
	repo := NewEventRepository(openTestDB(t))
	err := repo.Create(context.Background(), &models.Event{Type: models.EventTypeError})
	require.ErrorIs(t, err, ErrInvalidEvent)
}
