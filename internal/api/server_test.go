package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opencode-ai/themesync/internal/appearance"
	"github.com/opencode-ai/themesync/internal/db"
	"github.com/opencode-ai/themesync/internal/host"
	"github.com/opencode-ai/themesync/internal/models"
	"github.com/opencode-ai/themesync/internal/modesync"
	"github.com/opencode-ai/themesync/internal/style"
	"github.com/opencode-ai/themesync/internal/themestore"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db     *db.DB
	host   *host.Memory
	store  *themestore.Store
	svc    *appearance.Service
	server *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	database, err := db.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	_, err = database.MigrateUp(ctx)
	require.NoError(t, err)

	h := host.NewMemory(host.DefaultMemoryConfig(models.ModeLight))
	opts := modesync.DefaultOptions()
	opts.CommandTimeout = 40 * time.Millisecond
	opts.APITimeout = 10 * time.Millisecond
	opts.ForceTimeout = 10 * time.Millisecond
	opts.PollInterval = 2 * time.Millisecond

	store := themestore.New(db.NewThemeRepository(database))
	eventRepo := db.NewEventRepository(database)
	svc := appearance.New(
		store,
		modesync.New(h, opts),
		style.NewApplier(h, h, style.EmbeddedSource{}),
		db.NewSettingsRepository(database),
		appearance.WithEvents(eventRepo),
		appearance.WithThemeLoader(store),
	)

	for _, theme := range []struct{ id, name, mode string }{
		{"night", "Night", "dark"},
		{"day", "Day", "light"},
	} {
		data := fmt.Sprintf(`{"id":%q,"name":%q,"mode":%q,"colors":{"c1":"#123456"},"assignments":{"TEXT":"var(--c1)"}}`,
			theme.id, theme.name, theme.mode)
		_, err := store.Import(ctx, []byte(data))
		require.NoError(t, err)
	}

	server := httptest.NewServer(NewServer(svc, store, WithEvents(eventRepo)).Handler())
	t.Cleanup(server.Close)
	return &testEnv{db: database, host: h, store: store, svc: svc, server: server}
}

func (e *testEnv) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	resp, err := http.Post(e.server.URL+path, "application/json", reader)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) delete(t *testing.T, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, e.server.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestSetActiveAndCSS(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/active", map[string]string{"id": "night"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[appearance.Result](t, resp)
	require.Equal(t, "night", res.ThemeID)
	require.True(t, res.Converged)
	require.True(t, res.Applied)
	require.Equal(t, models.ModeDark, env.host.Mode())

	resp = env.get(t, "/api/theme.css")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/css; charset=utf-8", resp.Header.Get("Content-Type"))
	css, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(css), "--text-normal: #123456;")
}

func TestClearSelection(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/api/active", map[string]string{"id": "night"})

	resp := env.post(t, "/api/active", map[string]any{"id": nil})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[appearance.Result](t, resp)
	require.Empty(t, res.ThemeID)
	require.False(t, res.Applied)
	require.Empty(t, env.svc.ActiveThemeID())
}

func TestCycleAndToggle(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/cycle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "day", decode[appearance.Result](t, resp).ThemeID)

	resp = env.post(t, "/api/cycle", CycleRequest{Direction: -1})
	require.Equal(t, "night", decode[appearance.Result](t, resp).ThemeID)

	resp = env.post(t, "/api/toggle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.False(t, decode[ToggleResponse](t, resp).Applied)

	resp = env.post(t, "/api/toggle", nil)
	require.True(t, decode[ToggleResponse](t, resp).Applied)
	require.Equal(t, "night", env.svc.ActiveThemeID())
}

func TestStatusAndThemes(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/api/active", map[string]string{"id": "day"})

	resp := env.get(t, "/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decode[StatusResponse](t, resp)
	require.Equal(t, "day", status.ActiveThemeID)
	require.True(t, status.Applied)
	require.Equal(t, 2, status.ThemeCount)
	require.False(t, status.HostConnected)

	resp = env.get(t, "/api/themes")
	themes := decode[[]models.Theme](t, resp)
	require.Len(t, themes, 2)
}

func TestEvents(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/api/active", map[string]string{"id": "night"})

	resp := env.get(t, "/api/events?type=" + string(models.EventTypeThemeActivated))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := decode[[]models.Event](t, resp)
	require.Len(t, events, 1)
	require.Equal(t, "night", events[0].EntityID)

	resp = env.get(t, "/api/events?limit=nope")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReloadBase(t *testing.T) {
	env := newTestEnv(t)
	resp := env.post(t, "/api/reload-base", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, ok := env.host.Style(style.BaseStyleID)
	require.True(t, ok)
}

func TestMethodAndBodyErrors(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/api/active")
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	require.Equal(t, http.MethodPost, resp.Header.Get("Allow"))

	resp, err := http.Post(env.server.URL+"/api/active", "application/json", bytes.NewBufferString("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRateLimitedRoutes(t *testing.T) {
	env := newTestEnv(t)
	limiter := NewRateLimiter(WithRouteLimits(map[string]RateLimitConfig{
		"/api/toggle": {RequestsPerSecond: 0.001, BurstSize: 1},
	}))
	limited := httptest.NewServer(NewServer(env.svc, env.store, WithRateLimiter(limiter)).Handler())
	t.Cleanup(limited.Close)

	post := func() *http.Response {
		resp, err := http.Post(limited.URL+"/api/toggle", "application/json", nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}
	require.Equal(t, http.StatusOK, post().StatusCode)
	denied := post()
	require.Equal(t, http.StatusTooManyRequests, denied.StatusCode)
	require.NotEmpty(t, denied.Header.Get("Retry-After"))

	resp, err := http.Get(limited.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	health := decode[struct {
		RateLimits []RouteStats `json:"rate_limits"`
	}](t, resp)
	require.NotEmpty(t, health.RateLimits)
}

func TestThemesEditedByAnotherProcess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.post(t, "/api/active", map[string]string{"id": "night"})

	// A CLI process edits the same database through its own store.
	outside := themestore.New(db.NewThemeRepository(env.db))
	require.NoError(t, outside.Load(ctx))
	_, err := outside.Create(ctx, "Fresh")
	require.NoError(t, err)
	_, err = outside.SetColor(ctx, "night", "c1", "#abcdef")
	require.NoError(t, err)

	resp := env.post(t, "/api/reload-themes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[appearance.Result](t, resp)
	require.Equal(t, "night", res.ThemeID)
	require.True(t, res.Applied)

	themes := decode[[]models.Theme](t, env.get(t, "/api/themes"))
	require.Len(t, themes, 3)
	css, err := io.ReadAll(env.get(t, "/api/theme.css").Body)
	require.NoError(t, err)
	require.Contains(t, string(css), "#abcdef")
}

func TestDeleteThemeRoute(t *testing.T) {
	env := newTestEnv(t)
	env.post(t, "/api/active", map[string]string{"id": "night"})

	resp := env.delete(t, "/api/themes/night")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Empty(t, env.svc.ActiveThemeID())
	_, ok := env.store.Get("night")
	require.False(t, ok)

	selected, err := db.NewSettingsRepository(env.db).ActiveThemeID(context.Background())
	require.NoError(t, err)
	require.Empty(t, selected)

	resp = env.post(t, "/api/toggle", nil)
	require.False(t, decode[ToggleResponse](t, resp).Applied)

	resp = env.delete(t, "/api/themes/night")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.get(t, "/api/themes/day")
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
