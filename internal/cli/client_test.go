package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/opencode-ai/themesync/internal/api"
	"github.com/opencode-ai/themesync/internal/db"
	"github.com/opencode-ai/themesync/internal/host"
	"github.com/opencode-ai/themesync/internal/models"
	"github.com/stretchr/testify/require"
)

// startDaemon serves the real API over an in-memory database and host.
func startDaemon(t *testing.T) (*daemonClient, *host.Memory) {
	t.Helper()
	return startDaemonOn(t, setupTestDB(t))
}

func startDaemonOn(t *testing.T, database *db.DB) (*daemonClient, *host.Memory) {
	t.Helper()
	ctx := context.Background()

	hc, err := simulatedHostConfig("default", "light")
	require.NoError(t, err)
	mem := host.NewMemory(hc)

	parts, err := buildComponents(ctx, database, mem)
	require.NoError(t, err)
	server := httptest.NewServer(api.NewServer(parts.svc, parts.store).Handler())
	t.Cleanup(server.Close)

	return newDaemonClient(server.URL+"/", 5*time.Second), mem
}

func TestDaemonClientRoundTrip(t *testing.T) {
	client, mem := startDaemon(t)
	ctx := context.Background()

	res, err := client.SetActive(ctx, "builtin-nord")
	require.NoError(t, err)
	require.True(t, res.Resolved)
	require.True(t, res.Converged)
	require.Equal(t, models.ModeDark, mem.Mode())

	status, err := client.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, "builtin-nord", status.ActiveThemeID)
	require.NotNil(t, status.LastSync)
	require.True(t, status.LastSync.Converged)

	css, err := client.CSS(ctx)
	require.NoError(t, err)
	require.Contains(t, css, "#2e3440")

	applied, err := client.Toggle(ctx)
	require.NoError(t, err)
	require.False(t, applied)

	require.NoError(t, client.ReloadBase(ctx))

	res, err = client.SetActive(ctx, "")
	require.NoError(t, err)
	require.Empty(t, res.ThemeID)
}

func TestDaemonClientCycle(t *testing.T) {
	client, _ := startDaemon(t)
	ctx := context.Background()

	first, err := client.Cycle(ctx, 1)
	require.NoError(t, err)
	require.NotEmpty(t, first.ThemeID)

	second, err := client.Cycle(ctx, 1)
	require.NoError(t, err)
	require.NotEqual(t, first.ThemeID, second.ThemeID)

	back, err := client.Cycle(ctx, -1)
	require.NoError(t, err)
	require.Equal(t, first.ThemeID, back.ThemeID)
}

func TestDaemonClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "theme not found", http.StatusNotFound)
	}))
	client := newDaemonClient(server.URL, time.Second)

	_, err := client.SetActive(context.Background(), "missing")
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "404"), err.Error())
	require.Contains(t, err.Error(), "theme not found")

	server.Close()
	_, err = client.Status(context.Background())
	require.ErrorIs(t, err, ErrDaemonUnreachable)
}

func TestDaemonURL(t *testing.T) {
	original := serverURL
	t.Cleanup(func() { serverURL = original })

	serverURL = "http://example.test:9000/"
	require.Equal(t, "http://example.test:9000", daemonURL())

	serverURL = ""
	t.Setenv("THEMESYNC_SERVER", "http://env.test/")
	require.Equal(t, "http://env.test", daemonURL())

	t.Setenv("THEMESYNC_SERVER", "")
	require.Equal(t, "http://"+GetConfig().Server.Listen, daemonURL())
}
