package bridge

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/opencode-ai/themesync/internal/host"
	"github.com/opencode-ai/themesync/internal/models"
	"github.com/stretchr/testify/require"
)

// fakeHost is a websocket client answering calls from a Memory host.
type fakeHost struct {
	conn    *websocket.Conn
	mem     *host.Memory
	writeMu sync.Mutex
	silent  atomic.Bool
}

func dialFakeHost(t *testing.T, server *httptest.Server, mem *host.Memory, caps []string) *fakeHost {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	f := &fakeHost{conn: conn, mem: mem}
	require.NoError(t, f.send(map[string]any{"event": EventHello, "capabilities": caps}))
	go f.loop()
	return f
}

func (f *fakeHost) send(v any) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	return f.conn.WriteJSON(v)
}

func (f *fakeHost) loop() {
	ctx := context.Background()
	for {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params map[string]string `json:"params"`
		}
		if err := f.conn.ReadJSON(&req); err != nil {
			return
		}
		if f.silent.Load() {
			continue
		}

		var result any
		var callErr error
		switch req.Method {
		case MethodProbe:
			result = f.mem.Indicators()
		case MethodRunCommand:
			result = f.mem.RunCommand(ctx, req.Params["id"])
		case MethodSetAppearance:
			callErr = f.mem.SetAppearance(ctx, req.Params["name"])
		case MethodSetConfig:
			callErr = f.mem.SetConfig(ctx, req.Params["key"], req.Params["value"])
		case MethodNotifyStyle:
			callErr = f.mem.NotifyStyleChange(ctx)
		case MethodForceMode:
			callErr = f.mem.ForceMode(ctx, models.Mode(req.Params["mode"]))
		case MethodInjectStyle:
			callErr = f.mem.InjectStyle(ctx, req.Params["id"], req.Params["css"])
		case MethodRemoveStyle:
			callErr = f.mem.RemoveStyle(ctx, req.Params["id"])
		default:
			callErr = &CallError{Message: "unknown method " + req.Method}
		}

		resp := map[string]any{"id": req.ID}
		switch {
		case callErr == host.ErrUnavailable:
			resp["error"] = CallError{Code: codeUnavailable, Message: callErr.Error()}
		case callErr != nil:
			resp["error"] = CallError{Message: callErr.Error()}
		default:
			raw, _ := json.Marshal(result)
			resp["result"] = json.RawMessage(raw)
		}
		if err := f.send(resp); err != nil {
			return
		}
	}
}

func startBridge(t *testing.T, timeout time.Duration) (*Host, *httptest.Server) {
	t.Helper()
	h := New(timeout)
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return h, server
}

func waitConnected(t *testing.T, h *Host) {
	t.Helper()
	require.Eventually(t, h.Connected, 2*time.Second, 5*time.Millisecond)
}

func TestNotConnected(t *testing.T) {
	h := New(0)
	ctx := context.Background()

	_, err := h.CurrentMode(ctx)
	require.ErrorIs(t, err, host.ErrNotConnected)
	require.ErrorIs(t, h.InjectStyle(ctx, "a", "b"), host.ErrNotConnected)
	require.False(t, h.RunCommand(ctx, "theme:use-dark"))
	require.False(t, h.Connected())
}

func TestCallsReachHost(t *testing.T) {
	h, server := startBridge(t, time.Second)
	mem := host.NewMemory(host.DefaultMemoryConfig(models.ModeLight))
	dialFakeHost(t, server, mem, []string{CapCommands, CapAppearance, CapConfig, CapForce})
	waitConnected(t, h)
	ctx := context.Background()

	require.Equal(t, []string{CapAppearance, CapCommands, CapConfig, CapForce}, h.Capabilities())

	mode, err := h.CurrentMode(ctx)
	require.NoError(t, err)
	require.Equal(t, models.ModeLight, mode)

	require.True(t, h.RunCommand(ctx, "theme:use-dark"))
	require.False(t, h.RunCommand(ctx, "theme:missing"))
	mode, err = h.CurrentMode(ctx)
	require.NoError(t, err)
	require.Equal(t, models.ModeDark, mode)

	require.NoError(t, h.SetAppearance(ctx, "moonstone"))
	require.Equal(t, models.ModeLight, mem.Mode())

	require.NoError(t, h.SetConfig(ctx, "baseTheme", "dark"))
	require.NoError(t, h.NotifyStyleChange(ctx))
	require.Equal(t, models.ModeDark, mem.Mode())

	require.NoError(t, h.ForceMode(ctx, models.ModeLight))
	require.Equal(t, models.ModeLight, mem.Mode())

	require.NoError(t, h.InjectStyle(ctx, "themesync-theme", "body{}"))
	css, ok := mem.Style("themesync-theme")
	require.True(t, ok)
	require.Equal(t, "body{}", css)
	require.NoError(t, h.RemoveStyle(ctx, "themesync-theme"))
	require.Empty(t, mem.StyleIDs())
}

func TestMissingCapabilityIsUnavailable(t *testing.T) {
	h, server := startBridge(t, time.Second)
	mem := host.NewMemory(host.DefaultMemoryConfig(models.ModeLight))
	dialFakeHost(t, server, mem, []string{CapCommands})
	waitConnected(t, h)
	ctx := context.Background()

	require.ErrorIs(t, h.SetAppearance(ctx, "obsidian"), host.ErrUnavailable)
	require.ErrorIs(t, h.SetConfig(ctx, "theme", "obsidian"), host.ErrUnavailable)
	require.ErrorIs(t, h.ForceMode(ctx, models.ModeDark), host.ErrUnavailable)
	require.Empty(t, mem.CallsTo("appearance"))
}

func TestHostReportedUnavailable(t *testing.T) {
	h, server := startBridge(t, time.Second)
	mem := host.NewMemory(host.MemoryConfig{Mode: models.ModeLight, ForceUnavailable: true})
	dialFakeHost(t, server, mem, []string{CapForce})
	waitConnected(t, h)

	require.ErrorIs(t, h.ForceMode(context.Background(), models.ModeDark), host.ErrUnavailable)
}

func TestCallTimeout(t *testing.T) {
	h, server := startBridge(t, 50*time.Millisecond)
	mem := host.NewMemory(host.DefaultMemoryConfig(models.ModeLight))
	f := dialFakeHost(t, server, mem, nil)
	f.silent.Store(true)
	waitConnected(t, h)

	_, err := h.CurrentMode(context.Background())
	require.ErrorIs(t, err, ErrCallTimeout)
}

func TestModeChangedEvent(t *testing.T) {
	h, server := startBridge(t, time.Second)
	mem := host.NewMemory(host.DefaultMemoryConfig(models.ModeLight))

	got := make(chan models.Mode, 1)
	h.OnModeChanged(func(ctx context.Context, mode models.Mode) {
		// Listeners may call back into the host.
		current, err := h.CurrentMode(ctx)
		if err == nil {
			got <- current
		}
	})

	f := dialFakeHost(t, server, mem, nil)
	waitConnected(t, h)

	mem.SetExternalMode(models.ModeDark)
	require.NoError(t, f.send(map[string]any{"event": EventModeChanged, "mode": "dark"}))

	select {
	case mode := <-got:
		require.Equal(t, models.ModeDark, mode)
	case <-time.After(2 * time.Second):
		t.Fatal("listener was not called")
	}
}

func TestDisconnectFailsCalls(t *testing.T) {
	h, server := startBridge(t, time.Second)
	mem := host.NewMemory(host.DefaultMemoryConfig(models.ModeLight))
	f := dialFakeHost(t, server, mem, nil)
	waitConnected(t, h)

	require.NoError(t, f.conn.Close())
	require.Eventually(t, func() bool { return !h.Connected() }, 2*time.Second, 5*time.Millisecond)

	_, err := h.CurrentMode(context.Background())
	require.ErrorIs(t, err, host.ErrNotConnected)
}

func TestOnConnectedRunsAfterHello(t *testing.T) {
	h, server := startBridge(t, time.Second)
	mem := host.NewMemory(host.DefaultMemoryConfig(models.ModeDark))

	got := make(chan models.Mode, 1)
	h.OnConnected(func(ctx context.Context) {
		mode, err := h.CurrentMode(ctx)
		if err == nil {
			got <- mode
		}
	})
	dialFakeHost(t, server, mem, []string{CapCommands})

	select {
	case mode := <-got:
		require.Equal(t, models.ModeDark, mode)
	case <-time.After(2 * time.Second):
		t.Fatal("connected callback was not called")
	}
}

func TestRepeatedHellosDoNotStallCalls(t *testing.T) {
	h, server := startBridge(t, time.Second)
	mem := host.NewMemory(host.DefaultMemoryConfig(models.ModeLight))

	var calls atomic.Int32
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	h.OnConnected(func(ctx context.Context) {
		calls.Add(1)
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	})

	f := dialFakeHost(t, server, mem, nil)
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("connected callback was not called")
	}

	// More hellos than the event queue holds, while the callback is busy.
	for i := 0; i < 40; i++ {
		require.NoError(t, f.send(map[string]any{"event": EventHello}))
	}

	mode, err := h.CurrentMode(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.ModeLight, mode)

	close(release)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	require.Never(t, func() bool { return calls.Load() > 2 }, 50*time.Millisecond, 5*time.Millisecond)
}
