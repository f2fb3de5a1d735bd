// Package bridge connects a live host application over a websocket.
//
// The host dials the daemon's /host endpoint, announces its capabilities
// with a hello event and then answers calls. Calls and responses are JSON
// frames correlated by id:
//
//	{"id":1,"method":"probe"}
//	{"id":1,"result":{"classes":["app","theme-dark"]}}
//
// Host-initiated frames carry an "event" field instead of an id.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/opencode-ai/themesync/internal/host"
	"github.com/opencode-ai/themesync/internal/logging"
	"github.com/opencode-ai/themesync/internal/models"
	"github.com/rs/zerolog"
)

// Capability names announced in the hello event.
const (
	CapCommands   = "commands"
	CapAppearance = "appearance"
	CapConfig     = "config"
	CapForce      = "force"
)

// Event names sent by the host.
const (
	EventHello       = "hello"
	EventModeChanged = "mode-changed"
)

// Methods called on the host.
const (
	MethodProbe         = "probe"
	MethodRunCommand    = "run-command"
	MethodSetAppearance = "set-appearance"
	MethodSetConfig     = "set-config"
	MethodNotifyStyle   = "notify-style-change"
	MethodForceMode     = "force-mode"
	MethodInjectStyle   = "inject-style"
	MethodRemoveStyle   = "remove-style"
)

// DefaultCallTimeout bounds a call when none is configured.
const DefaultCallTimeout = 3 * time.Second

// codeUnavailable is the error code a host uses for a missing capability.
const codeUnavailable = "unavailable"

// ErrCallTimeout reports a call that got no response in time.
var ErrCallTimeout = errors.New("host call timed out")

// CallError is an error returned by the host.
type CallError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (e *CallError) Error() string {
	if e.Code == "" {
		return "host: " + e.Message
	}
	return fmt.Sprintf("host: %s: %s", e.Code, e.Message)
}

type request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// frame is any message read from the host.
type frame struct {
	ID           uint64          `json:"id,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        *CallError      `json:"error,omitempty"`
	Event        string          `json:"event,omitempty"`
	Capabilities []string        `json:"capabilities,omitempty"`
	Mode         string          `json:"mode,omitempty"`
}

type response struct {
	result json.RawMessage
	err    error
}

// session is one live websocket connection.
type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	caps    map[string]bool
	done    chan struct{}
}

func (s *session) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// Host is a host.Host backed by a websocket connection. Only one host is
// attached at a time; a new connection replaces the old one.
type Host struct {
	timeout  time.Duration
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu          sync.Mutex
	session     *session
	pending     map[uint64]chan response
	nextID      uint64
	listeners   []func(context.Context, models.Mode)
	onConnected []func(context.Context)
}

// hostEvent is queued for the per-connection listener worker.
type hostEvent struct {
	name string
	mode models.Mode
}

var (
	_ host.Host    = (*Host)(nil)
	_ http.Handler = (*Host)(nil)
)

// New creates a bridge. A non-positive timeout uses DefaultCallTimeout.
func New(timeout time.Duration) *Host {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Host{
		timeout: timeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logging.Component("bridge"),
		pending: make(map[uint64]chan response),
	}
}

// OnModeChanged registers fn for mode-changed events. Listeners run on a
// per-connection worker, one event at a time, so they may call back into
// the host.
func (h *Host) OnModeChanged(fn func(ctx context.Context, mode models.Mode)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// OnConnected registers fn to run after each host hello, on the same
// worker as mode-changed listeners.
func (h *Host) OnConnected(fn func(ctx context.Context)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onConnected = append(h.onConnected, fn)
}

// Connected reports whether a host has completed its hello.
func (h *Host) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session != nil && h.session.caps != nil
}

// Capabilities returns the announced capabilities in sorted order.
func (h *Host) Capabilities() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session == nil {
		return nil
	}
	caps := make([]string, 0, len(h.session.caps))
	for c := range h.session.caps {
		caps = append(caps, c)
	}
	sort.Strings(caps)
	return caps
}

// ServeHTTP upgrades the request and serves the host until it disconnects.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	s := &session{conn: conn, done: make(chan struct{})}

	h.mu.Lock()
	previous := h.session
	h.session = s
	h.mu.Unlock()
	if previous != nil {
		h.logger.Info().Msg("replacing connected host")
		_ = previous.conn.Close()
	}

	h.logger.Info().Str("remote", r.RemoteAddr).Msg("host connected")
	h.serve(r.Context(), s)
	h.logger.Info().Str("remote", r.RemoteAddr).Msg("host disconnected")
}

func (h *Host) serve(ctx context.Context, s *session) {
	events := make(chan hostEvent, 16)
	// At most one hello waits; later ones fold into it.
	hellos := make(chan struct{}, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-hellos:
				h.dispatch(ctx, hostEvent{name: EventHello})
			case ev, ok := <-events:
				if !ok {
					return
				}
				h.dispatch(ctx, ev)
			}
		}
	}()

	defer func() {
		close(events)
		close(s.done)
		_ = s.conn.Close()
		h.detach(s)
		wg.Wait()
	}()

	for {
		var f frame
		if err := s.conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug().Err(err).Msg("read failed")
			}
			return
		}

		switch {
		case f.Event == EventHello:
			caps := make(map[string]bool, len(f.Capabilities))
			for _, c := range f.Capabilities {
				caps[c] = true
			}
			h.mu.Lock()
			s.caps = caps
			h.mu.Unlock()
			h.logger.Info().Strs("capabilities", f.Capabilities).Msg("host hello")
			select {
			case hellos <- struct{}{}:
			default:
				h.logger.Debug().Msg("hello already queued")
			}
		case f.Event == EventModeChanged:
			mode, _ := models.ParseMode(f.Mode)
			select {
			case events <- hostEvent{name: EventModeChanged, mode: mode}:
			default:
				h.logger.Warn().Msg("dropping mode-changed event; listener busy")
			}
		case f.Event != "":
			h.logger.Debug().Str("event", f.Event).Msg("ignoring unknown event")
		default:
			h.resolve(f)
		}
	}
}

func (h *Host) dispatch(ctx context.Context, ev hostEvent) {
	h.mu.Lock()
	listeners := append([]func(context.Context, models.Mode){}, h.listeners...)
	connected := append([]func(context.Context){}, h.onConnected...)
	h.mu.Unlock()

	if ev.name == EventHello {
		for _, fn := range connected {
			fn(ctx)
		}
		return
	}
	for _, fn := range listeners {
		fn(ctx, ev.mode)
	}
}

func (h *Host) resolve(f frame) {
	h.mu.Lock()
	ch, ok := h.pending[f.ID]
	delete(h.pending, f.ID)
	h.mu.Unlock()
	if !ok {
		h.logger.Debug().Uint64("id", f.ID).Msg("response for unknown call")
		return
	}

	resp := response{result: f.Result}
	if f.Error != nil {
		if f.Error.Code == codeUnavailable {
			resp.err = host.ErrUnavailable
		} else {
			resp.err = f.Error
		}
	}
	ch <- resp
}

func (h *Host) detach(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.session == s {
		h.session = nil
	}
}

// call sends method and decodes the result into out (when non-nil). A
// non-empty capability must have been announced.
func (h *Host) call(ctx context.Context, capability, method string, params, out any) error {
	h.mu.Lock()
	s := h.session
	if s == nil {
		h.mu.Unlock()
		return host.ErrNotConnected
	}
	if capability != "" && !s.caps[capability] {
		h.mu.Unlock()
		return host.ErrUnavailable
	}
	h.nextID++
	id := h.nextID
	ch := make(chan response, 1)
	h.pending[id] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.pending, id)
		h.mu.Unlock()
	}()

	if err := s.writeJSON(request{ID: id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if resp.err != nil {
			return resp.err
		}
		if out != nil && len(resp.result) > 0 {
			if err := json.Unmarshal(resp.result, out); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%s: %w", method, ErrCallTimeout)
	case <-s.done:
		return host.ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CurrentMode implements host.ModeProbe.
func (h *Host) CurrentMode(ctx context.Context) (models.Mode, error) {
	var ind host.Indicators
	if err := h.call(ctx, "", MethodProbe, nil, &ind); err != nil {
		return "", err
	}
	return host.DeriveMode(ind)
}

// RunCommand implements host.CommandRunner.
func (h *Host) RunCommand(ctx context.Context, id string) bool {
	var ok bool
	if err := h.call(ctx, CapCommands, MethodRunCommand, map[string]string{"id": id}, &ok); err != nil {
		if !errors.Is(err, host.ErrUnavailable) {
			h.logger.Debug().Err(err).Str("command", id).Msg("command failed")
		}
		return false
	}
	return ok
}

// SetAppearance implements host.AppearanceSetter.
func (h *Host) SetAppearance(ctx context.Context, name string) error {
	return h.call(ctx, CapAppearance, MethodSetAppearance, map[string]string{"name": name}, nil)
}

// SetConfig implements host.ConfigSetter.
func (h *Host) SetConfig(ctx context.Context, key, value string) error {
	return h.call(ctx, CapConfig, MethodSetConfig, map[string]string{"key": key, "value": value}, nil)
}

// NotifyStyleChange implements host.ConfigSetter.
func (h *Host) NotifyStyleChange(ctx context.Context) error {
	return h.call(ctx, CapConfig, MethodNotifyStyle, nil, nil)
}

// ForceMode implements host.ModeActuator.
func (h *Host) ForceMode(ctx context.Context, mode models.Mode) error {
	return h.call(ctx, CapForce, MethodForceMode, map[string]string{"mode": string(mode)}, nil)
}

// InjectStyle implements host.StyleSurface.
func (h *Host) InjectStyle(ctx context.Context, id, css string) error {
	return h.call(ctx, "", MethodInjectStyle, map[string]string{"id": id, "css": css}, nil)
}

// RemoveStyle implements host.StyleSurface.
func (h *Host) RemoveStyle(ctx context.Context, id string) error {
	return h.call(ctx, "", MethodRemoveStyle, map[string]string{"id": id}, nil)
}
