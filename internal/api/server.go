// Package api exposes the appearance service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/opencode-ai/themesync/internal/appearance"
	"github.com/opencode-ai/themesync/internal/db"
	"github.com/opencode-ai/themesync/internal/logging"
	"github.com/opencode-ai/themesync/internal/models"
	"github.com/opencode-ai/themesync/internal/themestore"
	"github.com/rs/zerolog"
)

// Appearance is the part of the appearance service the API drives.
type Appearance interface {
	SetActiveTheme(ctx context.Context, id string) (appearance.Result, error)
	CycleTheme(ctx context.Context, direction int) (appearance.Result, error)
	ToggleTheme(ctx context.Context) (bool, error)
	ReloadBaseStyles(ctx context.Context) error
	ReloadThemes(ctx context.Context) (appearance.Result, error)
	DeleteTheme(ctx context.Context, id string) error
	Status() appearance.Status
	CSS() string
}

// ThemeLister lists stored themes.
type ThemeLister interface {
	List() []*models.Theme
}

// EventLister lists recorded events.
type EventLister interface {
	List(ctx context.Context, q db.EventQuery) ([]*models.Event, error)
}

// ActiveRequest is the body of POST /api/active. A null or empty id clears
// the selection.
type ActiveRequest struct {
	ID *string `json:"id"`
}

// CycleRequest is the body of POST /api/cycle.
type CycleRequest struct {
	Direction int `json:"direction"`
}

// ToggleResponse is returned by POST /api/toggle.
type ToggleResponse struct {
	Applied bool `json:"applied"`
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	appearance.Status
	HostConnected bool     `json:"host_connected"`
	Capabilities  []string `json:"capabilities,omitempty"`
}

// HostInfo describes the attached host, when there is one.
type HostInfo interface {
	Connected() bool
	Capabilities() []string
}

// Server serves the HTTP API.
type Server struct {
	service Appearance
	themes  ThemeLister
	events  EventLister
	host    http.Handler
	info    HostInfo
	limiter *RateLimiter
	logger  zerolog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithEvents enables GET /api/events.
func WithEvents(events EventLister) Option {
	return func(s *Server) { s.events = events }
}

// WithHost mounts the host bridge at /host.
func WithHost(handler http.Handler, info HostInfo) Option {
	return func(s *Server) {
		s.host = handler
		s.info = info
	}
}

// WithRateLimiter throttles the routes rl has limits for.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(s *Server) { s.limiter = rl }
}

// NewServer creates a Server.
func NewServer(service Appearance, themes ThemeLister, opts ...Option) *Server {
	s := &Server{
		service: service,
		themes:  themes,
		logger:  logging.Component("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds the routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/theme.css", s.handleThemeCSS)
	mux.HandleFunc("/api/themes", s.handleThemes)
	mux.HandleFunc("/api/themes/{id}", s.handleTheme)
	mux.HandleFunc("/api/reload-themes", s.handleReloadThemes)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/active", s.handleActive)
	mux.HandleFunc("/api/cycle", s.handleCycle)
	mux.HandleFunc("/api/toggle", s.handleToggle)
	mux.HandleFunc("/api/reload-base", s.handleReloadBase)
	if s.events != nil {
		mux.HandleFunc("/api/events", s.handleEvents)
	}
	if s.host != nil {
		mux.Handle("/host", s.host)
	}
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	if s.limiter != nil {
		return s.limiter.Middleware(mux)
	}
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	if s.limiter != nil {
		body["rate_limits"] = s.limiter.Stats()
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleThemeCSS(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(s.service.CSS()))
}

func (s *Server) handleThemes(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.themes.List())
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodDelete) {
		return
	}
	id := r.PathValue("id")
	if err := s.service.DeleteTheme(r.Context(), id); err != nil {
		if errors.Is(err, themestore.ErrThemeNotFound) {
			http.Error(w, "theme not found", http.StatusNotFound)
			return
		}
		s.logger.Error().Err(err).Str("theme", id).Msg("delete theme failed")
		http.Error(w, "failed to delete theme", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReloadThemes(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	res, err := s.service.ReloadThemes(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("reload themes failed")
		http.Error(w, "failed to reload themes", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	resp := StatusResponse{Status: s.service.Status()}
	if s.info != nil {
		resp.HostConnected = s.info.Connected()
		resp.Capabilities = s.info.Capabilities()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req ActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	id := ""
	if req.ID != nil {
		id = *req.ID
	}

	res, err := s.service.SetActiveTheme(r.Context(), id)
	if err != nil {
		s.logger.Error().Err(err).Str("theme", id).Msg("set active theme failed")
		http.Error(w, "failed to persist selection", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	req := CycleRequest{Direction: 1}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}

	res, err := s.service.CycleTheme(r.Context(), req.Direction)
	if err != nil {
		s.logger.Error().Err(err).Msg("cycle theme failed")
		http.Error(w, "failed to persist selection", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	applied, err := s.service.ToggleTheme(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("toggle theme failed")
		http.Error(w, "failed to toggle theme", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, ToggleResponse{Applied: applied})
}

func (s *Server) handleReloadBase(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if err := s.service.ReloadBaseStyles(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("reload base styles failed")
		http.Error(w, "failed to reload base styles", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	var q db.EventQuery
	if v := r.URL.Query().Get("type"); v != "" {
		t := models.EventType(v)
		q.Type = &t
	}
	if v := r.URL.Query().Get("entity"); v != "" {
		q.EntityID = &v
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		q.Limit = limit
	}
	if v := r.URL.Query().Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		q.Since = &since
	}

	events, err := s.events.List(r.Context(), q)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error().Err(err).Msg("list events failed")
		http.Error(w, "failed to load events", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("write json failed")
	}
}
