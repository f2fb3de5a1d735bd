// Package appearance sequences theme selection, mode synchronization,
// styling and persistence.
//
// Within one selection the order is always mode switch, then styling, then
// persistence. All operations are serialized by the Service mutex, which
// also guards the active selection; the applied flag lives in the style
// applier under its own lock.
package appearance

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/opencode-ai/themesync/internal/events"
	"github.com/opencode-ai/themesync/internal/logging"
	"github.com/opencode-ai/themesync/internal/models"
	"github.com/opencode-ai/themesync/internal/modesync"
	"github.com/rs/zerolog"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ThemeStore resolves and deletes themes.
type ThemeStore interface {
	Get(id string) (*models.Theme, bool)
	List() []*models.Theme
	Delete(ctx context.Context, id string) error
}

// ThemeLoader re-reads themes from persistent storage. Other processes
// may edit the stored themes while the service runs.
type ThemeLoader interface {
	Load(ctx context.Context) error
}

// ModeSynchronizer drives the host mode.
type ModeSynchronizer interface {
	EnsureMode(ctx context.Context, target models.Mode) bool
	LastReport() (modesync.Report, bool)
}

// StyleApplier injects and removes styling.
type StyleApplier interface {
	ApplyBaseStyles(ctx context.Context) error
	ApplyTheme(ctx context.Context, theme *models.Theme, override *models.Mode) error
	RemoveTheme(ctx context.Context) error
	IsThemeApplied() bool
	ClearCache()
	LastCSS() string
}

// SelectionStore persists the active selection.
type SelectionStore interface {
	ActiveThemeID(ctx context.Context) (string, error)
	SaveActiveThemeID(ctx context.Context, id *string) error
}

// Result describes the outcome of a selection.
type Result struct {
	// ThemeID is the selected id, "" for none.
	ThemeID string `json:"theme_id"`

	// Resolved reports whether ThemeID named an existing theme.
	Resolved bool `json:"resolved"`

	// Converged is false only when a required mode could not be reached.
	Converged bool `json:"converged"`

	// Applied reports whether theme styling is injected afterwards.
	Applied bool `json:"applied"`
}

// Status is a snapshot of the service state.
type Status struct {
	ActiveThemeID string           `json:"active_theme_id"`
	Applied       bool             `json:"applied"`
	ThemeCount    int              `json:"theme_count"`
	LastSync      *modesync.Report `json:"last_sync,omitempty"`
}

// Option configures a Service.
type Option func(*Service)

// WithEvents records appearance events to repo.
func WithEvents(repo events.Repository) Option {
	return func(s *Service) { s.events = repo }
}

// WithThemeLoader lets the service refresh its themes from storage on
// Reload, ReloadThemes and lookups of ids it does not know yet.
func WithThemeLoader(loader ThemeLoader) Option {
	return func(s *Service) { s.loader = loader }
}

// WithLanguage sets the collation language for cycle order.
func WithLanguage(tag language.Tag) Option {
	return func(s *Service) { s.collator = collate.New(tag, collate.IgnoreCase) }
}

// Service is the orchestrator.
type Service struct {
	themes    ThemeStore
	modes     ModeSynchronizer
	styles    StyleApplier
	selection SelectionStore
	loader    ThemeLoader
	events    events.Repository
	logger    zerolog.Logger

	mu       sync.Mutex
	activeID string
	collator *collate.Collator
}

// New creates a Service. Call Reload to restore the persisted selection.
func New(themes ThemeStore, modes ModeSynchronizer, styles StyleApplier, selection SelectionStore, opts ...Option) *Service {
	s := &Service{
		themes:    themes,
		modes:     modes,
		styles:    styles,
		selection: selection,
		logger:    logging.Component("appearance"),
		collator:  collate.New(language.Und, collate.IgnoreCase),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetActiveTheme selects id ("" for none), switching mode and applying
// styling, then persists the selection. The selection is persisted even
// when the mode switch fails; the error reports persistence failures only.
func (s *Service) SetActiveTheme(ctx context.Context, id string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshOnMissLocked(ctx, id)
	return s.selectLocked(ctx, id)
}

// CycleTheme selects the next (direction >= 0) or previous theme in
// display-name order, wrapping at both ends. With no themes it does nothing.
func (s *Service) CycleTheme(ctx context.Context, direction int) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order := s.cycleOrderLocked()
	if len(order) == 0 {
		return Result{ThemeID: s.activeID, Applied: s.styles.IsThemeApplied(), Converged: true}, nil
	}

	step := 1
	if direction < 0 {
		step = -1
	}

	current := -1
	for i, theme := range order {
		if theme.ID == s.activeID {
			current = i
			break
		}
	}

	var next int
	switch {
	case current < 0 && step > 0:
		next = 0
	case current < 0:
		next = len(order) - 1
	default:
		next = (current + step + len(order)) % len(order)
	}
	return s.selectLocked(ctx, order[next].ID)
}

// CycleOrder returns themes in cycle order.
func (s *Service) CycleOrder() []*models.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycleOrderLocked()
}

// ToggleTheme removes styling when applied, otherwise re-applies the active
// theme. The selection is never changed. It returns the new applied state.
func (s *Service) ToggleTheme(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.styles.IsThemeApplied() {
		if err := s.styles.RemoveTheme(ctx); err != nil {
			return true, fmt.Errorf("remove theme: %w", err)
		}
		s.record(ctx, func(repo events.Repository) error {
			return events.LogStyling(ctx, repo, false, s.activeID)
		})
		return false, nil
	}

	if _, ok := s.themes.Get(s.activeID); !ok {
		return false, nil
	}
	res := s.applyLocked(ctx, s.activeID, true)
	return res.Applied, nil
}

// HandleHostModeChanged refreshes styling after the host changed mode on its
// own. It never switches the mode itself.
func (s *Service) HandleHostModeChanged(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug().Str("active", s.activeID).Msg("host mode changed")
	if s.activeID != "" && !s.styles.IsThemeApplied() {
		// Styling was toggled off; only refresh the base layer.
		if err := s.styles.ApplyBaseStyles(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to refresh base styles")
		}
		return
	}
	s.applyLocked(ctx, s.activeID, false)
}

// Reload re-reads themes and the persisted selection and re-asserts it,
// mode sync included.
func (s *Service) Reload(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(ctx); err != nil {
		return Result{}, err
	}
	id, err := s.selection.ActiveThemeID(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load active theme: %w", err)
	}
	s.activeID = id
	return s.applyLocked(ctx, id, true), nil
}

// ReloadThemes re-reads themes after they were edited elsewhere. When the
// active theme is gone the selection is cleared; when it changed it is
// re-applied. Styling that was toggled off stays off.
func (s *Service) ReloadThemes(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, hadActive := s.themes.Get(s.activeID)
	if err := s.refreshLocked(ctx); err != nil {
		return Result{ThemeID: s.activeID, Resolved: hadActive, Converged: true, Applied: s.styles.IsThemeApplied()}, err
	}

	unchanged := Result{ThemeID: s.activeID, Converged: true, Applied: s.styles.IsThemeApplied()}
	if s.activeID == "" {
		return unchanged, nil
	}
	after, ok := s.themes.Get(s.activeID)
	switch {
	case !ok && hadActive:
		s.logger.Info().Str("theme", s.activeID).Msg("active theme was deleted; clearing selection")
		return s.selectLocked(ctx, "")
	case !ok:
		return unchanged, nil
	}

	unchanged.Resolved = true
	if hadActive && !s.styles.IsThemeApplied() {
		return unchanged, nil
	}
	if hadActive && after.Mode == before.Mode && after.UpdatedAt.Equal(before.UpdatedAt) {
		return unchanged, nil
	}
	return s.applyLocked(ctx, s.activeID, true), nil
}

// DeleteTheme deletes a theme, clearing the selection and styling when it
// was the active one.
func (s *Service) DeleteTheme(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshOnMissLocked(ctx, id)
	if err := s.themes.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, func(repo events.Repository) error {
		return events.LogThemeChanged(ctx, repo, models.EventTypeThemeDeleted, id)
	})

	if id != s.activeID {
		return nil
	}
	_, err := s.selectLocked(ctx, "")
	return err
}

// ReloadBaseStyles drops the cached base sheet and re-applies the current
// styling on top of a fresh copy.
func (s *Service) ReloadBaseStyles(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.styles.ClearCache()
	if s.styles.IsThemeApplied() {
		if res := s.applyLocked(ctx, s.activeID, false); !res.Applied && res.Resolved {
			return fmt.Errorf("re-apply theme %s failed", s.activeID)
		}
		return nil
	}
	return s.styles.ApplyBaseStyles(ctx)
}

// ActiveThemeID returns the current selection.
func (s *Service) ActiveThemeID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Status returns a snapshot.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		ActiveThemeID: s.activeID,
		Applied:       s.styles.IsThemeApplied(),
		ThemeCount:    len(s.themes.List()),
	}
	if report, ok := s.modes.LastReport(); ok {
		st.LastSync = &report
	}
	return st
}

// CSS returns the injected theme block.
func (s *Service) CSS() string {
	return s.styles.LastCSS()
}

func (s *Service) refreshLocked(ctx context.Context) error {
	if s.loader == nil {
		return nil
	}
	if err := s.loader.Load(ctx); err != nil {
		return fmt.Errorf("reload themes: %w", err)
	}
	return nil
}

// refreshOnMissLocked reloads themes when id is not known yet, so themes
// created by another process can be selected or deleted.
func (s *Service) refreshOnMissLocked(ctx context.Context, id string) {
	if id == "" || s.loader == nil {
		return
	}
	if _, ok := s.themes.Get(id); ok {
		return
	}
	if err := s.refreshLocked(ctx); err != nil {
		s.logger.Warn().Err(err).Str("theme", id).Msg("failed to refresh themes")
	}
}

func (s *Service) selectLocked(ctx context.Context, id string) (Result, error) {
	previous := s.activeID
	res := s.applyLocked(ctx, id, true)

	s.activeID = id
	var stored *string
	if id != "" {
		stored = &id
	}
	if err := s.selection.SaveActiveThemeID(ctx, stored); err != nil {
		return res, fmt.Errorf("persist active theme: %w", err)
	}

	var mode models.Mode
	if theme, ok := s.themes.Get(id); ok {
		mode = theme.Mode
	}
	s.record(ctx, func(repo events.Repository) error {
		return events.LogThemeActivated(ctx, repo, id, previous, mode, res.Converged)
	})
	s.logger.Info().
		Str("theme", id).
		Str("previous", previous).
		Bool("converged", res.Converged).
		Bool("applied", res.Applied).
		Msg("active theme set")
	return res, nil
}

// applyLocked resolves id and applies it. With switchMode, a theme's
// required mode is synced first and passed as the styling override.
// Failures are logged and reflected in the result, never returned.
func (s *Service) applyLocked(ctx context.Context, id string, switchMode bool) Result {
	res := Result{ThemeID: id, Converged: true}

	theme, ok := s.themes.Get(id)
	if !ok {
		if id != "" {
			s.logger.Warn().Str("theme", id).Msg("theme not found; applying base styles only")
		}
		if err := s.styles.RemoveTheme(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to remove theme styles")
		}
		if err := s.styles.ApplyBaseStyles(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to apply base styles")
		}
		res.Applied = s.styles.IsThemeApplied()
		return res
	}
	res.Resolved = true

	var override *models.Mode
	if switchMode && theme.Mode.Valid() {
		mode := theme.Mode
		res.Converged = s.modes.EnsureMode(ctx, mode)
		override = &mode
		if report, ok := s.modes.LastReport(); ok {
			s.record(ctx, func(repo events.Repository) error {
				return events.LogModeSync(ctx, repo, mode, report.Layers(), report.Duration, report.Converged)
			})
		}
	}

	if err := s.styles.ApplyTheme(ctx, theme, override); err != nil {
		s.logger.Error().Err(err).Str("theme", theme.ID).Msg("failed to apply theme")
		s.record(ctx, func(repo events.Repository) error {
			return events.LogError(ctx, repo, "apply theme "+theme.ID, err)
		})
	} else {
		s.record(ctx, func(repo events.Repository) error {
			return events.LogStyling(ctx, repo, true, theme.ID)
		})
	}
	res.Applied = s.styles.IsThemeApplied()
	return res
}

func (s *Service) cycleOrderLocked() []*models.Theme {
	themes := s.themes.List()
	sort.SliceStable(themes, func(i, j int) bool {
		if c := s.collator.CompareString(themes[i].Name, themes[j].Name); c != 0 {
			return c < 0
		}
		return themes[i].ID < themes[j].ID
	})
	return themes
}

// record writes an event when a repository is configured. Failures are logged.
func (s *Service) record(ctx context.Context, write func(repo events.Repository) error) {
	if s.events == nil {
		return
	}
	if err := write(s.events); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record event")
	}
}
