// Package style turns themes into stylesheet blocks and injects them into a host.
package style

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/opencode-ai/themesync/internal/host"
	"github.com/opencode-ai/themesync/internal/logging"
	"github.com/opencode-ai/themesync/internal/models"
	"github.com/rs/zerolog"
)

// Style block identifiers on the host surface.
const (
	BaseStyleID  = "themesync-base"
	ThemeStyleID = "themesync-theme"
)

// ErrNilTheme is returned when ApplyTheme receives no theme.
var ErrNilTheme = errors.New("theme is required")

// Applier injects base and theme styles and tracks whether a theme is applied.
type Applier struct {
	surface host.StyleSurface
	probe   host.ModeProbe
	source  BaseSource
	logger  zerolog.Logger

	mu      sync.Mutex
	base    *string
	applied bool
	themeID string
	lastCSS string
	loads   int
}

// NewApplier creates an applier. probe may be nil, in which case
// mode-dependent output without an override falls back to the theme's mode.
func NewApplier(surface host.StyleSurface, probe host.ModeProbe, source BaseSource) *Applier {
	if source == nil {
		source = EmbeddedSource{}
	}
	return &Applier{
		surface: surface,
		probe:   probe,
		source:  source,
		logger:  logging.Component("style"),
	}
}

// ApplyBaseStyles injects the base stylesheet, loading it from the source
// only when it is not cached.
func (a *Applier) ApplyBaseStyles(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.applyBaseLocked(ctx)
}

func (a *Applier) applyBaseLocked(ctx context.Context) error {
	if a.base == nil {
		css, err := a.source.Load(ctx)
		if err != nil {
			return fmt.Errorf("load base styles from %s: %w", a.source, err)
		}
		a.base = &css
		a.loads++
		a.logger.Debug().Str("source", a.source.String()).Int("bytes", len(css)).Msg("base styles loaded")
	}
	if err := a.surface.InjectStyle(ctx, BaseStyleID, *a.base); err != nil {
		return fmt.Errorf("inject base styles: %w", err)
	}
	return nil
}

// ApplyTheme injects base styles and then the generated theme block.
// override, when set, decides the mode-dependent selector.
func (a *Applier) ApplyTheme(ctx context.Context, theme *models.Theme, override *models.Mode) error {
	if theme == nil {
		return ErrNilTheme
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.applyBaseLocked(ctx); err != nil {
		return err
	}

	mode := a.modeFor(ctx, theme, override)
	css := Generate(theme, mode)
	if err := a.surface.InjectStyle(ctx, ThemeStyleID, css); err != nil {
		return fmt.Errorf("inject theme %s: %w", theme.ID, err)
	}

	a.applied = true
	a.themeID = theme.ID
	a.lastCSS = css
	a.logger.Debug().Str("theme", theme.ID).Str("mode", string(mode)).Msg("theme applied")
	return nil
}

// RemoveTheme strips the theme block. It is a no-op when nothing is applied.
func (a *Applier) RemoveTheme(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.applied {
		return nil
	}
	if err := a.surface.RemoveStyle(ctx, ThemeStyleID); err != nil {
		return fmt.Errorf("remove theme styles: %w", err)
	}
	a.applied = false
	a.themeID = ""
	a.lastCSS = ""
	a.logger.Debug().Msg("theme removed")
	return nil
}

// IsThemeApplied reports whether a theme block is injected.
func (a *Applier) IsThemeApplied() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.applied
}

// AppliedThemeID returns the id of the injected theme, or "".
func (a *Applier) AppliedThemeID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.themeID
}

// ClearCache forces the next ApplyBaseStyles to re-read the source.
func (a *Applier) ClearCache() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.base = nil
}

// LastCSS returns the most recently injected theme block.
func (a *Applier) LastCSS() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastCSS
}

// BaseCSS returns the cached base stylesheet, if loaded.
func (a *Applier) BaseCSS() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.base == nil {
		return "", false
	}
	return *a.base, true
}

func (a *Applier) modeFor(ctx context.Context, theme *models.Theme, override *models.Mode) models.Mode {
	if override != nil && override.Valid() {
		return *override
	}
	if a.probe != nil {
		if mode, err := a.probe.CurrentMode(ctx); err == nil {
			return mode
		}
	}
	if theme.Mode.Valid() {
		return theme.Mode
	}
	return models.ModeDark
}
