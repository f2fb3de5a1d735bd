// Package host defines the capabilities themesync needs from a host application.
//
// A host is anything that displays a light or dark base appearance and lets
// themesync inject style blocks. Only ModeProbe and StyleSurface are
// mandatory; every other capability may be missing, in which case the
// implementation returns ErrUnavailable (or false for RunCommand) and callers
// treat the capability as absent.
package host

import (
	"context"
	"errors"

	"github.com/opencode-ai/themesync/internal/models"
)

var (
	// ErrUnavailable reports a capability the host does not expose.
	ErrUnavailable = errors.New("host capability unavailable")

	// ErrModeUnknown reports that no mode indicator was present.
	ErrModeUnknown = errors.New("host mode could not be determined")

	// ErrNotConnected reports that no live host is attached.
	ErrNotConnected = errors.New("host not connected")
)

const (
	// ClassDark and ClassLight are the body classes hosts use for mode.
	ClassDark  = "theme-dark"
	ClassLight = "theme-light"
)

// ModeProbe reads the mode the host currently displays.
type ModeProbe interface {
	CurrentMode(ctx context.Context) (models.Mode, error)
}

// CommandRunner executes a named host command. Unknown or failing commands
// return false.
type CommandRunner interface {
	RunCommand(ctx context.Context, id string) bool
}

// AppearanceSetter is the host's programmatic "set appearance by name" entry point.
type AppearanceSetter interface {
	SetAppearance(ctx context.Context, name string) error
}

// ConfigSetter writes host configuration keys and triggers a style recompute.
type ConfigSetter interface {
	SetConfig(ctx context.Context, key, value string) error
	NotifyStyleChange(ctx context.Context) error
}

// ModeActuator flips the host's mode attributes directly.
type ModeActuator interface {
	ForceMode(ctx context.Context, mode models.Mode) error
}

// StyleSurface injects and removes identified style blocks.
type StyleSurface interface {
	InjectStyle(ctx context.Context, id, css string) error
	RemoveStyle(ctx context.Context, id string) error
}

// Host bundles every capability. Implementations report ErrUnavailable for
// the optional ones they lack.
type Host interface {
	ModeProbe
	CommandRunner
	AppearanceSetter
	ConfigSetter
	ModeActuator
	StyleSurface
}

// Indicators is the raw mode state a host exposes.
type Indicators struct {
	// Classes are the classes on the host's root element.
	Classes []string `json:"classes"`

	// ReportedDark is the host's own dark flag, when it has one.
	ReportedDark *bool `json:"reported_dark,omitempty"`
}

// DeriveMode resolves indicators to a mode. An unambiguous mode class wins;
// otherwise the reported flag is used.
func DeriveMode(ind Indicators) (models.Mode, error) {
	var dark, light bool
	for _, c := range ind.Classes {
		switch c {
		case ClassDark:
			dark = true
		case ClassLight:
			light = true
		}
	}

	switch {
	case dark && !light:
		return models.ModeDark, nil
	case light && !dark:
		return models.ModeLight, nil
	}

	if ind.ReportedDark != nil {
		if *ind.ReportedDark {
			return models.ModeDark, nil
		}
		return models.ModeLight, nil
	}
	return "", ErrModeUnknown
}
