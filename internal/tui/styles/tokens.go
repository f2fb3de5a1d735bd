package styles

import "github.com/opencode-ai/themesync/internal/models"

// ThemeTokens defines the semantic color roles for the picker.
type ThemeTokens struct {
	Text      string
	TextMuted string
	Border    string
	Accent    string
	Focus     string
	Success   string
	Warning   string
	Error     string
}

// Theme bundles a palette with a name.
type Theme struct {
	Name   string
	Tokens ThemeTokens
}

// Themes lists available palettes by name.
var Themes = map[string]Theme{
	"default": DefaultTheme,
	"light":   LightTheme,
}

// ForMode picks the palette readable on a host in mode. An unknown mode
// gets the default palette.
func ForMode(mode models.Mode) Theme {
	if mode == models.ModeLight {
		return LightTheme
	}
	return DefaultTheme
}
