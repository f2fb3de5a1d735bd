// Package models defines the core data types for themesync.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Mode is the host's base appearance.
type Mode string

const (
	ModeLight Mode = "light"
	ModeDark  Mode = "dark"
)

// ParseMode converts user input to a Mode. The empty string means unset.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", "none", "unset":
		return "", nil
	case ModeLight:
		return ModeLight, nil
	case ModeDark:
		return ModeDark, nil
	default:
		return "", fmt.Errorf("invalid mode %q (want light, dark or none)", value)
	}
}

// Valid reports whether m is light or dark.
func (m Mode) Valid() bool {
	return m == ModeLight || m == ModeDark
}

// Opposite returns the other mode.
func (m Mode) Opposite() Mode {
	if m == ModeDark {
		return ModeLight
	}
	return ModeDark
}

// SemanticVar is a named UI role a theme can assign a color to.
type SemanticVar string

const (
	VarBackgroundPrimary   SemanticVar = "BACKGROUND_PRIMARY"
	VarBackgroundSecondary SemanticVar = "BACKGROUND_SECONDARY"
	VarBorder              SemanticVar = "BACKGROUND_MODIFIER_BORDER"
	VarText                SemanticVar = "TEXT"
	VarTextMuted           SemanticVar = "TEXT_MUTED"
	VarTextFaint           SemanticVar = "TEXT_FAINT"
	VarTextAccent          SemanticVar = "TEXT_ACCENT"
	VarTextSelection       SemanticVar = "TEXT_SELECTION"
	VarAccent              SemanticVar = "ACCENT"
	VarAccentHover         SemanticVar = "ACCENT_HOVER"
	VarHeading             SemanticVar = "HEADING"
	VarLink                SemanticVar = "LINK"
	VarCode                SemanticVar = "CODE"
	VarSuccess             SemanticVar = "SUCCESS"
	VarWarning             SemanticVar = "WARNING"
	VarError               SemanticVar = "ERROR"
)

// SemanticVars lists every semantic variable in generation order.
var SemanticVars = [...]SemanticVar{
	VarBackgroundPrimary,
	VarBackgroundSecondary,
	VarBorder,
	VarText,
	VarTextMuted,
	VarTextFaint,
	VarTextAccent,
	VarTextSelection,
	VarAccent,
	VarAccentHover,
	VarHeading,
	VarLink,
	VarCode,
	VarSuccess,
	VarWarning,
	VarError,
}

var cssProperties = map[SemanticVar]string{
	VarBackgroundPrimary:   "--background-primary",
	VarBackgroundSecondary: "--background-secondary",
	VarBorder:              "--background-modifier-border",
	VarText:                "--text-normal",
	VarTextMuted:           "--text-muted",
	VarTextFaint:           "--text-faint",
	VarTextAccent:          "--text-accent",
	VarTextSelection:       "--text-selection",
	VarAccent:              "--interactive-accent",
	VarAccentHover:         "--interactive-accent-hover",
	VarHeading:             "--h1-color",
	VarLink:                "--link-color",
	VarCode:                "--code-normal",
	VarSuccess:             "--color-green",
	VarWarning:             "--color-orange",
	VarError:               "--color-red",
}

// ParseSemanticVar normalizes and validates a semantic variable name.
func ParseSemanticVar(value string) (SemanticVar, bool) {
	v := SemanticVar(strings.ToUpper(strings.TrimSpace(value)))
	_, ok := cssProperties[v]
	return v, ok
}

// CSSProperty returns the host custom property for the variable.
func (v SemanticVar) CSSProperty() string {
	return cssProperties[v]
}

// Color is a named palette entry.
type Color struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Theme is a named palette plus semantic assignments.
type Theme struct {
	// ID is the stable identifier.
	ID string `json:"id" yaml:"id"`

	// Name is the display name.
	Name string `json:"name" yaml:"name"`

	// Description is optional free text.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Mode is the base appearance the theme requires, or empty.
	Mode Mode `json:"mode,omitempty" yaml:"mode,omitempty"`

	// BuiltIn marks themes shipped with themesync.
	BuiltIn bool `json:"builtin" yaml:"-"`

	// Colors is the palette in display order. Names are unique.
	Colors []Color `json:"colors" yaml:"colors"`

	// Assignments maps semantic variables to palette references or raw values.
	Assignments map[SemanticVar]string `json:"assignments" yaml:"assignments"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// Clone returns a deep copy of the theme.
func (t *Theme) Clone() *Theme {
	if t == nil {
		return nil
	}
	out := *t
	out.Colors = append([]Color(nil), t.Colors...)
	out.Assignments = make(map[SemanticVar]string, len(t.Assignments))
	for k, v := range t.Assignments {
		out.Assignments[k] = v
	}
	return &out
}

// ColorIndex returns the palette position of name, or -1.
func (t *Theme) ColorIndex(name string) int {
	for i, c := range t.Colors {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ColorValue returns the palette value for name.
func (t *Theme) ColorValue(name string) (string, bool) {
	if i := t.ColorIndex(name); i >= 0 {
		return t.Colors[i].Value, true
	}
	return "", false
}

// Resolve returns the literal value for an assignment. Palette references
// resolve to the referenced color; dangling references report false.
func (t *Theme) Resolve(v SemanticVar) (string, bool) {
	raw, ok := t.Assignments[v]
	if !ok || strings.TrimSpace(raw) == "" {
		return "", false
	}
	if name, isRef := ParseColorRef(raw); isRef {
		return t.ColorValue(name)
	}
	return raw, true
}

// Validate checks structural invariants.
func (t *Theme) Validate() error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(t.ID) == "" {
		validation.AddMessage("id", "theme id is required")
	}
	if strings.TrimSpace(t.Name) == "" {
		validation.AddMessage("name", "theme name is required")
	}
	if t.Mode != "" && !t.Mode.Valid() {
		validation.AddMessage("mode", fmt.Sprintf("invalid mode %q", t.Mode))
	}

	seen := make(map[string]struct{}, len(t.Colors))
	for _, c := range t.Colors {
		if err := ValidateColorName(c.Name); err != nil {
			validation.AddMessage("colors", err.Error())
			continue
		}
		if _, dup := seen[c.Name]; dup {
			validation.AddMessage("colors", fmt.Sprintf("duplicate color %q", c.Name))
		}
		seen[c.Name] = struct{}{}
		if err := ValidateColorValue(c.Value); err != nil {
			validation.AddMessage("colors", fmt.Sprintf("%s: %v", c.Name, err))
		}
	}

	for v, raw := range t.Assignments {
		if _, ok := cssProperties[v]; !ok {
			validation.AddMessage("assignments", fmt.Sprintf("unknown variable %q", v))
			continue
		}
		if name, isRef := ParseColorRef(raw); isRef {
			if _, exists := seen[name]; !exists {
				validation.AddMessage("assignments", fmt.Sprintf("%s references missing color %q", v, name))
			}
			continue
		}
		if err := ValidateColorValue(raw); err != nil {
			validation.AddMessage("assignments", fmt.Sprintf("%s: %v", v, err))
		}
	}

	return validation.Err()
}

// WindowPrefs are host window preferences stored next to the selection.
type WindowPrefs struct {
	AlwaysOnTop bool    `json:"always_on_top"`
	Opacity     float64 `json:"opacity"`
	Vibrancy    bool    `json:"vibrancy"`
}

// Settings is the persisted settings blob.
type Settings struct {
	Themes        []*Theme    `json:"themes"`
	ActiveThemeID *string     `json:"active_theme_id"`
	Window        WindowPrefs `json:"window"`
}

// DefaultSettings returns the settings used for missing fields.
func DefaultSettings() Settings {
	return Settings{
		Themes: []*Theme{},
		Window: WindowPrefs{Opacity: 1.0},
	}
}

// ActiveID returns the active theme id or "".
func (s Settings) ActiveID() string {
	if s.ActiveThemeID == nil {
		return ""
	}
	return *s.ActiveThemeID
}
