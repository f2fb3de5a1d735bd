package models

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	colorNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
	colorRefPattern  = regexp.MustCompile(`^var\(\s*--([A-Za-z][A-Za-z0-9_-]*)\s*\)$`)
	colorFuncPattern = regexp.MustCompile(`^(rgb|rgba|hsl|hsla)\(\s*[-0-9.%]+\s*(,\s*|\s+)[-0-9.%]+\s*(,\s*|\s+)[-0-9.%]+\s*((,|/)\s*[0-9.%]+\s*)?\)$`)
)

var namedColors = map[string]struct{}{
	"transparent":  {},
	"currentcolor": {},
	"inherit":      {},
	"black":        {},
	"white":        {},
}

// ColorRef formats a palette reference.
func ColorRef(name string) string {
	return "var(--" + name + ")"
}

// ParseColorRef extracts the palette name from a var(--name) reference.
func ParseColorRef(value string) (string, bool) {
	m := colorRefPattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ValidateColorName checks a palette entry name.
func ValidateColorName(name string) error {
	if !colorNamePattern.MatchString(name) {
		return fmt.Errorf("invalid color name %q", name)
	}
	return nil
}

// ValidateColorValue accepts hex colors, rgb/hsl functions and a few keywords.
func ValidateColorValue(value string) error {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return fmt.Errorf("color value is required")
	}
	if _, ok := namedColors[v]; ok {
		return nil
	}
	if strings.HasPrefix(v, "#") {
		if _, err := ParseHex(v); err != nil {
			return err
		}
		return nil
	}
	if colorFuncPattern.MatchString(v) {
		return nil
	}
	return fmt.Errorf("invalid color value %q", value)
}

// ParseHex parses #rgb, #rgba, #rrggbb and #rrggbbaa. Alpha is ignored.
func ParseHex(value string) (colorful.Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	switch len(hex) {
	case 3, 4:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
	case 8:
		hex = hex[:6]
	default:
		return colorful.Color{}, fmt.Errorf("invalid hex color %q", value)
	}
	c, err := colorful.Hex("#" + hex)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("invalid hex color %q", value)
	}
	return c, nil
}

// SuggestMode guesses the base mode for a background color by its
// lightness. Non-hex values report false.
func SuggestMode(background string) (Mode, bool) {
	c, err := ParseHex(background)
	if err != nil {
		return "", false
	}
	l, _, _ := c.Lab()
	if l < 0.5 {
		return ModeDark, true
	}
	return ModeLight, true
}
