package style

import (
	"strings"

	"github.com/opencode-ai/themesync/internal/host"
	"github.com/opencode-ai/themesync/internal/models"
)

// Selector returns the body selector scoping theme variables to mode.
func Selector(mode models.Mode) string {
	if mode == models.ModeLight {
		return "body." + host.ClassLight
	}
	return "body." + host.ClassDark
}

// Generate renders the theme block for mode. Output is deterministic:
// palette properties in palette order, then assignments in semantic
// variable order. Dangling references and malformed values are skipped.
func Generate(theme *models.Theme, mode models.Mode) string {
	var b strings.Builder

	b.WriteString("/* themesync: ")
	b.WriteString(commentSafe(theme.Name))
	if theme.ID != "" {
		b.WriteString(" (")
		b.WriteString(commentSafe(theme.ID))
		b.WriteString(")")
	}
	b.WriteString(" */\n")

	b.WriteString(Selector(mode))
	b.WriteString(" {\n")

	for _, c := range theme.Colors {
		if models.ValidateColorName(c.Name) != nil || models.ValidateColorValue(c.Value) != nil {
			continue
		}
		writeDecl(&b, "--"+c.Name, c.Value)
	}

	for _, v := range models.SemanticVars {
		value, ok := theme.Resolve(v)
		if !ok || models.ValidateColorValue(value) != nil {
			continue
		}
		writeDecl(&b, v.CSSProperty(), value)
	}

	b.WriteString("}\n")
	return b.String()
}

func writeDecl(b *strings.Builder, prop, value string) {
	b.WriteString("  ")
	b.WriteString(prop)
	b.WriteString(": ")
	b.WriteString(strings.TrimSpace(value))
	b.WriteString(";\n")
}

func commentSafe(s string) string {
	return strings.ReplaceAll(s, "*/", "* /")
}
