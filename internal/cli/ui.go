package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/opencode-ai/themesync/internal/models"
	"golang.org/x/term"
)

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Faint(true)
)

// renderTheme prints a theme with its palette and assignments. Swatches
// are drawn only when color is enabled.
func renderTheme(out io.Writer, theme *models.Theme, active bool) {
	title := theme.Name
	if active {
		title += " (active)"
	}
	fmt.Fprintln(out, headingStyle.Render(title))
	fmt.Fprintf(out, "  id:    %s\n", theme.ID)
	fmt.Fprintf(out, "  mode:  %s", formatMode(theme.Mode))
	if theme.Mode == "" {
		if bg, ok := theme.Resolve(models.VarBackgroundPrimary); ok {
			if suggested, ok := models.SuggestMode(bg); ok {
				fmt.Fprint(out, mutedStyle.Render(fmt.Sprintf(" (background looks %s)", suggested)))
			}
		}
	}
	fmt.Fprintln(out)
	if theme.BuiltIn {
		fmt.Fprintln(out, "  built-in (read-only)")
	}
	if theme.Description != "" {
		fmt.Fprintf(out, "  %s\n", theme.Description)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, headingStyle.Render("Palette"))
	if len(theme.Colors) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("  (empty)"))
	}
	width := 0
	for _, c := range theme.Colors {
		width = max(width, len(c.Name))
	}
	for _, c := range theme.Colors {
		fmt.Fprintf(out, "  %s %-*s  %s\n", swatch(c.Value), width, c.Name, c.Value)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, headingStyle.Render("Assignments"))
	assigned := false
	for _, v := range models.SemanticVars {
		raw, ok := theme.Assignments[v]
		if !ok {
			continue
		}
		assigned = true
		resolved, _ := theme.Resolve(v)
		line := fmt.Sprintf("  %s %-26s %s", swatch(resolved), v, raw)
		if resolved != raw {
			line += mutedStyle.Render(" -> " + resolved)
		}
		fmt.Fprintln(out, line)
	}
	if !assigned {
		fmt.Fprintln(out, mutedStyle.Render("  (none, host defaults apply)"))
	}
}

// swatch renders a two-cell block in the given color, or blanks when the
// value is not a hex color or color is disabled.
func swatch(value string) string {
	if !colorEnabled() {
		return ""
	}
	c, err := models.ParseHex(value)
	if err != nil {
		return strings.Repeat(" ", 2)
	}
	return lipgloss.NewStyle().Background(lipgloss.Color(c.Hex())).Render("  ")
}
