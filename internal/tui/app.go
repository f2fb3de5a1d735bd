// Package tui implements the interactive theme picker.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/opencode-ai/themesync/internal/appearance"
	"github.com/opencode-ai/themesync/internal/models"
	"github.com/opencode-ai/themesync/internal/tui/styles"
)

// Run launches the picker and blocks until the user quits.
func Run(ctx context.Context, c Controller) error {
	program := tea.NewProgram(initialModel(ctx, c), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

type model struct {
	ctx  context.Context
	ctrl Controller

	width  int
	height int
	styles styles.Styles

	themes []*models.Theme
	status appearance.Status
	cursor int
	loaded bool
	busy   bool

	message    string
	messageErr bool

	lastUpdated time.Time
	now         time.Time
}

const (
	minWidth     = 50
	minHeight    = 10
	maxSwatches  = 6
	refreshEvery = 5 * time.Second
	staleAfter   = 30 * time.Second
)

func initialModel(ctx context.Context, c Controller) model {
	return model{
		ctx:    ctx,
		ctrl:   c,
		styles: styles.DefaultStyles(),
		now:    time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(loadCmd(m.ctx, m.ctrl), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.now = time.Time(msg)
		cmds := []tea.Cmd{tickCmd()}
		if !m.busy && m.now.Sub(m.lastUpdated) >= refreshEvery {
			cmds = append(cmds, loadCmd(m.ctx, m.ctrl))
		}
		return m, tea.Batch(cmds...)
	case loadedMsg:
		return m.handleLoaded(msg), nil
	case resultMsg:
		m.busy = false
		if msg.err != nil {
			m.setError(fmt.Sprintf("%s failed: %v", msg.action, msg.err))
			return m, nil
		}
		m.setMessage(describeResult(msg.result))
		return m, loadCmd(m.ctx, m.ctrl)
	case toggledMsg:
		m.busy = false
		if msg.err != nil {
			m.setError(fmt.Sprintf("toggle failed: %v", msg.err))
			return m, nil
		}
		if msg.applied {
			m.setMessage("theme styling on")
		} else {
			m.setMessage("theme styling off")
		}
		return m, loadCmd(m.ctx, m.ctrl)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(m.themes)-1 {
			m.cursor++
		}
		return m, nil
	case "r":
		return m, loadCmd(m.ctx, m.ctrl)
	}

	if m.busy {
		return m, nil
	}
	switch msg.String() {
	case "enter", " ":
		if m.cursor < len(m.themes) {
			m.busy = true
			return m, activateCmd(m.ctx, m.ctrl, m.themes[m.cursor].ID)
		}
	case "n":
		m.busy = true
		return m, activateCmd(m.ctx, m.ctrl, "")
	case "t":
		m.busy = true
		return m, toggleCmd(m.ctx, m.ctrl)
	case "]", "tab":
		m.busy = true
		return m, cycleCmd(m.ctx, m.ctrl, 1)
	case "[", "shift+tab":
		m.busy = true
		return m, cycleCmd(m.ctx, m.ctrl, -1)
	}
	return m, nil
}

func (m model) handleLoaded(msg loadedMsg) model {
	if msg.err != nil {
		m.setError(fmt.Sprintf("refresh failed: %v", msg.err))
		return m
	}
	m.themes = msg.themes
	m.status = msg.status
	m.lastUpdated = m.now
	if m.lastUpdated.IsZero() {
		m.lastUpdated = time.Now()
	}

	if !m.loaded {
		m.loaded = true
		m.cursor = m.activeIndex()
	}
	if m.cursor >= len(m.themes) {
		m.cursor = max(len(m.themes)-1, 0)
	}
	if m.status.LastSync != nil {
		m.styles = styles.BuildStyles(styles.ForMode(m.status.LastSync.Target))
	}
	return m
}

func (m *model) setMessage(text string) {
	m.message = text
	m.messageErr = false
}

func (m *model) setError(text string) {
	m.message = text
	m.messageErr = true
}

func (m model) activeIndex() int {
	for i, theme := range m.themes {
		if theme.ID == m.status.ActiveThemeID {
			return i
		}
	}
	return 0
}

func (m model) View() string {
	if m.width > 0 && m.height > 0 {
		if m.width < minWidth || m.height < minHeight {
			return fmt.Sprintf("%s\n", joinLines(m.smallViewLines()))
		}
	}

	lines := []string{
		m.styles.Title.Render("themesync"),
		m.styles.Muted.Render(m.statusLine()),
		"",
	}
	lines = append(lines, m.themeLines()...)
	lines = append(lines, "")
	if m.message != "" {
		if m.messageErr {
			lines = append(lines, m.styles.Error.Render(m.message))
		} else {
			lines = append(lines, m.styles.Success.Render(m.message))
		}
	}
	lines = append(lines, m.styles.Muted.Render(m.lastUpdatedLine()))
	lines = append(lines, "", m.styles.Muted.Render("enter use | n none | t toggle | [ ] cycle | r refresh | q quit"))

	return fmt.Sprintf("%s\n", joinLines(lines))
}

func (m model) smallViewLines() []string {
	message := fmt.Sprintf("Terminal too small (%dx%d).", m.width, m.height)
	hint := fmt.Sprintf("Resize to at least %dx%d.", minWidth, minHeight)

	return []string{
		m.styles.Warning.Render(message),
		m.styles.Muted.Render(hint),
		m.styles.Muted.Render("Press q to quit."),
	}
}

func (m model) statusLine() string {
	if !m.loaded {
		return "loading..."
	}
	active := m.status.ActiveThemeID
	if active == "" {
		active = "none"
	}
	styling := "off"
	if m.status.Applied {
		styling = "on"
	}
	line := fmt.Sprintf("active: %s | styling: %s", active, styling)
	if sync := m.status.LastSync; sync != nil {
		state := "converged"
		if !sync.Converged {
			state = "not converged"
		}
		line += fmt.Sprintf(" | host: %s (%s)", sync.Target, state)
	}
	if m.busy {
		line += " | working..."
	}
	return line
}

func (m model) themeLines() []string {
	if !m.loaded {
		return nil
	}
	if len(m.themes) == 0 {
		return []string{m.styles.Muted.Render("No themes. Create one with `themesync theme create`.")}
	}

	nameWidth := 0
	for _, theme := range m.themes {
		nameWidth = max(nameWidth, lipgloss.Width(theme.Name))
	}

	lines := make([]string, 0, len(m.themes))
	for i, theme := range m.themes {
		pointer := "  "
		if i == m.cursor {
			pointer = m.styles.Focus.Render("> ")
		}
		marker := " "
		if theme.ID == m.status.ActiveThemeID {
			marker = m.styles.Accent.Render("*")
		}
		mode := string(theme.Mode)
		if mode == "" {
			mode = "-"
		}

		name := theme.Name + strings.Repeat(" ", nameWidth-lipgloss.Width(theme.Name))
		if i == m.cursor {
			name = m.styles.Focus.Render(name)
		} else {
			name = m.styles.Text.Render(name)
		}
		lines = append(lines, fmt.Sprintf("%s%s %s  %-5s %s", pointer, marker, name, m.styles.Muted.Render(mode), swatches(theme)))
	}
	return lines
}

// swatches renders up to maxSwatches palette colors as background blocks.
func swatches(theme *models.Theme) string {
	var b strings.Builder
	shown := 0
	for _, c := range theme.Colors {
		if shown == maxSwatches {
			break
		}
		parsed, err := models.ParseHex(c.Value)
		if err != nil {
			continue
		}
		b.WriteString(lipgloss.NewStyle().Background(lipgloss.Color(parsed.Hex())).Render("  "))
		shown++
	}
	return b.String()
}

func describeResult(res appearance.Result) string {
	switch {
	case res.ThemeID == "":
		return "selection cleared"
	case !res.Resolved:
		return fmt.Sprintf("%s not found; base styles only", res.ThemeID)
	case !res.Converged:
		return fmt.Sprintf("%s selected; host mode did not converge", res.ThemeID)
	default:
		return fmt.Sprintf("%s applied", res.ThemeID)
	}
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

func (m model) lastUpdatedLine() string {
	if m.lastUpdated.IsZero() {
		return "Last updated: --"
	}
	label := m.lastUpdated.Format("15:04:05")
	if m.isStale() {
		label += " (stale)"
	}
	return fmt.Sprintf("Last updated: %s", label)
}

func (m model) isStale() bool {
	if m.lastUpdated.IsZero() || m.now.IsZero() {
		return false
	}
	return m.now.Sub(m.lastUpdated) > staleAfter
}
