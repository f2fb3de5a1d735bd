package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/opencode-ai/themesync/internal/appearance"
	"github.com/opencode-ai/themesync/internal/models"
)

// Controller is what the picker drives: the daemon client or an
// in-process simulation.
type Controller interface {
	Themes(ctx context.Context) ([]*models.Theme, error)
	Status(ctx context.Context) (appearance.Status, error)
	SetActive(ctx context.Context, id string) (appearance.Result, error)
	Cycle(ctx context.Context, direction int) (appearance.Result, error)
	Toggle(ctx context.Context) (bool, error)
}

// loadedMsg carries a refreshed theme list and status.
type loadedMsg struct {
	themes []*models.Theme
	status appearance.Status
	err    error
}

// resultMsg reports the outcome of a selection change.
type resultMsg struct {
	action string
	result appearance.Result
	err    error
}

// toggledMsg reports the outcome of a styling toggle.
type toggledMsg struct {
	applied bool
	err     error
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func loadCmd(ctx context.Context, c Controller) tea.Cmd {
	return func() tea.Msg {
		themes, err := c.Themes(ctx)
		if err != nil {
			return loadedMsg{err: err}
		}
		status, err := c.Status(ctx)
		return loadedMsg{themes: themes, status: status, err: err}
	}
}

func activateCmd(ctx context.Context, c Controller, id string) tea.Cmd {
	return func() tea.Msg {
		res, err := c.SetActive(ctx, id)
		return resultMsg{action: "activate", result: res, err: err}
	}
}

func cycleCmd(ctx context.Context, c Controller, direction int) tea.Cmd {
	return func() tea.Msg {
		res, err := c.Cycle(ctx, direction)
		return resultMsg{action: "cycle", result: res, err: err}
	}
}

func toggleCmd(ctx context.Context, c Controller) tea.Cmd {
	return func() tea.Msg {
		applied, err := c.Toggle(ctx)
		return toggledMsg{applied: applied, err: err}
	}
}
