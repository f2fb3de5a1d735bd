package cli

import (
	"context"

	"github.com/opencode-ai/themesync/internal/appearance"
	"github.com/opencode-ai/themesync/internal/tui"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(pickCmd)
}

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Choose the active theme interactively",
	Long: `Open a terminal picker listing every theme. The picker drives the running
daemon, or an in-memory host with --simulate.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if IsNonInteractive() || !hasTTY() {
			return &PreflightError{
				Message:  "pick needs an interactive terminal",
				Hint:     "Use `themesync use <theme>` in scripts",
				NextStep: "themesync theme list",
			}
		}
		return withController(cmd, func(ctx context.Context, c controller) error {
			return tui.Run(ctx, pickController{c})
		})
	},
}

// pickController narrows a controller's status to what the picker shows.
type pickController struct {
	controller
}

func (p pickController) Status(ctx context.Context) (appearance.Status, error) {
	st, err := p.controller.Status(ctx)
	return st.Status, err
}
