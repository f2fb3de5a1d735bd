package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/opencode-ai/themesync/internal/api"
	"github.com/opencode-ai/themesync/internal/appearance"
	"github.com/opencode-ai/themesync/internal/db"
	"github.com/opencode-ai/themesync/internal/host"
	"github.com/opencode-ai/themesync/internal/models"
	"github.com/opencode-ai/themesync/internal/modesync"
	"github.com/opencode-ai/themesync/internal/style"
	"github.com/opencode-ai/themesync/internal/themestore"
	"github.com/spf13/cobra"
)

var (
	useNone       bool
	cyclePrev     bool
	simHostMode   string
	simHostKind   string
	statusShowCSS bool
)

func init() {
	rootCmd.AddCommand(useCmd)
	rootCmd.AddCommand(cycleCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reloadBaseCmd)
	rootCmd.AddCommand(cssCmd)

	useCmd.Flags().BoolVar(&useNone, "none", false, "clear the active theme")
	cycleCmd.Flags().BoolVar(&cyclePrev, "prev", false, "cycle backwards")
	statusCmd.Flags().BoolVar(&statusShowCSS, "css", false, "include the injected theme CSS")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&simHostMode, "sim-mode", "light", "initial mode of the simulated host")
	flags.StringVar(&simHostKind, "sim-host", "default", "simulated host behaviour (default, legacy, stubborn, report-only)")
}

// controller drives the appearance service, either through the daemon or
// in-process against a simulated host.
type controller interface {
	SetActive(ctx context.Context, id string) (appearance.Result, error)
	Cycle(ctx context.Context, direction int) (appearance.Result, error)
	Toggle(ctx context.Context) (bool, error)
	ReloadBase(ctx context.Context) error
	Status(ctx context.Context) (api.StatusResponse, error)
	CSS(ctx context.Context) (string, error)
	Themes(ctx context.Context) ([]*models.Theme, error)
}

// components is the wired appearance stack.
type components struct {
	store  *themestore.Store
	modes  *modesync.Synchronizer
	styles *style.Applier
	svc    *appearance.Service
}

// buildComponents wires the appearance service over database and h.
func buildComponents(ctx context.Context, database *db.DB, h host.Host) (*components, error) {
	cfg := GetConfig()

	store := themestore.New(db.NewThemeRepository(database))
	if err := store.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load themes: %w", err)
	}

	modes := modesync.New(h, modesync.OptionsFromConfig(cfg.Sync))
	styles := style.NewApplier(h, h, style.NewSource(cfg.Style.BaseCSSPath))
	svc := appearance.New(store, modes, styles, db.NewSettingsRepository(database),
		appearance.WithEvents(db.NewEventRepository(database)),
		appearance.WithThemeLoader(store))

	return &components{store: store, modes: modes, styles: styles, svc: svc}, nil
}

// simulatedHostConfig builds the in-memory host for --simulate.
func simulatedHostConfig(kind, mode string) (host.MemoryConfig, error) {
	initial, err := models.ParseMode(mode)
	if err != nil {
		return host.MemoryConfig{}, err
	}
	if initial == "" {
		initial = models.ModeLight
	}

	cfg := GetConfig().Sync
	switch strings.ToLower(kind) {
	case "", "default":
		hc := host.DefaultMemoryConfig(initial)
		hc.Commands = map[string]host.CommandAction{
			cfg.Commands.Dark:   host.SetsMode(models.ModeDark),
			cfg.Commands.Light:  host.SetsMode(models.ModeLight),
			cfg.Commands.Toggle: host.TogglesMode,
		}
		return hc, nil
	case "legacy":
		return host.MemoryConfig{
			Mode:     initial,
			Commands: map[string]host.CommandAction{cfg.Commands.Toggle: host.TogglesMode},
		}, nil
	case "stubborn":
		return host.MemoryConfig{
			Mode:            initial,
			Commands:        map[string]host.CommandAction{},
			AppearanceNames: map[string]models.Mode{},
			ConfigRules:     map[string]models.Mode{},
		}, nil
	case "report-only":
		hc := host.DefaultMemoryConfig(initial)
		hc.ReportOnly = true
		return hc, nil
	default:
		return host.MemoryConfig{}, fmt.Errorf("unknown simulated host %q (use default, legacy, stubborn or report-only)", kind)
	}
}

// localController runs the service in-process against a Memory host. The
// stored themes and selection are copied into an in-memory database so a
// simulation never changes persisted state.
type localController struct {
	database *db.DB
	host     *host.Memory
	parts    *components
}

func newLocalController(ctx context.Context) (*localController, error) {
	stored, err := openDatabase(ctx)
	if err != nil {
		return nil, err
	}
	themes, err := db.NewThemeRepository(stored).List(ctx)
	if err != nil {
		stored.Close()
		return nil, fmt.Errorf("failed to list themes: %w", err)
	}
	active, err := db.NewSettingsRepository(stored).ActiveThemeID(ctx)
	stored.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to load active theme: %w", err)
	}

	mem, err := db.OpenInMemory()
	if err != nil {
		return nil, err
	}
	if _, err := mem.MigrateUp(ctx); err != nil {
		mem.Close()
		return nil, err
	}
	if len(themes) > 0 {
		if err := db.NewThemeRepository(mem).SaveAll(ctx, themes); err != nil {
			mem.Close()
			return nil, err
		}
	}
	if active != "" {
		if err := db.NewSettingsRepository(mem).SaveActiveThemeID(ctx, &active); err != nil {
			mem.Close()
			return nil, err
		}
	}

	hc, err := simulatedHostConfig(simHostKind, simHostMode)
	if err != nil {
		mem.Close()
		return nil, err
	}
	memHost := host.NewMemory(hc)

	parts, err := buildComponents(ctx, mem, memHost)
	if err != nil {
		mem.Close()
		return nil, err
	}
	if _, err := parts.svc.Reload(ctx); err != nil {
		mem.Close()
		return nil, err
	}
	memHost.ResetCalls()

	return &localController{database: mem, host: memHost, parts: parts}, nil
}

func (c *localController) Close() error {
	return c.database.Close()
}

func (c *localController) SetActive(ctx context.Context, id string) (appearance.Result, error) {
	return c.parts.svc.SetActiveTheme(ctx, id)
}

func (c *localController) Cycle(ctx context.Context, direction int) (appearance.Result, error) {
	return c.parts.svc.CycleTheme(ctx, direction)
}

func (c *localController) Toggle(ctx context.Context) (bool, error) {
	return c.parts.svc.ToggleTheme(ctx)
}

func (c *localController) ReloadBase(ctx context.Context) error {
	return c.parts.svc.ReloadBaseStyles(ctx)
}

func (c *localController) Status(ctx context.Context) (api.StatusResponse, error) {
	return api.StatusResponse{Status: c.parts.svc.Status(), HostConnected: true}, nil
}

func (c *localController) CSS(ctx context.Context) (string, error) {
	return c.parts.svc.CSS(), nil
}

func (c *localController) Themes(ctx context.Context) ([]*models.Theme, error) {
	return c.parts.store.List(), nil
}

// withController runs fn against the daemon, or a simulation with --simulate.
func withController(cmd *cobra.Command, fn func(ctx context.Context, c controller) error) error {
	ctx := commandContext(cmd)
	if !simulate {
		return fn(ctx, newDaemonClient(daemonURL(), 0))
	}

	local, err := newLocalController(ctx)
	if err != nil {
		return err
	}
	defer local.Close()
	if err := fn(ctx, local); err != nil {
		return err
	}
	if !IsJSONOutput() && !IsJSONLOutput() {
		fmt.Fprintf(os.Stderr, "simulated %s\n", local.host)
	}
	return nil
}

func printResult(ctx context.Context, c controller, res appearance.Result) error {
	if IsJSONOutput() || IsJSONLOutput() {
		return WriteOutput(os.Stdout, res)
	}
	if res.ThemeID == "" {
		fmt.Println("Active theme: none")
	} else if !res.Resolved {
		fmt.Printf("Active theme: %s (not found, base styles only)\n", res.ThemeID)
	} else {
		fmt.Printf("Active theme: %s\n", res.ThemeID)
	}
	fmt.Printf("Mode:    %s\n", formatConverged(res.Converged))
	fmt.Printf("Styling: %s\n", formatApplied(res.Applied))

	if !res.Converged {
		if st, err := c.Status(ctx); err == nil && st.LastSync != nil {
			printReport(*st.LastSync)
		}
	}
	return nil
}

func printReport(report modesync.Report) {
	fmt.Printf("Last sync to %s (%s):\n", report.Target, formatDuration(report.Duration))
	rows := make([][]string, 0, len(report.Attempts))
	for _, a := range report.Attempts {
		rows = append(rows, []string{a.Strategy, formatOutcome(a.Outcome), formatDuration(a.Duration)})
	}
	_ = writeTable(os.Stdout, []string{"  LAYER", "OUTCOME", "TOOK"}, indentRows(rows))
	if report.Reapplied {
		fmt.Println("  forced override re-applied")
	}
}

func indentRows(rows [][]string) [][]string {
	for _, row := range rows {
		if len(row) > 0 {
			row[0] = "  " + row[0]
		}
	}
	return rows
}

var useCmd = &cobra.Command{
	Use:   "use <theme>",
	Short: "Select the active theme",
	Long: `Select the active theme, switching the host to the theme's mode
first. With --none the selection is cleared and only base styles remain.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if useNone {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		id := ""
		if !useNone {
			ctx := commandContext(cmd)
			session, err := openThemeSession(ctx)
			if err != nil {
				return err
			}
			theme, err := findTheme(session.store, args[0])
			session.Close()
			if err != nil {
				return err
			}
			id = theme.ID
		}

		return withController(cmd, func(ctx context.Context, c controller) error {
			step := startProgress("Applying theme")
			res, err := c.SetActive(ctx, id)
			if err != nil {
				step.Fail(err)
				return err
			}
			step.Finish(res)
			return printResult(ctx, c, res)
		})
	},
}

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Select the next theme in name order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		direction := 1
		if cyclePrev {
			direction = -1
		}
		return withController(cmd, func(ctx context.Context, c controller) error {
			step := startProgress("Cycling theme")
			res, err := c.Cycle(ctx, direction)
			if err != nil {
				step.Fail(err)
				return err
			}
			step.Finish(res)
			return printResult(ctx, c, res)
		})
	},
}

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle theme styling without changing the selection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd, func(ctx context.Context, c controller) error {
			applied, err := c.Toggle(ctx)
			if err != nil {
				return err
			}
			if IsJSONOutput() || IsJSONLOutput() {
				return WriteOutput(os.Stdout, api.ToggleResponse{Applied: applied})
			}
			fmt.Printf("Styling: %s\n", formatApplied(applied))
			return nil
		})
	},
}

var reloadBaseCmd = &cobra.Command{
	Use:   "reload-base",
	Short: "Reload the base stylesheet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd, func(ctx context.Context, c controller) error {
			if err := c.ReloadBase(ctx); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "Base styles reloaded.")
			return nil
		})
	},
}

var cssCmd = &cobra.Command{
	Use:   "css",
	Short: "Print the injected theme CSS",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd, func(ctx context.Context, c controller) error {
			css, err := c.CSS(ctx)
			if err != nil {
				return err
			}
			fmt.Print(css)
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active theme and last mode sync",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withController(cmd, func(ctx context.Context, c controller) error {
			st, err := c.Status(ctx)
			if err != nil {
				return err
			}
			var css string
			if statusShowCSS {
				if css, err = c.CSS(ctx); err != nil {
					return err
				}
			}

			if IsJSONOutput() || IsJSONLOutput() {
				out := map[string]any{"status": st}
				if statusShowCSS {
					out["css"] = css
				}
				return WriteOutput(os.Stdout, out)
			}

			active := st.ActiveThemeID
			if active == "" {
				active = "none"
			}
			fmt.Printf("Active theme: %s\n", active)
			fmt.Printf("Styling:      %s\n", formatApplied(st.Applied))
			fmt.Printf("Themes:       %d\n", st.ThemeCount)
			fmt.Printf("Host:         %s\n", formatYesNo(st.HostConnected))
			if len(st.Capabilities) > 0 {
				fmt.Printf("Capabilities: %s\n", strings.Join(st.Capabilities, ", "))
			}
			if st.LastSync != nil {
				printReport(*st.LastSync)
			}
			if statusShowCSS {
				fmt.Println()
				fmt.Print(css)
			}
			return nil
		})
	},
}
