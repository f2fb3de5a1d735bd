package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/opencode-ai/themesync/internal/appearance"
	"github.com/opencode-ai/themesync/internal/db"
	"github.com/opencode-ai/themesync/internal/events"
	"github.com/opencode-ai/themesync/internal/models"
	"github.com/opencode-ai/themesync/internal/themestore"
	"github.com/spf13/cobra"
)

var (
	themeCreateMode        string
	themeCreateDescription string
	themeExportOutput      string
	themeDeleteForce       bool
)

func init() {
	rootCmd.AddCommand(themeCmd)
	themeCmd.AddCommand(themeListCmd)
	themeCmd.AddCommand(themeShowCmd)
	themeCmd.AddCommand(themeCreateCmd)
	themeCmd.AddCommand(themeDuplicateCmd)
	themeCmd.AddCommand(themeDeleteCmd)
	themeCmd.AddCommand(themeImportCmd)
	themeCmd.AddCommand(themeExportCmd)
	themeCmd.AddCommand(themeRenameCmd)
	themeCmd.AddCommand(themeDescribeCmd)
	themeCmd.AddCommand(themeModeCmd)
	themeCmd.AddCommand(themeAssignCmd)
	themeCmd.AddCommand(themeUnassignCmd)
	themeCmd.AddCommand(themeColorCmd)
	themeColorCmd.AddCommand(themeColorSetCmd)
	themeColorCmd.AddCommand(themeColorRenameCmd)
	themeColorCmd.AddCommand(themeColorDeleteCmd)

	themeCreateCmd.Flags().StringVar(&themeCreateMode, "mode", "", "required base mode (light, dark)")
	themeCreateCmd.Flags().StringVar(&themeCreateDescription, "description", "", "theme description")
	themeExportCmd.Flags().StringVarP(&themeExportOutput, "output", "o", "", "write to file instead of stdout")
	themeDeleteCmd.Flags().BoolVar(&themeDeleteForce, "force", false, "delete without confirmation")
}

const daemonNotifyTimeout = 2 * time.Second

// daemonThemes is the part of the daemon API theme edits keep in step.
type daemonThemes interface {
	ReloadThemes(ctx context.Context) (appearance.Result, error)
	DeleteTheme(ctx context.Context, id string) error
}

var newDaemonThemes = func() daemonThemes {
	return newDaemonClient(daemonURL(), daemonNotifyTimeout)
}

// themeSession bundles what theme commands need.
type themeSession struct {
	db       *db.DB
	store    *themestore.Store
	settings *db.SettingsRepository
	events   *db.EventRepository
	daemon   daemonThemes
}

func openThemeSession(ctx context.Context) (*themeSession, error) {
	database, err := openDatabase(ctx)
	if err != nil {
		return nil, err
	}
	store := themestore.New(db.NewThemeRepository(database))
	if err := store.Load(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load themes: %w", err)
	}
	return &themeSession{
		db:       database,
		store:    store,
		settings: db.NewSettingsRepository(database),
		events:   db.NewEventRepository(database),
		daemon:   newDaemonThemes(),
	}, nil
}

func (s *themeSession) Close() error {
	return s.db.Close()
}

func (s *themeSession) activeID(ctx context.Context) string {
	id, err := s.settings.ActiveThemeID(ctx)
	if err != nil {
		return ""
	}
	return id
}

func (s *themeSession) record(ctx context.Context, eventType models.EventType, id string) {
	if err := events.LogThemeChanged(ctx, s.events, eventType, id); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record event: %v\n", err)
	}
}

// syncDaemon asks a running daemon to re-read themes. Without one there is
// nothing to do; the daemon loads themes when it starts.
func (s *themeSession) syncDaemon(ctx context.Context) {
	if _, err := s.daemon.ReloadThemes(ctx); err != nil && !errors.Is(err, ErrDaemonUnreachable) {
		fmt.Fprintf(os.Stderr, "Warning: daemon did not reload themes: %v\n", err)
	}
}

// deleteTheme deletes through a running daemon, which clears the active
// selection it holds. Without a daemon the database is edited directly.
func (s *themeSession) deleteTheme(ctx context.Context, id string) error {
	err := s.daemon.DeleteTheme(ctx, id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrDaemonUnreachable) {
		return err
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, models.EventTypeThemeDeleted, id)
	if s.activeID(ctx) == id {
		if err := s.settings.SaveActiveThemeID(ctx, nil); err != nil {
			return fmt.Errorf("failed to clear active theme: %w", err)
		}
	}
	return nil
}

// withThemes runs fn with an open session.
func withThemes(cmd *cobra.Command, fn func(ctx context.Context, s *themeSession) error) error {
	ctx := commandContext(cmd)
	session, err := openThemeSession(ctx)
	if err != nil {
		return err
	}
	defer session.Close()
	return fn(ctx, session)
}

// findTheme resolves ref as an id, a case-insensitive name or a unique id prefix.
func findTheme(store *themestore.Store, ref string) (*models.Theme, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("theme id or name is required")
	}
	if theme, ok := store.Get(ref); ok {
		return theme, nil
	}

	var byName, byPrefix []*models.Theme
	for _, theme := range store.List() {
		if strings.EqualFold(theme.Name, ref) {
			byName = append(byName, theme)
		}
		if strings.HasPrefix(theme.ID, ref) {
			byPrefix = append(byPrefix, theme)
		}
	}
	for _, matches := range [][]*models.Theme{byName, byPrefix} {
		switch len(matches) {
		case 0:
			continue
		case 1:
			return matches[0], nil
		default:
			ids := make([]string, 0, len(matches))
			for _, m := range matches {
				ids = append(ids, m.ID)
			}
			return nil, fmt.Errorf("theme %q is ambiguous: %s", ref, strings.Join(ids, ", "))
		}
	}
	return nil, fmt.Errorf("theme %q not found", ref)
}

// printTheme writes an edited theme in the requested format.
func printTheme(theme *models.Theme, message string) error {
	if IsJSONOutput() || IsJSONLOutput() {
		return WriteOutput(os.Stdout, theme)
	}
	fmt.Printf("%s: %s (%s)\n", message, theme.Name, theme.ID)
	return nil
}

var themeCmd = &cobra.Command{
	Use:     "theme",
	Aliases: []string{"themes"},
	Short:   "Manage themes",
	Long:    "Create, edit, import and export color themes.",
}

var themeListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List themes",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withThemes(cmd, func(ctx context.Context, s *themeSession) error {
			themes := s.store.List()
			if IsJSONOutput() || IsJSONLOutput() {
				return WriteOutput(os.Stdout, themes)
			}
			if len(themes) == 0 {
				fmt.Println("No themes. Create one with `themesync theme create <name>`.")
				return nil
			}
			return writeTable(os.Stdout,
				[]string{"", "ID", "NAME", "MODE", "COLORS", "VARS", "BUILTIN"},
				themeRows(themes, s.activeID(ctx)))
		})
	},
}

var themeShowCmd = &cobra.Command{
	Use:   "show <theme>",
	Short: "Show a theme's palette and assignments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withThemes(cmd, func(ctx context.Context, s *themeSession) error {
			theme, err := findTheme(s.store, args[0])
			if err != nil {
				return err
			}
			if IsJSONOutput() || IsJSONLOutput() {
				return WriteOutput(os.Stdout, theme)
			}
			renderTheme(os.Stdout, theme, theme.ID == s.activeID(ctx))
			return nil
		})
	},
}

var themeCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty theme",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := models.ParseMode(themeCreateMode)
		if err != nil {
			return err
		}
		return withThemes(cmd, func(ctx context.Context, s *themeSession) error {
			theme, err := s.store.Create(ctx, args[0])
			if err != nil {
				return err
			}
			if mode != "" {
				if theme, err = s.store.SetMode(ctx, theme.ID, mode); err != nil {
					return err
				}
			}
			if themeCreateDescription != "" {
				if theme, err = s.store.SetDescription(ctx, theme.ID, themeCreateDescription); err != nil {
					return err
				}
			}
			s.record(ctx, models.EventTypeThemeCreated, theme.ID)
			s.syncDaemon(ctx)
			return printTheme(theme, "Created theme")
		})
	},
}

var themeDuplicateCmd = &cobra.Command{
	Use:     "duplicate <theme>",
	Aliases: []string{"dup", "copy"},
	Short:   "Copy a theme into a new editable theme",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withThemes(cmd, func(ctx context.Context, s *themeSession) error {
			source, err := findTheme(s.store, args[0])
			if err != nil {
				return err
			}
			theme, err := s.store.Duplicate(ctx, source.ID)
			if err != nil {
				return err
			}
			s.record(ctx, models.EventTypeThemeCreated, theme.ID)
			s.syncDaemon(ctx)
			return printTheme(theme, "Duplicated theme")
		})
	},
}

var themeDeleteCmd = &cobra.Command{
	Use:     "delete <theme>",
	Aliases: []string{"rm"},
	Short:   "Delete a theme",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withThemes(cmd, func(ctx context.Context, s *themeSession) error {
			theme, err := findTheme(s.store, args[0])
			if err != nil {
				return err
			}
			if !themeDeleteForce && !assumeYes {
				if IsNonInteractive() {
					return fmt.Errorf("refusing to delete %q without --force in non-interactive mode", theme.Name)
				}
				if !confirm(fmt.Sprintf("Delete theme %q?", theme.Name)) {
					fmt.Fprintln(os.Stderr, "Cancelled.")
					return nil
				}
			}

			if err := s.deleteTheme(ctx, theme.ID); err != nil {
				return err
			}

			if IsJSONOutput() || IsJSONLOutput() {
				return WriteOutput(os.Stdout, map[string]any{"deleted": true, "id": theme.ID})
			}
			fmt.Printf("Deleted theme %s (%s)\n", theme.Name, theme.ID)
			return nil
		})
	},
}

var themeImportCmd = &cobra.Command{
	Use:   "import <file|dir>...",
	Short: "Import themes from JSON or YAML files",
	Long: `Import themes from JSON or YAML documents. A directory imports every
.json, .yaml and .yml file in it. Ids that are missing or already taken
are regenerated.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withThemes(cmd, func(ctx context.Context, s *themeSession) error {
			var imported []*models.Theme
			var failures []string
			for _, arg := range args {
				files, order, err := themestore.ReadThemeFiles(arg)
				if err != nil {
					return err
				}
				for _, path := range order {
					theme, err := s.store.Import(ctx, files[path])
					if err != nil {
						failures = append(failures, fmt.Sprintf("%s: %v", path, err))
						continue
					}
					s.record(ctx, models.EventTypeThemeImported, theme.ID)
					imported = append(imported, theme)
				}
			}

			if len(imported) > 0 {
				s.syncDaemon(ctx)
			}

			if IsJSONOutput() || IsJSONLOutput() {
				if err := WriteOutput(os.Stdout, imported); err != nil {
					return err
				}
			} else {
				for _, theme := range imported {
					fmt.Printf("Imported %s (%s)\n", theme.Name, theme.ID)
				}
			}
			if len(failures) > 0 {
				for _, f := range failures {
					fmt.Fprintln(os.Stderr, "Error:", f)
				}
				return fmt.Errorf("%d of %d files failed to import", len(failures), len(failures)+len(imported))
			}
			return nil
		})
	},
}

var themeExportCmd = &cobra.Command{
	Use:   "export [theme]",
	Short: "Export a theme, or every theme, as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withThemes(cmd, func(ctx context.Context, s *themeSession) error {
			var data []byte
			var err error
			if len(args) == 0 {
				data, err = s.store.ToJSON()
			} else {
				var theme *models.Theme
				if theme, err = findTheme(s.store, args[0]); err != nil {
					return err
				}
				data, err = s.store.Export(theme.ID)
			}
			if err != nil {
				return err
			}

			if themeExportOutput == "" {
				_, err = os.Stdout.Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(themeExportOutput, append(data, '\n'), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", themeExportOutput, err)
			}
			fmt.Fprintf(os.Stderr, "Wrote %s\n", themeExportOutput)
			return nil
		})
	},
}

// editCommand builds a command that applies one store edit to a theme.
func editCommand(use, short string, nargs int, message string, edit func(ctx context.Context, store *themestore.Store, id string, args []string) (*models.Theme, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withThemes(cmd, func(ctx context.Context, s *themeSession) error {
				theme, err := findTheme(s.store, args[0])
				if err != nil {
					return err
				}
				updated, err := edit(ctx, s.store, theme.ID, args[1:])
				if err != nil {
					if errors.Is(err, themestore.ErrBuiltinReadOnly) {
						return &PreflightError{
							Message:  err.Error(),
							Hint:     "Built-in themes cannot be edited",
							NextStep: "themesync theme duplicate " + theme.ID,
						}
					}
					return err
				}
				s.syncDaemon(ctx)
				return printTheme(updated, message)
			})
		},
	}
}

var themeRenameCmd = editCommand("rename <theme> <name>", "Rename a theme", 2, "Renamed theme",
	func(ctx context.Context, store *themestore.Store, id string, args []string) (*models.Theme, error) {
		return store.Rename(ctx, id, args[0])
	})

var themeDescribeCmd = editCommand("describe <theme> <description>", "Set a theme's description", 2, "Updated theme",
	func(ctx context.Context, store *themestore.Store, id string, args []string) (*models.Theme, error) {
		return store.SetDescription(ctx, id, args[0])
	})

var themeModeCmd = editCommand("mode <theme> <light|dark|none>", "Set the base mode a theme requires", 2, "Updated theme",
	func(ctx context.Context, store *themestore.Store, id string, args []string) (*models.Theme, error) {
		value := args[0]
		if strings.EqualFold(value, "none") {
			value = ""
		}
		mode, err := models.ParseMode(value)
		if err != nil {
			return nil, err
		}
		return store.SetMode(ctx, id, mode)
	})

var themeAssignCmd = editCommand("assign <theme> <VARIABLE> <color|var(--name)|name>", "Assign a semantic variable", 3, "Updated theme",
	func(ctx context.Context, store *themestore.Store, id string, args []string) (*models.Theme, error) {
		return store.Assign(ctx, id, args[0], args[1])
	})

var themeUnassignCmd = editCommand("unassign <theme> <VARIABLE>", "Remove a semantic variable assignment", 2, "Updated theme",
	func(ctx context.Context, store *themestore.Store, id string, args []string) (*models.Theme, error) {
		return store.Unassign(ctx, id, args[0])
	})

var themeColorCmd = &cobra.Command{
	Use:   "color",
	Short: "Edit a theme's palette",
}

var themeColorSetCmd = editCommand("set <theme> <name> <value>", "Add or update a palette color", 3, "Updated theme",
	func(ctx context.Context, store *themestore.Store, id string, args []string) (*models.Theme, error) {
		return store.SetColor(ctx, id, args[0], args[1])
	})

var themeColorRenameCmd = editCommand("rename <theme> <old> <new>", "Rename a palette color and its references", 3, "Updated theme",
	func(ctx context.Context, store *themestore.Store, id string, args []string) (*models.Theme, error) {
		return store.RenameColor(ctx, id, args[0], args[1])
	})

var themeColorDeleteCmd = editCommand("delete <theme> <name>", "Delete a palette color and assignments using it", 2, "Updated theme",
	func(ctx context.Context, store *themestore.Store, id string, args []string) (*models.Theme, error) {
		return store.DeleteColor(ctx, id, args[0])
	})
