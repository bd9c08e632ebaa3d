package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"macrotrack/internal/bootstrap"
	"macrotrack/internal/modules/fasting/domain"
	"macrotrack/internal/modules/fasting/dto"
	"macrotrack/internal/platform/config"
	apperrors "macrotrack/internal/platform/errors"
	"macrotrack/internal/platform/logging"
)

const defaultPerson = "default"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootFlags struct {
	dataDir    string
	configPath string
	person     string
	timezone   string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "macrotrack",
		Short:         "Track fasting sessions and streaks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", defaultDataDir(), "directory holding the database, config and reports")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default <data-dir>/config.yaml)")
	root.PersistentFlags().StringVarP(&flags.person, "person", "p", "", "person whose log to use (default from config, then \""+defaultPerson+"\")")
	root.PersistentFlags().StringVar(&flags.timezone, "timezone", "", "IANA timezone for calendar days (default from config, then local)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddCommand(
		newStartCmd(flags),
		newEndCmd(flags),
		newToggleCmd(flags),
		newStatusCmd(flags),
		newHistoryCmd(flags),
		newStreakCmd(flags),
		newActiveCmd(flags),
		newLastCmd(flags),
		newExportCmd(flags),
		newImportCmd(flags),
		newReportCmd(flags),
		newWipeCmd(flags),
		newTUICmd(flags),
	)
	return root
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "macrotrack")
	}
	return ".macrotrack"
}

func loadApp(ctx context.Context, cmd *cobra.Command, flags *rootFlags) (*bootstrap.App, error) {
	cfg, err := config.Load(flags.dataDir, flags.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.SetTimezone(flags.timezone); err != nil {
		return nil, err
	}
	level := logging.ParseLevel(cfg.LogLevel)
	if flags.verbose {
		level = logging.ParseLevel("debug")
	}
	return bootstrap.New(ctx, cfg, logging.New(cmd.ErrOrStderr(), level))
}

// withApp opens the app for the duration of fn and resolves the acting person.
func withApp(cmd *cobra.Command, flags *rootFlags, fn func(ctx context.Context, app *bootstrap.App, person string) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := loadApp(ctx, cmd, flags)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(); err == nil {
			err = closeErr
		}
	}()
	person := strings.TrimSpace(flags.person)
	if person == "" {
		person = app.Config.Person
	}
	if person == "" {
		person = defaultPerson
	}
	return fn(ctx, app, person)
}

func newStartCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start a fast (no-op when one is already running)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App, person string) error {
				out, err := app.FastingCLI.Start(ctx, person)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "fasting since %s (%s)\n", clockTime(out.StartAt, app), out.ID)
				return nil
			})
		},
	}
}

func newEndCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "end",
		Short: "End the running fast",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App, person string) error {
				out, err := app.FastingCLI.End(ctx, person)
				if err != nil {
					return err
				}
				if !out.Ended {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no fast in progress")
					return nil
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "fast ended after %s (%s)\n", duration(out.Session), out.Session.ID)
				return nil
			})
		},
	}
}

func newToggleCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "End the running fast, or start one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App, person string) error {
				out, err := app.FastingCLI.Toggle(ctx, person)
				if err != nil {
					return err
				}
				if out.Action == dto.ActionStarted {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "started fasting at %s (%s)\n", clockTime(out.Session.StartAt, app), out.Session.ID)
				} else {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "fast ended after %s (%s)\n", duration(out.Session), out.Session.ID)
				}
				return nil
			})
		},
	}
}

func newStatusCmd(flags *rootFlags) *cobra.Command {
	var preset float64
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current fast, the last one and the streak",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App, person string) error {
				out, err := app.FastingCLI.Status(ctx, person, preset)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(w, "person: %s\n", out.PersonID)
				_, _ = fmt.Fprintln(w, out.DurationLabel)
				if out.TargetEndLabel != "" {
					_, _ = fmt.Fprintln(w, out.TargetEndLabel)
				}
				_, _ = fmt.Fprintf(w, "streak: %d day(s)\n", out.Streak)
				_, _ = fmt.Fprintf(w, "next: %s\n", out.CTALabel)
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&preset, "preset", 0, "target fast length in hours (default from config)")
	return cmd
}

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	var from, to string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App, person string) error {
				sessions, err := app.FastingCLI.History(ctx, person, from, to, limit)
				if err != nil {
					return err
				}
				if len(sessions) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
					return nil
				}
				for _, s := range sessions {
					end := "open"
					if s.EndAt != nil {
						end = clockTime(*s.EndAt, app)
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\n", s.DateKey, clockTime(s.StartAt, app), end, duration(s), s.ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum sessions to show (0 for all)")
	return cmd
}

func newStreakCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "streak",
		Short: "Print consecutive days with a completed fast",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App, person string) error {
				streak, err := app.FastingCLI.Streak(ctx, person)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), streak)
				return nil
			})
		},
	}
}

func newActiveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "Print the fast in progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App, person string) error {
				s, err := app.FastingCLI.GetActive(ctx, person)
				if errors.Is(err, apperrors.ErrNoActiveSession) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no fast in progress")
					return nil
				}
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\topen\t%s\t%s\n", s.DateKey, clockTime(s.StartAt, app), duration(s), s.ID)
				return nil
			})
		},
	}
}

func newLastCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "last",
		Short: "Print the most recent completed fast",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App, person string) error {
				s, err := app.FastingCLI.GetLastCompleted(ctx, person)
				if errors.Is(err, apperrors.ErrNotFound) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no completed fast")
					return nil
				}
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\n", s.DateKey, clockTime(s.StartAt, app), clockTime(*s.EndAt, app), duration(s), s.ID)
				return nil
			})
		},
	}
}

func newExportCmd(flags *rootFlags) *cobra.Command {
	var format, outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every person's sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App, _ string) (err error) {
				var w io.Writer = cmd.OutOrStdout()
				if outPath != "" && outPath != "-" {
					f, createErr := os.Create(outPath)
					if createErr != nil {
						return fmt.Errorf("create export file: %w", createErr)
					}
					defer func() {
						if closeErr := f.Close(); err == nil {
							err = closeErr
						}
					}()
					w = f
				}
				out, err := app.FastingCLI.Export(ctx, w, format)
				if err != nil {
					return err
				}
				if outPath != "" && outPath != "-" {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "exported %d session(s) as %s to %s\n", out.Count, out.Format, outPath)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "json|yaml|markdown")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newImportCmd(flags *rootFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace all sessions with the contents of an export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App, _ string) error {
				var r io.Reader = cmd.InOrStdin()
				if args[0] != "-" {
					f, err := os.Open(args[0])
					if err != nil {
						return fmt.Errorf("open import file: %w", err)
					}
					defer func() { _ = f.Close() }()
					r = f
				}
				if format == "" {
					format = formatFromPath(args[0])
				}
				out, err := app.FastingCLI.Import(ctx, r, format)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d session(s), dropped %d", out.Accepted, out.Rejected)
				if out.Duplicates > 0 {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), ", %d duplicate id(s) overwritten", out.Duplicates)
				}
				if out.Reconciled > 0 {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), ", closed %d extra open session(s)", out.Reconciled)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout())
				if out.NewerVersion {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "warning: file was written by a newer macrotrack; unknown fields were ignored")
				}
				if out.ChecksumMismatch {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "warning: checksum does not match; the file was edited or truncated")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "json|yaml (default from file extension)")
	return cmd
}

func newReportCmd(flags *rootFlags) *cobra.Command {
	var notePath string
	var recent int
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write or refresh a markdown note summarising the log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App, person string) error {
				out, err := app.FastingCLI.Report(ctx, person, notePath, recent)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "report written to %s (streak %d)\n", out.Path, out.Streak)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&notePath, "note", "", "note to update (default <data-dir>/fasting-<person>.md)")
	cmd.Flags().IntVar(&recent, "recent", 10, "sessions to list in the note")
	return cmd
}

func newWipeCmd(flags *rootFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete every session of every person",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("%w: wipe deletes all data; pass --yes to confirm", apperrors.ErrInvalidInput)
			}
			return withApp(cmd, flags, func(ctx context.Context, app *bootstrap.App, _ string) error {
				if err := app.FastingCLI.Wipe(ctx); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "all sessions deleted")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func newTUICmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the fasting timer UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(_ context.Context, app *bootstrap.App, person string) error {
				return bootstrap.RunTUI(app, person)
			})
		},
	}
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".md", ".markdown":
		return "markdown"
	default:
		return "json"
	}
}

func clockTime(ms int64, app *bootstrap.App) string {
	return domain.FormatClock(ms, app.Config.Location)
}

func duration(s dto.SessionOutput) string {
	return domain.FormatDuration(s.DurationMs)
}
