package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/crewsettings/internal/app"
	"github.com/dshills/crewsettings/internal/config/loader"
	"github.com/dshills/crewsettings/internal/config/migration"
	"github.com/dshills/crewsettings/internal/config/store"
	"github.com/dshills/crewsettings/internal/logging"
)

// rootFlags are the persistent flags shared by every command.
type rootFlags struct {
	configPath string
	dataDir    string
	logLevel   string
}

// env is the runtime built once flags are parsed.
type env struct {
	opts    loader.Options
	logger  *slog.Logger
	backend *store.FileBackend
	store   *store.Store
	out     io.Writer
	errOut  io.Writer
}

// newSession creates a session over the configured store.
func (e *env) newSession(opts ...app.Option) *app.Session {
	opts = append([]app.Option{
		app.WithLogger(e.logger),
		app.WithLocale(e.opts.Locale),
	}, opts...)
	return app.NewSession(e.store, opts...)
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var flags rootFlags
	e := &env{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "crewsettings",
		Short: "Inspect and edit proximity voice chat settings",
		Long: `crewsettings reads, validates, migrates and edits the persisted
settings document of the voice chat client.

Environment:
  ` + strings.Join(loader.EnvNames(), "\n  "),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.setup(cmd, flags)
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Options file (.toml or .yaml)")
	pf.StringVar(&flags.dataDir, "data-dir", "", "Directory holding the settings file")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newShowCmd(e),
		newGetCmd(e),
		newSetCmd(e),
		newSetLobbyCmd(e),
		newResetCmd(e),
		newMigrateCmd(e),
		newCaptureCmd(e),
		newExportCmd(e),
		newOverlayURLCmd(e),
		newWatchCmd(e),
		newVersionCmd(e),
	)
	return root
}

// setup layers the options file, the environment and the flags, then
// builds the logger and the store.
func (e *env) setup(cmd *cobra.Command, flags rootFlags) error {
	opts, err := loader.Load(flags.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("data-dir") {
		opts.DataDir = flags.dataDir
	}
	if cmd.Flags().Changed("log-level") {
		opts.LogLevel = flags.logLevel
	}
	e.opts = opts

	e.logger = logging.New(logging.Config{
		Level:  logging.ParseLevel(opts.LogLevel),
		Format: logging.Format(opts.LogFormat),
		Output: e.errOut,
		App:    "crewsettings",
	})

	regOpts := []migration.Option{migration.WithLogger(e.logger)}
	if opts.AppVersion != "" {
		target, err := semver.NewVersion(opts.AppVersion)
		if err != nil {
			return fmt.Errorf("app version %q: %w", opts.AppVersion, err)
		}
		regOpts = append(regOpts, migration.WithTarget(target))
	}

	e.backend = store.NewFileBackend(opts.SettingsPath())
	e.store = store.New(e.backend,
		store.WithLogger(e.logger),
		store.WithRegistry(migration.Default(regOpts...)),
	)
	e.logger.Debug("settings file", "path", e.backend.Path())
	return nil
}

func newVersionCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(e.out, "crewsettings %s\n", version)
			fmt.Fprintf(e.out, "Commit: %s\n", commit)
			fmt.Fprintf(e.out, "Built: %s\n", date)
			fmt.Fprintf(e.out, "Settings schema: %s\n", e.store.Registry().Latest())
			return nil
		},
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
