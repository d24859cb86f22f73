package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"github.com/dshills/crewsettings/internal/app"
	"github.com/dshills/crewsettings/internal/config/loader"
	"github.com/dshills/crewsettings/internal/config/migration"
	"github.com/dshills/crewsettings/internal/config/notify"
	"github.com/dshills/crewsettings/internal/config/schema"
	"github.com/dshills/crewsettings/internal/config/store"
	"github.com/dshills/crewsettings/internal/config/watcher"
	"github.com/dshills/crewsettings/internal/input/capture"
	"github.com/dshills/crewsettings/internal/input/shortcut"
	"github.com/dshills/crewsettings/internal/settings"
)

// open starts a session and loads settings. A load failure is reported
// but the session continues on defaults.
func (e *env) open(ctx context.Context, opts ...app.Option) *app.Session {
	s := e.newSession(opts...)
	if err := s.Open(ctx); err != nil {
		fmt.Fprintf(e.errOut, "Warning: %v\n", err)
	}
	return s
}

func newShowCmd(e *env) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show every setting with its default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := e.open(cmd.Context())
			defer s.Close()

			rows := settingRows(s.State())
			switch format {
			case "table":
				renderTable(e.out, rows)
			case "plain":
				renderPlain(e.out, rows)
			case "auto":
				if isTerminal(e.out) {
					renderTable(e.out, rows)
				} else {
					renderPlain(e.out, rows)
				}
			default:
				return fmt.Errorf("unknown output format %q", format)
			}

			if s.NeedsReload() {
				fmt.Fprintln(e.errOut, "Note: some changes apply after the voice session restarts.")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "auto", "Output format (auto, table, plain)")
	return cmd
}

func newGetCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Long: `Print one setting. Lobby settings are addressed as
localLobbySettings.<key>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !settings.Describe().HasProperty(args[0]) {
				return fmt.Errorf("%w: %q", settings.ErrUnknownKey, args[0])
			}

			s := e.open(cmd.Context())
			defer s.Close()

			v, ok := lookup(s.State().Document(), args[0])
			if !ok {
				return fmt.Errorf("%w: %q", settings.ErrUnknownKey, args[0])
			}
			fmt.Fprintln(e.out, formatValue(v))
			return nil
		},
	}
}

func newSetCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting",
		Long: `Change one setting. Values are parsed as JSON unless the key holds
text, so numbers and booleans are written as-is: set masterVolume 150.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := e.open(ctx)
			defer s.Close()

			key := settings.Key(args[0])
			if err := s.Set(ctx, key, parseValue(args[0], args[1])); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "%s = %s\n", key, formatValue(s.State().Get(key)))
			if s.NeedsReload() {
				fmt.Fprintf(e.errOut, "Note: %s applies after the voice session restarts.\n", key)
			}
			return nil
		},
	}
}

// gameFlags select the game phase a command acts in.
type gameFlags struct {
	state  string
	isHost bool
}

func (g *gameFlags) register(cmd *cobra.Command, def string) {
	cmd.Flags().StringVar(&g.state, "state", def, "Game phase (none, menu, lobby, tasks, discussion)")
	cmd.Flags().BoolVar(&g.isHost, "host", false, "Act as the lobby host")
}

func (g *gameFlags) apply(s *app.Session) (settings.Regime, error) {
	state, err := parseGameState(g.state)
	if err != nil {
		return settings.Observer, err
	}
	return s.SetGameState(state, g.isHost), nil
}

func newSetLobbyCmd(e *env) *cobra.Command {
	var game gameFlags

	cmd := &cobra.Command{
		Use:   "set-lobby <key> <value>",
		Short: "Change one local lobby setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := e.open(ctx)
			defer s.Close()

			if _, err := game.apply(s); err != nil {
				return err
			}
			key := settings.LobbyKey(args[0])
			if err := s.SetLobby(ctx, key, parseValue(key.Path(), args[1])); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "%s = %s\n", key.Path(), formatValue(s.State().LocalLobbySettings.Get(key)))
			return nil
		},
	}
	game.register(cmd, "menu")
	return cmd
}

func newResetCmd(e *env) *cobra.Command {
	var game gameFlags

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Erase stored settings and restore defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s := e.open(ctx)
			defer s.Close()

			if _, err := game.apply(s); err != nil {
				return err
			}
			if err := s.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Settings reset to defaults (version %s).\n", e.store.CurrentVersion())
			return nil
		},
	}
	game.register(cmd, "none")
	return cmd
}

func newMigrateCmd(e *env) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending settings migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			from, err := e.store.StoredVersion(ctx)
			if errors.Is(err, store.ErrNotFound) {
				fmt.Fprintf(e.out, "No settings file; defaults will be created at version %s.\n", e.store.Registry().Latest())
				return nil
			}
			if errors.Is(err, store.ErrCorrupt) {
				fmt.Fprintln(e.out, "Settings file is unreadable; it will be replaced with defaults on next load.")
				return nil
			}
			if err != nil {
				return err
			}

			steps, err := e.store.Plan(ctx)
			if err != nil {
				return err
			}
			if len(steps) == 0 {
				fmt.Fprintf(e.out, "Settings are up to date (version %s).\n", from)
				return nil
			}

			fmt.Fprintf(e.out, "Pending migrations from %s:\n", from)
			for _, step := range steps {
				fmt.Fprintf(e.out, "  %-8s %s\n", step.Version, step.Description)
			}
			if dryRun {
				return nil
			}

			if _, err := e.store.Load(ctx); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "Migrated %s -> %s.\n", from, e.store.CurrentVersion())
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List pending migrations without applying them")
	return cmd
}

func newCaptureCmd(e *env) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "capture <shortcut-key>",
		Short: "Bind a shortcut by pressing it",
		Long: `Bind a shortcut by pressing a key or an extra mouse button in the
terminal. Escape clears the shortcut.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := settings.Key(args[0])
			if !key.IsShortcut() {
				return fmt.Errorf("%w: %q is not a shortcut", settings.ErrUnknownKey, key)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			tok, err := captureToken(ctx, e, key)
			if err != nil {
				return err
			}

			s := e.open(cmd.Context())
			defer s.Close()
			if err := s.Set(cmd.Context(), key, tok.String()); err != nil {
				return err
			}
			if tok.IsMouse() {
				fmt.Fprintf(e.out, "%s = %s (mouse)\n", key, tok)
				return nil
			}
			fmt.Fprintf(e.out, "%s = %s\n", key, tok)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Give up after this long")
	return cmd
}

func captureToken(ctx context.Context, e *env, key settings.Key) (shortcut.Token, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return "", err
	}
	if err := screen.Init(); err != nil {
		return "", err
	}
	defer screen.Fini()

	screen.EnableMouse()
	screen.Clear()
	drawText(screen, 0, fmt.Sprintf("Press a key or an extra mouse button for %s.", key))
	drawText(screen, 1, "Escape clears the shortcut.")
	screen.Show()

	c := capture.New(screen, capture.WithLogger(e.logger))
	defer c.Close()
	return c.Next(ctx)
}

func drawText(screen tcell.Screen, row int, text string) {
	for col, r := range []rune(text) {
		screen.SetContent(col, row, r, nil, tcell.StyleDefault)
	}
}

func newExportCmd(e *env) *cobra.Command {
	var (
		format     string
		raw        bool
		withSchema bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the settings document as JSON, TOML or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			f, err := loader.ParseFormat(format)
			if err != nil {
				return err
			}

			var doc map[string]any
			switch {
			case withSchema:
				doc, err = schemaDocument()
				if err != nil {
					return err
				}
			case raw:
				doc, err = e.store.Raw(ctx)
				if err != nil {
					return err
				}
			default:
				s := e.open(ctx)
				defer s.Close()
				doc = s.State().Document()
				doc[migration.VersionKey] = e.store.CurrentVersion().String()
			}

			data, err := loader.Encode(f, doc)
			if err != nil {
				return err
			}
			_, err = e.out.Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json, toml, yaml)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Export the stored document without migration or defaults")
	cmd.Flags().BoolVar(&withSchema, "schema", false, "Export the settings schema instead of the settings")
	cmd.MarkFlagsMutuallyExclusive("raw", "schema")
	return cmd
}

// schemaDocument renders the settings schema as a generic document.
func schemaDocument() (map[string]any, error) {
	data, err := json.Marshal(settings.Describe())
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func newOverlayURLCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "overlay-url",
		Short: "Print the browser-source URL for streaming software",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := e.open(cmd.Context())
			defer s.Close()

			st := s.State()
			if !st.OBSOverlay {
				fmt.Fprintln(e.errOut, "Note: the OBS overlay is disabled; enable it with: set obsOverlay true")
			}
			fmt.Fprintln(e.out, app.OverlayURL(st))
			return nil
		},
	}
}

func newWatchCmd(e *env) *cobra.Command {
	var reload bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow external edits to the settings file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if !cmd.Flags().Changed("reload") {
				reload = e.opts.Watch
			}

			w, err := watcher.New(e.backend.Path(),
				watcher.WithDebounce(e.opts.Debounce()),
				watcher.WithLogger(e.logger),
			)
			if err != nil {
				return err
			}

			fmt.Fprintf(e.out, "Watching %s (Ctrl-C to stop)\n", w.Path())
			if !reload {
				err := w.Run(ctx, func(ev watcher.Event) {
					fmt.Fprintf(e.out, "%s %s\n", ev.Time.Format(time.TimeOnly), ev.Op)
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}

			s := e.open(ctx)
			defer s.Close()
			s.Notifier().Subscribe(func(c notify.Change) {
				switch c.Type {
				case notify.ChangeSet:
					fmt.Fprintf(e.out, "%s: %s -> %s\n", c.Path, formatValue(c.OldValue), formatValue(c.NewValue))
				case notify.ChangeReload:
					fmt.Fprintf(e.out, "%s reloaded\n", c.At.Format(time.TimeOnly))
				}
			})
			return s.Watch(ctx, w)
		},
	}
	cmd.Flags().BoolVar(&reload, "reload", true, "Reload and print changed values (default from options)")
	return cmd
}

// parseValue decodes a command-line value for path. Text settings take the
// argument verbatim; everything else is read as JSON, falling back to text.
func parseValue(path, raw string) any {
	if prop := settings.Describe().GetProperty(path); prop != nil && prop.Type.Is(schema.TypeNameString) {
		return raw
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// lookup resolves a dotted path in doc.
func lookup(doc map[string]any, path string) (any, bool) {
	var current any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[part]; !ok {
			return nil, false
		}
	}
	return current, true
}

func parseGameState(s string) (settings.GameState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return settings.GameStateNone, nil
	case "menu":
		return settings.GameStateMenu, nil
	case "lobby":
		return settings.GameStateLobby, nil
	case "tasks":
		return settings.GameStateTasks, nil
	case "discussion":
		return settings.GameStateDiscussion, nil
	default:
		return settings.GameStateNone, fmt.Errorf("unknown game state %q", s)
	}
}
