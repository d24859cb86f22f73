// Package app runs a settings session: it owns the in-memory settings,
// routes every change through the reducer and store, and forwards the
// resulting change events to the host process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"sync"

	"github.com/dshills/crewsettings/internal/config/notify"
	"github.com/dshills/crewsettings/internal/config/store"
	"github.com/dshills/crewsettings/internal/config/watcher"
	"github.com/dshills/crewsettings/internal/logging"
	"github.com/dshills/crewsettings/internal/settings"
)

// Change sources attached to published events.
const (
	SourceUser   = "user"
	SourceLoad   = "load"
	SourceReload = "reload"
	SourceReset  = "reset"
	SourceDetect = "detect"
)

// Session holds the live settings. All mutations, whether from the user,
// the file watcher or the remote lobby feed, are serialized by mu. The
// store reads behind Open, Reset and Reload run under mu as well.
type Session struct {
	mu sync.Mutex

	store    *store.Store
	reducer  *settings.Reducer
	lobby    *settings.LobbyEditor
	notifier *notify.Notifier
	metrics  *Metrics
	logger   *slog.Logger
	subs     []*notify.Subscription

	host   HostSignals
	window Window
	locale string
	secret func() (string, error)

	state     settings.Settings
	gameState settings.GameState
	isHost    bool
	restart   map[settings.Key]struct{}
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithHost sets the receiver of host signals.
func WithHost(host HostSignals) Option {
	return func(s *Session) {
		if host != nil {
			s.host = host
		}
	}
}

// WithWindow sets the main window.
func WithWindow(window Window) Option {
	return func(s *Session) {
		if window != nil {
			s.window = window
		}
	}
}

// WithLocale overrides the OS locale used for language detection.
func WithLocale(locale string) Option {
	return func(s *Session) {
		s.locale = locale
	}
}

// WithNotifier shares a notifier with other subscribers.
func WithNotifier(n *notify.Notifier) Option {
	return func(s *Session) {
		s.notifier = n
	}
}

// WithMetrics sets the metrics tracker.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// NewSession creates a session over st. The session holds defaults until
// Open is called.
func NewSession(st *store.Store, opts ...Option) *Session {
	s := &Session{
		store:   st,
		host:    nopHost{},
		window:  nopWindow{},
		secret:  GenerateOBSSecret,
		state:   settings.Defaults(),
		restart: make(map[settings.Key]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.WithComponent(s.logger, "session")
	if s.notifier == nil {
		s.notifier = notify.New()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}

	s.reducer = settings.NewReducer(st, s.logger)
	s.lobby = settings.NewLobbyEditor(s.reducer, s.logger)
	s.subs = bindHost(s.notifier, s.host, s.window, s.State)
	return s
}

// Open loads settings from the store, detects the UI language when it has
// never been set and makes sure an enabled overlay has a secret. A storage
// read failure is returned after the session falls back to defaults.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	st, loadErr := s.store.Load(ctx)
	if loadErr != nil {
		s.logger.Error("loading settings failed, using defaults", "error", loadErr)
		loadErr = NewComponentError("store", "load", loadErr)
	}
	changes := s.replaceLocked(ctx, st, SourceLoad)
	s.mu.Unlock()

	s.publish(changes)
	s.notifier.NotifyReload(SourceLoad)

	s.detectLanguage(ctx)
	s.ensureOBSSecret(ctx)
	return loadErr
}

// State returns a copy of the current settings.
func (s *Session) State() settings.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Notifier returns the change notifier.
func (s *Session) Notifier() *notify.Notifier {
	return s.notifier
}

// Metrics returns the session metrics.
func (s *Session) Metrics() *Metrics {
	return s.metrics
}

// Dispatch applies action and publishes the resulting changes.
func (s *Session) Dispatch(ctx context.Context, action settings.Action) settings.Settings {
	return s.dispatch(ctx, action, SourceUser)
}

func (s *Session) dispatch(ctx context.Context, action settings.Action, source string) settings.Settings {
	s.mu.Lock()
	prev := s.state
	next := s.reducer.Reduce(ctx, prev, action)
	s.state = next
	changes := diff(prev, next, source)
	if _, ok := action.(settings.SetOne); ok {
		for _, c := range changes {
			if k := settings.Key(c.Path); k.NeedsRestart() {
				s.restart[k] = struct{}{}
			}
		}
	}
	s.mu.Unlock()

	s.metrics.RecordDispatch()
	s.publish(changes)
	return next.Clone()
}

// Set validates value for key and applies it. The server address is
// normalized first; an invalid address keeps the previous value.
func (s *Session) Set(ctx context.Context, key settings.Key, value any) error {
	if !key.Valid() {
		s.metrics.RecordRejected()
		return NewOperationError("set", string(key), settings.ErrUnknownKey)
	}

	if key == settings.KeyServerURL {
		raw, ok := value.(string)
		if !ok {
			s.metrics.RecordRejected()
			return NewOperationError("set", string(key), fmt.Errorf("%w: %T", ErrUnsupportedValue, value))
		}
		normalized, err := settings.ValidateServerURL(raw)
		if err != nil {
			s.metrics.RecordRejected()
			return NewOperationError("set", string(key), err)
		}
		value = normalized
	}

	if _, err := settings.CheckValue(string(key), value); err != nil {
		s.metrics.RecordRejected()
		return NewOperationError("set", string(key), err)
	}

	s.dispatch(ctx, settings.SetOne{Key: key, Value: value}, SourceUser)

	if key == settings.KeyOBSOverlay {
		s.ensureOBSSecret(ctx)
	}
	return nil
}

// SetLobby edits a local lobby setting. It fails with settings.ErrObserver
// unless this client currently has authority over the lobby.
func (s *Session) SetLobby(ctx context.Context, key settings.LobbyKey, value any) error {
	if !key.Valid() {
		s.metrics.RecordRejected()
		return NewOperationError("set-lobby", key.Path(), settings.ErrUnknownKey)
	}
	if _, err := settings.CheckValue(key.Path(), value); err != nil {
		s.metrics.RecordRejected()
		return NewOperationError("set-lobby", key.Path(), err)
	}

	s.mu.Lock()
	prev := s.state
	next, err := s.lobby.Edit(ctx, prev, key, value)
	if err != nil {
		s.mu.Unlock()
		s.metrics.RecordRejected()
		return NewOperationError("set-lobby", key.Path(), err)
	}
	s.state = next
	changes := diff(prev, next, SourceUser)
	s.mu.Unlock()

	s.metrics.RecordDispatch()
	s.publish(changes)
	return nil
}

// SetGameState records the current game phase. Moving to another phase
// discards the local lobby override.
func (s *Session) SetGameState(state settings.GameState, isHost bool) settings.Regime {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state != s.gameState {
		s.lobby.Discard()
	}
	s.gameState, s.isHost = state, isHost
	return s.lobby.SetGameState(state, isHost)
}

// LobbyView returns the lobby settings that apply right now.
func (s *Session) LobbyView() settings.LobbySettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lobby.View(s.state)
}

// Editable reports whether lobby settings may be edited locally.
func (s *Session) Editable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lobby.Editable()
}

// FollowRemoteLobby feeds lobby settings announced by the session host into
// the observer shadow until ctx ends or updates is closed.
func (s *Session) FollowRemoteLobby(ctx context.Context, updates <-chan settings.LobbySettings) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case lobby, ok := <-updates:
			if !ok {
				return nil
			}
			s.mu.Lock()
			s.lobby.Receive(settings.ReplaceLobby{State: lobby})
			s.mu.Unlock()
			s.metrics.RecordRemoteUpdate()
		}
	}
}

// Reset erases stored settings and restores defaults. It is refused while
// a game is in progress unless this client is neither host nor in a game.
// A storage failure is logged; the session still switches to defaults.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	if !settings.CanResetSettings(s.gameState, s.isHost) {
		s.mu.Unlock()
		return ErrResetNotAllowed
	}

	defaults, err := s.store.Clear(ctx)
	if err != nil {
		s.logger.Warn("reset could not be persisted", "error", err)
	}
	clear(s.restart)
	changes := s.replaceLocked(ctx, defaults, SourceReset)
	s.mu.Unlock()

	s.publish(changes)
	s.metrics.RecordReset()
	s.notifier.NotifyReset(SourceReset)
	return nil
}

// Reload re-reads the store, replacing the in-memory state and dropping
// the lobby override. On a read failure the current state is kept.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	st, err := s.store.Load(ctx)
	if err != nil {
		s.mu.Unlock()
		return NewComponentError("store", "reload", err)
	}
	changes := s.replaceLocked(ctx, st, SourceReload)
	s.mu.Unlock()

	s.publish(changes)
	s.metrics.RecordReload()
	s.notifier.NotifyReload(SourceReload)
	return nil
}

// Watch reloads the session whenever w reports an external edit. It blocks
// until ctx ends.
func (s *Session) Watch(ctx context.Context, w *watcher.Watcher) error {
	err := w.Run(ctx, func(ev watcher.Event) {
		if ev.Op == watcher.OpRemove || ev.Op == watcher.OpRename {
			s.logger.Debug("settings file moved away, keeping state", "op", ev.Op)
			return
		}
		if err := s.Reload(ctx); err != nil {
			s.logger.Warn("reload failed", "error", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// NeedsReload reports whether a setting that only applies after the voice
// session restarts has been changed.
func (s *Session) NeedsReload() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.restart) > 0
}

// PendingRestart lists the changed restart-only keys in display order.
func (s *Session) PendingRestart() []settings.Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []settings.Key
	for _, k := range settings.RestartKeys {
		if _, ok := s.restart[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// AcknowledgeRestart clears the pending restart list.
func (s *Session) AcknowledgeRestart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.restart)
}

// Close detaches the host from the notifier.
func (s *Session) Close() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
}

// replace swaps in st and drops the lobby override.
// replaceLocked swaps in st and drops the lobby override. The caller holds
// s.mu and publishes the returned changes after unlocking.
func (s *Session) replaceLocked(ctx context.Context, st settings.Settings, source string) []notify.Change {
	prev := s.state
	s.state = s.reducer.Reduce(ctx, prev, settings.ReplaceAll{State: st})
	s.lobby.Discard()
	s.metrics.RecordDispatch()
	return diff(prev, s.state, source)
}

func (s *Session) detectLanguage(ctx context.Context) {
	if s.State().Language != settings.UndetectedLanguage {
		return
	}

	locale := s.locale
	if locale == "" {
		locale = LocaleFromEnv(os.LookupEnv)
	}
	lang, ok := DetectLanguage(locale)
	if !ok {
		s.logger.Debug("no supported language for locale", "locale", locale)
		return
	}
	s.logger.Info("detected language", "language", lang, "locale", locale)
	s.dispatch(ctx, settings.SetOne{Key: settings.KeyLanguage, Value: lang}, SourceDetect)
}

func (s *Session) ensureOBSSecret(ctx context.Context) {
	st := s.State()
	if !st.OBSOverlay || st.OBSSecret != "" {
		return
	}
	secret, err := s.secret()
	if err != nil {
		s.logger.Error("generating overlay secret failed", "error", err)
		return
	}
	s.dispatch(ctx, settings.SetOne{Key: settings.KeyOBSSecret, Value: secret}, SourceUser)
}

func (s *Session) publish(changes []notify.Change) {
	for _, c := range changes {
		s.notifier.Notify(c)
	}
}

// diff lists every key whose value differs between prev and next. Lobby
// settings are reported per nested key.
func diff(prev, next settings.Settings, source string) []notify.Change {
	var changes []notify.Change
	for _, k := range settings.Keys {
		if k == settings.KeyLocalLobbySettings {
			continue
		}
		if a, b := prev.Get(k), next.Get(k); !reflect.DeepEqual(a, b) {
			changes = append(changes, notify.Change{Path: string(k), Type: notify.ChangeSet, OldValue: a, NewValue: b, Source: source})
		}
	}
	for _, k := range settings.LobbyKeys {
		a, b := prev.LocalLobbySettings.Get(k), next.LocalLobbySettings.Get(k)
		if !reflect.DeepEqual(a, b) {
			changes = append(changes, notify.Change{Path: k.Path(), Type: notify.ChangeSet, OldValue: a, NewValue: b, Source: source})
		}
	}
	return changes
}
