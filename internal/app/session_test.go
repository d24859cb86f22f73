package app

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/crewsettings/internal/config/notify"
	"github.com/dshills/crewsettings/internal/config/store"
	"github.com/dshills/crewsettings/internal/config/watcher"
	"github.com/dshills/crewsettings/internal/logging"
	"github.com/dshills/crewsettings/internal/settings"
)

type recordingHost struct {
	mu        sync.Mutex
	hookReset int
	overlay   []bool
	onTop     []bool
}

func (h *recordingHost) ResetKeyHooks() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hookReset++
}

func (h *recordingHost) SetOverlayEnabled(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.overlay = append(h.overlay, enabled)
}

func (h *recordingHost) SetAlwaysOnTop(onTop bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onTop = append(h.onTop, onTop)
}

func (h *recordingHost) hooks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hookReset
}

func newTestSession(t *testing.T, doc map[string]any, opts ...Option) (*Session, *store.MemoryBackend, *recordingHost) {
	t.Helper()
	backend := store.NewMemoryBackend(doc)
	st := store.New(backend, store.WithLogger(logging.Discard()))
	host := &recordingHost{}

	opts = append([]Option{
		WithLogger(logging.Discard()),
		WithHost(host),
		WithWindow(host),
		WithLocale("C"),
	}, opts...)
	s := NewSession(st, opts...)
	t.Cleanup(s.Close)
	return s, backend, host
}

func TestSession_OpenCreatesDefaults(t *testing.T) {
	ctx := context.Background()
	s, backend, host := newTestSession(t, nil)

	require.NoError(t, s.Open(ctx))
	assert.Equal(t, settings.Defaults(), s.State())

	raw, err := backend.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2.4.0", raw["version"])

	assert.Equal(t, 1, host.hooks())
	assert.Equal(t, []bool{true}, host.overlay)
	assert.Equal(t, []bool{false}, host.onTop)
}

func TestSession_OpenDetectsLanguage(t *testing.T) {
	ctx := context.Background()
	s, backend, _ := newTestSession(t, nil, WithLocale("pt_BR.UTF-8"))

	require.NoError(t, s.Open(ctx))
	assert.Equal(t, "pt-BR", s.State().Language)

	raw, err := backend.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pt-BR", raw["language"])
}

func TestSession_OpenKeepsChosenLanguage(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t, map[string]any{"version": "2.4.0", "language": "fr"}, WithLocale("de_DE"))

	require.NoError(t, s.Open(ctx))
	assert.Equal(t, "fr", s.State().Language)
}

func TestSession_SetWritesThroughAndPublishes(t *testing.T) {
	ctx := context.Background()
	s, backend, _ := newTestSession(t, nil)
	require.NoError(t, s.Open(ctx))

	var got []notify.Change
	s.Notifier().SubscribePath(string(settings.KeyMasterVolume), func(c notify.Change) {
		got = append(got, c)
	})

	require.NoError(t, s.Set(ctx, settings.KeyMasterVolume, 150.0))
	assert.Equal(t, 150.0, s.State().MasterVolume)
	assert.Contains(t, backend.Patches(), "masterVolume")

	require.Len(t, got, 1)
	assert.Equal(t, 100.0, got[0].OldValue)
	assert.Equal(t, 150.0, got[0].NewValue)
	assert.Equal(t, SourceUser, got[0].Source)
}

func TestSession_SetRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s, backend, _ := newTestSession(t, nil)
	require.NoError(t, s.Open(ctx))
	patches := len(backend.Patches())

	tests := []struct {
		name  string
		key   settings.Key
		value any
		want  error
	}{
		{"unknown key", settings.Key("nope"), true, settings.ErrUnknownKey},
		{"wrong type", settings.KeyMasterVolume, "loud", settings.ErrTypeMismatch},
		{"out of range", settings.KeyMasterVolume, 500.0, settings.ErrTypeMismatch},
		{"bad shortcut", settings.KeyMuteShortcut, "Escape", settings.ErrTypeMismatch},
		{"denied server", settings.KeyServerURL, "https://discord.gg/abc", settings.ErrInvalidServerURL},
		{"server not a string", settings.KeyServerURL, 42, ErrUnsupportedValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Set(ctx, tt.key, tt.value)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var opErr *OperationError
			assert.ErrorAs(t, err, &opErr)
		})
	}

	assert.Equal(t, settings.Defaults(), s.State())
	assert.Len(t, backend.Patches(), patches)
	assert.EqualValues(t, len(tests), s.Metrics().Snapshot().Rejected)
}

func TestSession_SetServerURLNormalizes(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t, nil)
	require.NoError(t, s.Open(ctx))

	require.NoError(t, s.Set(ctx, settings.KeyServerURL, "  https://voice.example.com/  "))
	assert.Equal(t, "https://voice.example.com", s.State().ServerURL)
	assert.Equal(t, []settings.Key{settings.KeyServerURL}, s.PendingRestart())
}

func TestSession_DispatchServerURLChecked(t *testing.T) {
	ctx := context.Background()
	s, backend, _ := newTestSession(t, nil)
	require.NoError(t, s.Open(ctx))

	for _, bad := range []string{"http://discord.gg", "https://x.com/voice"} {
		st := s.Dispatch(ctx, settings.SetOne{Key: settings.KeyServerURL, Value: bad})
		assert.Equal(t, settings.Defaults().ServerURL, st.ServerURL, bad)
	}
	assert.Empty(t, backend.Patches())

	st := s.Dispatch(ctx, settings.SetOne{Key: settings.KeyServerURL, Value: "https://example.com/"})
	assert.Equal(t, "https://example.com", st.ServerURL)
	raw, err := backend.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", raw["serverURL"])
}

func TestSession_ShortcutChangeResetsHooks(t *testing.T) {
	ctx := context.Background()
	s, _, host := newTestSession(t, nil)
	require.NoError(t, s.Open(ctx))
	before := host.hooks()

	require.NoError(t, s.Set(ctx, settings.KeyPushToTalkShortcut, "MouseButton4"))
	assert.Equal(t, before+1, host.hooks())

	require.NoError(t, s.Set(ctx, settings.KeyHideCode, true))
	assert.Equal(t, before+1, host.hooks())
}

func TestSession_OverlayAndWindowSignals(t *testing.T) {
	ctx := context.Background()
	s, _, host := newTestSession(t, nil)
	require.NoError(t, s.Open(ctx))

	require.NoError(t, s.Set(ctx, settings.KeyEnableOverlay, false))
	require.NoError(t, s.Set(ctx, settings.KeyAlwaysOnTop, true))

	assert.Equal(t, []bool{true, false}, host.overlay)
	assert.Equal(t, []bool{false, true}, host.onTop)
}

func TestSession_OBSOverlayGeneratesSecret(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t, nil)
	s.secret = func() (string, error) { return "ABC123XYZ", nil }
	require.NoError(t, s.Open(ctx))

	require.NoError(t, s.Set(ctx, settings.KeyOBSOverlay, true))
	assert.Equal(t, "ABC123XYZ", s.State().OBSSecret)

	s.secret = func() (string, error) { return "", errors.New("unused") }
	require.NoError(t, s.Set(ctx, settings.KeyOBSOverlay, false))
	require.NoError(t, s.Set(ctx, settings.KeyOBSOverlay, true))
	assert.Equal(t, "ABC123XYZ", s.State().OBSSecret, "existing secret is kept")
}

func TestSession_NeedsReload(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t, nil)
	require.NoError(t, s.Open(ctx))

	assert.False(t, s.NeedsReload())

	require.NoError(t, s.Set(ctx, settings.KeyMasterVolume, 90.0))
	assert.False(t, s.NeedsReload())

	require.NoError(t, s.Set(ctx, settings.KeyNatFix, true))
	require.NoError(t, s.Set(ctx, settings.KeyMicrophone, "USB"))
	assert.True(t, s.NeedsReload())
	assert.Equal(t, []settings.Key{settings.KeyMicrophone, settings.KeyNatFix}, s.PendingRestart())

	s.AcknowledgeRestart()
	assert.False(t, s.NeedsReload())

	require.NoError(t, s.Set(ctx, settings.KeyNatFix, true))
	assert.False(t, s.NeedsReload(), "unchanged value is not counted")
}

func TestSession_SetLobbyRespectsAuthority(t *testing.T) {
	ctx := context.Background()
	s, backend, _ := newTestSession(t, nil)
	require.NoError(t, s.Open(ctx))

	err := s.SetLobby(ctx, settings.LobbyHaunting, true)
	assert.ErrorIs(t, err, settings.ErrObserver)
	assert.NotContains(t, backend.Patches(), settings.LobbyHaunting.Path())

	assert.Equal(t, settings.LocalAuthority, s.SetGameState(settings.GameStateMenu, false))
	assert.True(t, s.Editable())

	require.NoError(t, s.SetLobby(ctx, settings.LobbyHaunting, true))
	assert.True(t, s.State().LocalLobbySettings.Haunting)
	assert.True(t, s.LobbyView().Haunting)
	assert.Contains(t, backend.Patches(), settings.LobbyHaunting.Path())

	err = s.SetLobby(ctx, settings.LobbyMaxDistance, 50.0)
	assert.ErrorIs(t, err, settings.ErrTypeMismatch)
}

func TestSession_FollowRemoteLobby(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, _, _ := newTestSession(t, nil)
	require.NoError(t, s.Open(ctx))
	s.SetGameState(settings.GameStateLobby, false)

	updates := make(chan settings.LobbySettings)
	done := make(chan error, 1)
	go func() { done <- s.FollowRemoteLobby(ctx, updates) }()

	remote := settings.DefaultLobbySettings()
	remote.MaxDistance = 2.5
	remote.WallsBlockAudio = true
	updates <- remote

	assert.Eventually(t, func() bool {
		return s.LobbyView().MaxDistance == 2.5
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, settings.DefaultLobbySettings(), s.State().LocalLobbySettings, "shadow never reaches local state")

	close(updates)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, s.Metrics().Snapshot().RemoteUpdates)
}

func TestSession_FollowRemoteLobbyStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, _, _ := newTestSession(t, nil)

	cancel()
	err := s.FollowRemoteLobby(ctx, make(chan settings.LobbySettings))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSession_Reset(t *testing.T) {
	ctx := context.Background()
	s, backend, host := newTestSession(t, nil)
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.Set(ctx, settings.KeyGhostVolume, 10.0))
	require.NoError(t, s.Set(ctx, settings.KeyNatFix, true))
	hooks := host.hooks()

	require.NoError(t, s.Reset(ctx))
	assert.Equal(t, settings.Defaults(), s.State())
	assert.False(t, s.NeedsReload())
	assert.Greater(t, host.hooks(), hooks)

	raw, err := backend.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(100), raw["ghostVolume"])
}

func TestSession_ResetRefusedForHostInGame(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t, nil)
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.Set(ctx, settings.KeyGhostVolume, 10.0))

	s.SetGameState(settings.GameStateTasks, true)
	assert.ErrorIs(t, s.Reset(ctx), ErrResetNotAllowed)
	assert.Equal(t, 10.0, s.State().GhostVolume)

	s.SetGameState(settings.GameStateTasks, false)
	assert.NoError(t, s.Reset(ctx))
}

func TestSession_ResetSucceedsWhenStorageFails(t *testing.T) {
	ctx := context.Background()
	s, backend, _ := newTestSession(t, nil)
	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.Set(ctx, settings.KeyGhostVolume, 10.0))

	backend.WriteErr = errors.New("disk full")
	require.NoError(t, s.Reset(ctx))
	assert.Equal(t, settings.Defaults(), s.State())
}

func TestSession_ReloadDiscardsOverride(t *testing.T) {
	ctx := context.Background()
	s, backend, _ := newTestSession(t, nil)
	require.NoError(t, s.Open(ctx))
	s.SetGameState(settings.GameStateMenu, false)
	require.NoError(t, s.SetLobby(ctx, settings.LobbyDeadOnly, true))

	require.NoError(t, backend.Patch(ctx, "masterVolume", 42.0))
	require.NoError(t, s.Reload(ctx))

	st := s.State()
	assert.Equal(t, 42.0, st.MasterVolume)
	assert.True(t, st.LocalLobbySettings.DeadOnly)
	assert.EqualValues(t, 1, s.Metrics().Snapshot().Reloads)
}

func TestSession_SetGameStateDiscardsOverride(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t, nil)
	require.NoError(t, s.Open(ctx))

	s.SetGameState(settings.GameStateMenu, false)
	require.NoError(t, s.SetLobby(ctx, settings.LobbyVisionHearing, true))

	s.SetGameState(settings.GameStateLobby, true)
	assert.True(t, s.LobbyView().VisionHearing, "falls back to persisted lobby settings")
}

func TestSession_ConcurrentDispatch(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t, nil)
	require.NoError(t, s.Open(ctx))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Set(ctx, settings.KeyGhostVolume, float64(i))
		}(i)
	}
	wg.Wait()

	v := s.State().GhostVolume
	assert.GreaterOrEqual(t, v, 0.0)
	assert.Less(t, v, 20.0)
}

func TestSession_WatchReloadsExternalEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	st := store.New(store.NewFileBackend(path), store.WithLogger(logging.Discard()))
	s := NewSession(st, WithLogger(logging.Discard()), WithLocale("C"))
	t.Cleanup(s.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Open(ctx))

	w, err := watcher.New(path, watcher.WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, w) }()
	time.Sleep(100 * time.Millisecond)

	doc, err := st.Raw(ctx)
	require.NoError(t, err)
	doc[string(settings.KeyGhostVolume)] = 42.0
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	require.Eventually(t, func() bool {
		return s.State().GhostVolume == 42
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not stop")
	}
}

// gatedBackend pauses one Read after the document has been snapshotted.
type gatedBackend struct {
	*store.MemoryBackend
	armed   atomic.Bool
	reading chan struct{}
	release chan struct{}
}

func (b *gatedBackend) Read(ctx context.Context) (map[string]any, error) {
	doc, err := b.MemoryBackend.Read(ctx)
	if b.armed.CompareAndSwap(true, false) {
		close(b.reading)
		<-b.release
	}
	return doc, err
}

func TestSession_ReloadDoesNotLoseConcurrentSet(t *testing.T) {
	ctx := context.Background()
	backend := &gatedBackend{
		MemoryBackend: store.NewMemoryBackend(nil),
		reading:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	st := store.New(backend, store.WithLogger(logging.Discard()))
	s := NewSession(st, WithLogger(logging.Discard()), WithLocale("C"))
	t.Cleanup(s.Close)
	require.NoError(t, s.Open(ctx))

	backend.armed.Store(true)
	reloaded := make(chan error, 1)
	go func() { reloaded <- s.Reload(ctx) }()
	<-backend.reading

	set := make(chan error, 1)
	go func() { set <- s.Set(ctx, settings.KeyGhostVolume, 42) }()

	select {
	case <-set:
		t.Fatal("Set ran while Reload was reading the store")
	case <-time.After(50 * time.Millisecond):
	}

	close(backend.release)
	require.NoError(t, <-reloaded)
	require.NoError(t, <-set)

	assert.Equal(t, 42.0, s.State().GhostVolume)
	raw, err := backend.MemoryBackend.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42.0, raw["ghostVolume"])
}
