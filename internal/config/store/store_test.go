package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/crewsettings/internal/config/migration"
	"github.com/dshills/crewsettings/internal/settings"
)

func TestStore_LoadCreatesDefaults(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(nil)
	s := New(b)

	st, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.Defaults(), st)
	assert.Equal(t, "2.4.0", s.CurrentVersion().String())

	raw, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2.4.0", raw["version"])
	assert.Equal(t, "https://bettercrewl.ink", raw["serverURL"])
}

func TestStore_LoadMigratesAndPersists(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(map[string]any{
		"version":        "2.2.0",
		"pushToTalk":     true,
		"micSensitivity": 0.4,
		"masterVolume":   float64(80),
		"customKey":      "kept",
	})
	s := New(b)

	st, err := s.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, settings.PushToTalk, st.PushToTalkMode)
	assert.Equal(t, 0.15, st.MicSensitivity)
	assert.False(t, st.MicSensitivityEnabled)
	assert.Equal(t, 80.0, st.MasterVolume)
	assert.Equal(t, "2.4.0", s.CurrentVersion().String())

	raw, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2.4.0", raw["version"])
	assert.NotContains(t, raw, "pushToTalk")
	assert.Equal(t, "kept", raw["customKey"])
	assert.Equal(t, 1, b.Writes())
}

func TestStore_LoadUpToDateDoesNotWrite(t *testing.T) {
	b := NewMemoryBackend(map[string]any{"version": "2.4.0", "hideCode": "no"})
	s := New(b)

	st, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, st.HideCode)
	assert.Equal(t, 0, b.Writes(), "defaults are substituted in memory only")
}

func TestStore_LoadReadError(t *testing.T) {
	s := New(failingBackend{err: errors.New("permission denied")})

	st, err := s.Load(context.Background())
	assert.Error(t, err)
	assert.Equal(t, settings.Defaults(), st)
}

func TestStore_SetRoundTrip(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		key   settings.Key
		value any
		check func(t *testing.T, st settings.Settings)
	}{
		{settings.KeyMasterVolume, 150, func(t *testing.T, st settings.Settings) {
			assert.Equal(t, 150.0, st.MasterVolume)
		}},
		{settings.KeyPushToTalkMode, settings.PushToMute, func(t *testing.T, st settings.Settings) {
			assert.Equal(t, settings.PushToMute, st.PushToTalkMode)
		}},
		{settings.KeyMuteShortcut, "MouseButton4", func(t *testing.T, st settings.Settings) {
			assert.Equal(t, "MouseButton4", st.MuteShortcut)
		}},
		{settings.KeyOverlayPosition, "bottom_left", func(t *testing.T, st settings.Settings) {
			assert.Equal(t, "bottom_left", st.OverlayPosition)
		}},
		{settings.KeyPlayerConfigMap, map[string]settings.PlayerConfig{"9": {Volume: 0.3}}, func(t *testing.T, st settings.Settings) {
			assert.Equal(t, settings.PlayerConfig{Volume: 0.3}, st.PlayerConfigMap["9"])
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			s := New(NewMemoryBackend(nil))
			_, err := s.Load(ctx)
			require.NoError(t, err)

			require.NoError(t, s.Set(ctx, tt.key, tt.value))

			st, err := s.Load(ctx)
			require.NoError(t, err)
			tt.check(t, st)
		})
	}
}

func TestStore_SetRejectsMismatch(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(nil)
	s := New(b)
	_, err := s.Load(ctx)
	require.NoError(t, err)

	err = s.Set(ctx, settings.KeyAlwaysOnTop, "true")
	assert.ErrorIs(t, err, settings.ErrTypeMismatch)

	err = s.Set(ctx, settings.Key("nope"), 1)
	assert.ErrorIs(t, err, settings.ErrUnknownKey)

	err = s.SetNested(ctx, settings.KeyServerURL, settings.LobbyHaunting, true)
	assert.ErrorIs(t, err, settings.ErrUnknownKey)

	assert.Empty(t, b.Patches())
	raw, _ := b.Read(ctx)
	assert.Equal(t, false, raw["alwaysOnTop"])
}

func TestStore_SetServerURL(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(nil)
	s := New(b)
	_, err := s.Load(ctx)
	require.NoError(t, err)

	for _, bad := range []string{"http://discord.gg", "https://x.com/voice"} {
		err := s.Set(ctx, settings.KeyServerURL, bad)
		assert.Error(t, err, bad)
	}
	assert.Empty(t, b.Patches())

	require.NoError(t, s.Set(ctx, settings.KeyServerURL, "https://example.com/"))
	raw, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", raw["serverURL"])
}

func TestStore_LoadReplacesRejectedServerURL(t *testing.T) {
	tests := []string{"http://discord.gg/abc", "https://x.com/voice", "https://x.com/?a=1"}

	for _, url := range tests {
		t.Run(url, func(t *testing.T) {
			b := NewMemoryBackend(map[string]any{"version": "2.4.0", "serverURL": url})
			st, err := New(b).Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, settings.Defaults().ServerURL, st.ServerURL)
		})
	}
}

func TestStore_SetNested(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(nil)
	s := New(b)
	_, err := s.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, s.SetNested(ctx, settings.KeyLocalLobbySettings, settings.LobbyMaxDistance, 3))
	assert.Equal(t, []string{"localLobbySettings.maxDistance"}, b.Patches())

	st, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3.0, st.LocalLobbySettings.MaxDistance)
	assert.False(t, st.LocalLobbySettings.Haunting)
}

func TestStore_SetWithoutDocumentCreatesIt(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(nil)
	s := New(b)

	require.NoError(t, s.Set(ctx, settings.KeyNatFix, true))

	raw, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, true, raw["natFix"])
	assert.Equal(t, "2.4.0", raw["version"])
}

func TestStore_SetWriteFailure(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(map[string]any{"version": "2.4.0"})
	b.WriteErr = errors.New("disk full")
	s := New(b)

	err := s.Set(ctx, settings.KeyNatFix, true)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, settings.ErrTypeMismatch)
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(map[string]any{"version": "2.4.0", "masterVolume": float64(10), "junk": true})
	s := New(b)

	st, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.Defaults(), st)

	raw, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(100), raw["masterVolume"])
	assert.NotContains(t, raw, "junk")
	assert.Equal(t, "2.4.0", raw["version"])
}

func TestStore_PlanAndStoredVersion(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(map[string]any{"version": "2.2.1"})
	s := New(b)

	v, err := s.StoredVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2.2.1", v.String())

	steps, err := s.Plan(ctx)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, "2.2.5", steps[0].Version.String())

	empty := New(NewMemoryBackend(nil))
	steps, err = empty.Plan(ctx)
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestStore_CustomRegistry(t *testing.T) {
	r := migration.New()
	r.MustRegister("1.0.0", "set language", migration.Set("language", func() any { return "de" }))
	s := New(NewMemoryBackend(map[string]any{}), WithRegistry(r))

	st, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "de", st.Language)
	assert.Equal(t, "1.0.0", s.CurrentVersion().String())
	assert.Same(t, r, s.Registry())
}

func TestStore_FileBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", DefaultFileName)
	s := New(NewFileBackend(path))

	_, err := s.Load(ctx)
	require.NoError(t, err)
	require.FileExists(t, path)

	require.NoError(t, s.Set(ctx, settings.KeyServerURL, "https://example.com"))
	require.NoError(t, s.SetNested(ctx, settings.KeyLocalLobbySettings, settings.LobbyDeadOnly, true))

	st, err := New(NewFileBackend(path)).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", st.ServerURL)
	assert.True(t, st.LocalLobbySettings.DeadOnly)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStore_FileBackendCorrupt(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := New(NewFileBackend(path))
	st, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.Defaults(), st)

	raw, err := NewFileBackend(path).Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2.4.0", raw["version"])
}

type failingBackend struct {
	err error
}

func (f failingBackend) Read(context.Context) (map[string]any, error) { return nil, f.err }
func (f failingBackend) Write(context.Context, map[string]any) error { return f.err }
func (f failingBackend) Patch(context.Context, string, any) error { return f.err }
func (f failingBackend) Peek(context.Context, string) (any, bool, error) { return nil, false, f.err }
func (f failingBackend) Remove(context.Context) error { return f.err }
