package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorityFor(t *testing.T) {
	tests := []struct {
		state  GameState
		host   bool
		regime Regime
	}{
		{GameStateMenu, false, LocalAuthority},
		{GameStateMenu, true, LocalAuthority},
		{GameStateLobby, true, LocalAuthority},
		{GameStateLobby, false, Observer},
		{GameStateTasks, true, Observer},
		{GameStateDiscussion, true, Observer},
		{GameStateNone, false, Observer},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			assert.Equal(t, tt.regime, AuthorityFor(tt.state, tt.host), "host=%v", tt.host)
		})
	}
}

func TestCanResetSettings(t *testing.T) {
	tests := []struct {
		state GameState
		host  bool
		want  bool
	}{
		{GameStateNone, true, true},
		{GameStateTasks, false, true},
		{GameStateTasks, true, false},
		{GameStateDiscussion, true, false},
		{GameStateMenu, true, true},
		{GameStateLobby, true, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanResetSettings(tt.state, tt.host), "%s host=%v", tt.state, tt.host)
	}
}

func TestLobbyEditor_ObserverNeverWrites(t *testing.T) {
	w := &fakeWriter{}
	e := NewLobbyEditor(NewReducer(w, nil), nil)
	e.SetGameState(GameStateLobby, false)

	state := Defaults()
	next, err := e.Edit(context.Background(), state, LobbyHaunting, true)

	assert.ErrorIs(t, err, ErrObserver)
	assert.Equal(t, state, next)
	assert.Empty(t, w.calls)
	assert.False(t, e.Editable())
}

func TestLobbyEditor_LocalAuthority(t *testing.T) {
	w := &fakeWriter{}
	e := NewLobbyEditor(NewReducer(w, nil), nil)
	require.Equal(t, LocalAuthority, e.SetGameState(GameStateLobby, true))

	next, err := e.Edit(context.Background(), Defaults(), LobbyMaxDistance, 7)
	require.NoError(t, err)

	assert.Equal(t, 7.0, next.LocalLobbySettings.MaxDistance)
	require.Len(t, w.calls, 1)
	assert.Equal(t, KeyLocalLobbySettings, w.calls[0].group)

	require.NotNil(t, e.override)
	assert.Equal(t, 7.0, e.View(Defaults()).MaxDistance, "override shown over stored state")

	e.Discard()
	assert.Nil(t, e.override)
	assert.Equal(t, 5.32, e.View(Defaults()).MaxDistance)
}

func TestLobbyEditor_ObserverViewsRemote(t *testing.T) {
	e := NewLobbyEditor(NewReducer(nil, nil), nil)
	e.SetGameState(GameStateTasks, true)

	remote := DefaultLobbySettings()
	remote.MaxDistance = 2
	e.Receive(ReplaceLobby{State: remote})
	e.Receive(SetLobbyValue{Key: LobbyVisionHearing, Value: true})

	local := Defaults()
	local.LocalLobbySettings.MaxDistance = 9

	view := e.View(local)
	assert.Equal(t, 2.0, view.MaxDistance)
	assert.True(t, view.VisionHearing)
	assert.Equal(t, Observer, e.Regime())
}
