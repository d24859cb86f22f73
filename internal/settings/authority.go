package settings

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dshills/crewsettings/internal/logging"
)

// ErrObserver is returned for lobby edits made without local authority.
var ErrObserver = errors.New("lobby settings are controlled by the host")

// GameState is the game phase reported by the game reader.
type GameState int

const (
	// GameStateNone means no game has been detected.
	GameStateNone GameState = iota
	GameStateMenu
	GameStateLobby
	GameStateTasks
	GameStateDiscussion
)

// String returns the phase name.
func (g GameState) String() string {
	switch g {
	case GameStateMenu:
		return "MENU"
	case GameStateLobby:
		return "LOBBY"
	case GameStateTasks:
		return "TASKS"
	case GameStateDiscussion:
		return "DISCUSSION"
	default:
		return "NONE"
	}
}

// Regime says who may author lobby settings.
type Regime int

const (
	// Observer displays values received from the host.
	Observer Regime = iota
	// LocalAuthority lets the local user edit lobby settings.
	LocalAuthority
)

// String returns the regime name.
func (r Regime) String() string {
	if r == LocalAuthority {
		return "local"
	}
	return "observer"
}

// AuthorityFor returns the regime for the given phase. The user holds
// authority in the menu, or as host while waiting in the lobby.
func AuthorityFor(state GameState, isHost bool) Regime {
	if state == GameStateMenu || (isHost && state == GameStateLobby) {
		return LocalAuthority
	}
	return Observer
}

// CanResetSettings reports whether a reset to defaults is allowed. A host
// in an active round must not reset lobby rules mid-game.
func CanResetSettings(state GameState, isHost bool) bool {
	return state == GameStateNone || !isHost || state == GameStateMenu || state == GameStateLobby
}

// LobbyEditor gates lobby edits on the current authority regime. Under
// local authority edits go through the reducer and are kept in a local
// override; under observer regime the remote shadow is shown instead.
type LobbyEditor struct {
	reducer *Reducer
	remote  *LobbyReducer
	logger  *slog.Logger

	regime   Regime
	override *LobbySettings
	shadow   LobbySettings
}

// NewLobbyEditor creates an editor in observer regime.
func NewLobbyEditor(reducer *Reducer, logger *slog.Logger) *LobbyEditor {
	return &LobbyEditor{
		reducer: reducer,
		remote:  NewLobbyReducer(logger),
		logger:  logging.WithComponent(logger, "lobby-editor"),
		regime:  Observer,
		shadow:  DefaultLobbySettings(),
	}
}

// SetGameState updates the regime from the current phase.
func (e *LobbyEditor) SetGameState(state GameState, isHost bool) Regime {
	regime := AuthorityFor(state, isHost)
	if regime != e.regime {
		e.logger.Debug("lobby authority changed", "regime", regime, "state", state, "host", isHost)
		e.regime = regime
	}
	return regime
}

// Regime returns the current regime.
func (e *LobbyEditor) Regime() Regime {
	return e.regime
}

// Editable reports whether edit controls should be enabled.
func (e *LobbyEditor) Editable() bool {
	return e.regime == LocalAuthority
}

// Edit applies a lobby edit to state. Under observer regime it returns
// ErrObserver without touching state or storage.
func (e *LobbyEditor) Edit(ctx context.Context, state Settings, key LobbyKey, value any) (Settings, error) {
	if e.regime != LocalAuthority {
		return state, ErrObserver
	}
	next := e.reducer.Reduce(ctx, state, SetLobbySetting{Key: key, Value: value})
	lobby := next.LocalLobbySettings
	e.override = &lobby
	return next, nil
}

// Receive applies an update from the session host to the remote shadow.
func (e *LobbyEditor) Receive(action LobbyAction) LobbySettings {
	e.shadow = e.remote.Reduce(e.shadow, action)
	return e.shadow
}

// View returns the lobby settings to display for state.
func (e *LobbyEditor) View(state Settings) LobbySettings {
	if e.regime == Observer {
		return e.shadow
	}
	if e.override != nil {
		return *e.override
	}
	return state.LocalLobbySettings
}

// Discard drops the local override. Called on navigation and session end.
func (e *LobbyEditor) Discard() {
	e.override = nil
}
