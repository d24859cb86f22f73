package settings

import (
	"context"
	"log/slog"

	"github.com/dshills/crewsettings/internal/logging"
)

// Writer persists committed changes. The persistent store implements it.
type Writer interface {
	Set(ctx context.Context, key Key, value any) error
	SetNested(ctx context.Context, group Key, key LobbyKey, value any) error
}

// Action is a state transition request. The set of actions is closed.
type Action interface {
	isAction()
}

// ReplaceAll replaces the whole state. Used after Load and reload.
type ReplaceAll struct {
	State Settings
}

// SetOne sets a single top-level key.
type SetOne struct {
	Key   Key
	Value any
}

// SetLobbySetting sets a single key of the localLobbySettings group.
type SetLobbySetting struct {
	Key   LobbyKey
	Value any
}

func (ReplaceAll) isAction()      {}
func (SetOne) isAction()          {}
func (SetLobbySetting) isAction() {}

// Reducer computes the next settings state and writes every committed
// change through to a Writer.
type Reducer struct {
	writer Writer
	logger *slog.Logger
}

// NewReducer creates a reducer writing through to w. A nil writer makes the
// reducer purely in-memory.
func NewReducer(w Writer, logger *slog.Logger) *Reducer {
	return &Reducer{
		writer: w,
		logger: logging.WithComponent(logger, "reducer"),
	}
}

// Reduce returns the state after applying action. The input state is
// never modified. Values that fail validation leave the state unchanged.
// A failed write is logged and the returned state stays authoritative.
func (r *Reducer) Reduce(ctx context.Context, state Settings, action Action) Settings {
	switch a := action.(type) {
	case ReplaceAll:
		return a.State

	case SetOne:
		next, err := state.With(a.Key, a.Value)
		if err != nil {
			r.logger.Warn("rejected settings change", "key", a.Key, "error", err)
			return state
		}
		if r.writer != nil {
			if err := r.writer.Set(ctx, a.Key, next.Get(a.Key)); err != nil {
				r.logger.Error("write-through failed", "key", a.Key, "error", err)
			}
		}
		return next

	case SetLobbySetting:
		next, err := state.WithLobby(a.Key, a.Value)
		if err != nil {
			r.logger.Warn("rejected lobby settings change", "key", a.Key, "error", err)
			return state
		}
		if r.writer != nil {
			if err := r.writer.SetNested(ctx, KeyLocalLobbySettings, a.Key, next.LocalLobbySettings.Get(a.Key)); err != nil {
				r.logger.Error("write-through failed", "key", a.Key.Path(), "error", err)
			}
		}
		return next

	default:
		r.logger.Warn("ignored unknown action", "action", action)
		return state
	}
}

// LobbyAction is a transition of the remote lobby shadow.
type LobbyAction interface {
	isLobbyAction()
}

// ReplaceLobby replaces the shadow with settings received from the host.
type ReplaceLobby struct {
	State LobbySettings
}

// SetLobbyValue sets one key of the shadow.
type SetLobbyValue struct {
	Key   LobbyKey
	Value any
}

func (ReplaceLobby) isLobbyAction()  {}
func (SetLobbyValue) isLobbyAction() {}

// LobbyReducer mirrors lobby settings received from the session host. It
// never persists anything.
type LobbyReducer struct {
	logger *slog.Logger
}

// NewLobbyReducer creates a remote lobby reducer.
func NewLobbyReducer(logger *slog.Logger) *LobbyReducer {
	return &LobbyReducer{logger: logging.WithComponent(logger, "lobby-reducer")}
}

// Reduce returns the shadow after applying action.
func (r *LobbyReducer) Reduce(state LobbySettings, action LobbyAction) LobbySettings {
	switch a := action.(type) {
	case ReplaceLobby:
		return a.State
	case SetLobbyValue:
		next, err := state.With(a.Key, a.Value)
		if err != nil {
			r.logger.Warn("rejected remote lobby value", "key", a.Key, "error", err)
			return state
		}
		return next
	default:
		return state
	}
}
