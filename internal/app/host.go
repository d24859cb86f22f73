package app

import (
	"github.com/dshills/crewsettings/internal/config/notify"
	"github.com/dshills/crewsettings/internal/settings"
)

// HostSignals receives notifications the host process must act on.
type HostSignals interface {
	// ResetKeyHooks re-registers global input hooks after a shortcut changed.
	ResetKeyHooks()
	// SetOverlayEnabled shows or hides the in-game overlay.
	SetOverlayEnabled(enabled bool)
}

// Window is the main window as seen by the session.
type Window interface {
	SetAlwaysOnTop(onTop bool)
}

type nopHost struct{}

func (nopHost) ResetKeyHooks()         {}
func (nopHost) SetOverlayEnabled(bool) {}

type nopWindow struct{}

func (nopWindow) SetAlwaysOnTop(bool) {}

// bindHost subscribes host and window to the notifier. Reset and reload
// events resend every signal from the current state.
func bindHost(n *notify.Notifier, host HostSignals, window Window, current func() settings.Settings) []*notify.Subscription {
	resync := n.Subscribe(func(c notify.Change) {
		switch c.Type {
		case notify.ChangeSet:
			if settings.Key(c.Path).IsShortcut() {
				host.ResetKeyHooks()
			}
		case notify.ChangeReset, notify.ChangeReload:
			st := current()
			host.ResetKeyHooks()
			host.SetOverlayEnabled(st.EnableOverlay)
			window.SetAlwaysOnTop(st.AlwaysOnTop)
		}
	})

	overlay := n.SubscribePath(string(settings.KeyEnableOverlay), func(c notify.Change) {
		if v, ok := c.NewValue.(bool); ok && c.Type == notify.ChangeSet {
			host.SetOverlayEnabled(v)
		}
	})

	onTop := n.SubscribePath(string(settings.KeyAlwaysOnTop), func(c notify.Change) {
		if v, ok := c.NewValue.(bool); ok && c.Type == notify.ChangeSet {
			window.SetAlwaysOnTop(v)
		}
	})

	return []*notify.Subscription{resync, overlay, onTop}
}
