// Package capture reads shortcut presses from a terminal screen.
//
// Terminal events are translated into the raw keyboard and mouse events
// understood by the shortcut package, which decides whether a press is
// bindable. Terminals do not report bare modifier presses or which side
// a modifier sits on, so those tokens can only be entered by hand.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/crewsettings/internal/input/shortcut"
	"github.com/dshills/crewsettings/internal/logging"
)

// ErrClosed is returned when the screen stops delivering events.
var ErrClosed = errors.New("capture: screen closed")

// specialKeys maps tcell keys onto the key names the normalizer expects.
var specialKeys = map[tcell.Key]string{
	tcell.KeyEnter:      "Enter",
	tcell.KeyBackspace:  "Backspace",
	tcell.KeyBackspace2: "Backspace",
	tcell.KeyDelete:     "Delete",
	tcell.KeyEscape:     "Escape",
	tcell.KeyUp:         "ArrowUp",
	tcell.KeyDown:       "ArrowDown",
	tcell.KeyLeft:       "ArrowLeft",
	tcell.KeyRight:      "ArrowRight",
	tcell.KeyHome:       "Home",
	tcell.KeyEnd:        "End",
	tcell.KeyPgUp:       "PageUp",
	tcell.KeyPgDn:       "PageDown",
	tcell.KeyTab:        "Tab",
	tcell.KeyInsert:     "Insert",
}

// TranslateKey converts a terminal key event.
func TranslateKey(ev *tcell.EventKey) shortcut.KeyEvent {
	k := ev.Key()
	switch {
	case k == tcell.KeyRune:
		return shortcut.KeyEvent{Key: string(ev.Rune())}
	case k >= tcell.KeyF1 && k <= tcell.KeyF64:
		return shortcut.KeyEvent{Key: fmt.Sprintf("F%d", int(k-tcell.KeyF1)+1)}
	}
	if name, ok := specialKeys[k]; ok {
		return shortcut.KeyEvent{Key: name}
	}
	return shortcut.KeyEvent{Key: ev.Name()}
}

// mouseButtons orders tcell buttons by their zero based button number.
var mouseButtons = []tcell.ButtonMask{
	tcell.Button1, // primary
	tcell.Button3, // middle
	tcell.Button2, // secondary
	tcell.Button4,
	tcell.Button5,
	tcell.Button6,
	tcell.Button7,
	tcell.Button8,
}

// TranslateMouse converts a terminal mouse event. The boolean is false for
// motion, release and wheel events.
func TranslateMouse(ev *tcell.EventMouse) (shortcut.MouseEvent, bool) {
	buttons := ev.Buttons()
	for i, b := range mouseButtons {
		if buttons&b != 0 {
			return shortcut.MouseEvent{Button: i}, true
		}
	}
	return shortcut.MouseEvent{}, false
}

// Capturer waits for bindable presses on a screen. One event pump runs
// from the first Next until Close, so presses arriving between calls are
// kept for the next one.
type Capturer struct {
	screen tcell.Screen
	logger *slog.Logger

	start  sync.Once
	stop   sync.Once
	events chan tcell.Event
	quit   chan struct{}
}

// Option configures a Capturer.
type Option func(*Capturer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Capturer) {
		c.logger = logger
	}
}

// New creates a Capturer reading from an initialized screen.
func New(screen tcell.Screen, opts ...Option) *Capturer {
	c := &Capturer{
		screen: screen,
		events: make(chan tcell.Event),
		quit:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithComponent(c.logger, "capture")
	return c
}

// Next blocks until a press normalizes to a token, the context ends or the
// screen closes. Rejected presses are skipped. Escape yields
// shortcut.Disabled.
func (c *Capturer) Next(ctx context.Context) (shortcut.Token, error) {
	select {
	case <-c.quit:
		return "", ErrClosed
	default:
	}
	c.start.Do(func() {
		go c.screen.ChannelEvents(c.events, c.quit)
	})

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-c.quit:
			return "", ErrClosed
		case ev, ok := <-c.events:
			if !ok {
				return "", ErrClosed
			}
			if tok, ok := c.accept(ev); ok {
				return tok, nil
			}
		}
	}
}

// Close stops the event pump. Call it before finalizing the screen; Next
// returns ErrClosed afterwards.
func (c *Capturer) Close() {
	c.stop.Do(func() { close(c.quit) })
}

func (c *Capturer) accept(ev tcell.Event) (shortcut.Token, bool) {
	switch e := ev.(type) {
	case *tcell.EventKey:
		raw := TranslateKey(e)
		tok, ok := shortcut.NormalizeKey(raw)
		if !ok {
			c.logger.Debug("key rejected", "key", raw.Key)
		}
		return tok, ok
	case *tcell.EventMouse:
		raw, ok := TranslateMouse(e)
		if !ok {
			return "", false
		}
		tok, ok := shortcut.NormalizeMouse(raw)
		if !ok {
			c.logger.Debug("mouse button rejected", "button", raw.Button)
		}
		return tok, ok
	default:
		return "", false
	}
}
