// Package watcher reports external edits to the settings file.
//
// The parent directory is watched rather than the file itself, since saves
// replace the file through a rename. Bursts of events for the file are
// coalesced into a single callback after a quiet period.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/crewsettings/internal/logging"
)

// Event represents a settings file change.
type Event struct {
	// Path is the absolute path of the settings file.
	Path string

	// Op is the last operation observed in the burst.
	Op Operation

	// Time is when the burst settled.
	Time time.Time
}

// Operation represents the type of file operation.
type Operation int

const (
	// OpWrite indicates the file was modified.
	OpWrite Operation = iota

	// OpCreate indicates the file was created or renamed into place.
	OpCreate

	// OpRemove indicates the file was deleted.
	OpRemove

	// OpRename indicates the file was renamed away.
	OpRename
)

// String returns the operation name.
func (op Operation) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpCreate:
		return "create"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Handler is called once per settled burst of changes.
type Handler func(event Event)

// Watcher monitors the settings file.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a burst is reported.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the watcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New creates a watcher for the settings file at path.
func New(path string, opts ...Option) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     absPath,
		debounce: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logging.WithComponent(w.logger, "watcher")
	return w, nil
}

// Path returns the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// Run watches until ctx is cancelled, calling handler from the Run
// goroutine. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context, handler Handler) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Debug("watching settings", "path", w.path)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	var pending *Event
	for {
		select {
		case <-ctx.Done():
			return nil

		case fsEvent, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(fsEvent.Name) != w.path {
				continue
			}
			op, ok := convertOp(fsEvent.Op)
			if !ok {
				continue
			}
			pending = &Event{Path: w.path, Op: op}
			timer.Reset(w.debounce)

		case <-timer.C:
			if pending == nil {
				continue
			}
			pending.Time = time.Now()
			w.logger.Debug("settings file changed", "op", pending.Op)
			handler(*pending)
			pending = nil

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				pending = &Event{Path: w.path, Op: OpWrite}
				timer.Reset(w.debounce)
				continue
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// convertOp maps an fsnotify operation. Chmod-only events are ignored.
func convertOp(op fsnotify.Op) (Operation, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpWrite, true
	case op.Has(fsnotify.Remove):
		return OpRemove, true
	case op.Has(fsnotify.Rename):
		return OpRename, true
	default:
		return 0, false
	}
}
