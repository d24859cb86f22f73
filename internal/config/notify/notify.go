// Package notify delivers settings change events to subscribers.
//
// The session publishes one Change per committed key. Subscribers either
// receive everything or only changes under a path; a reload or reset event
// reaches every subscriber.
package notify

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChangeType represents the type of settings change.
type ChangeType int

const (
	// ChangeSet indicates a value was set or updated.
	ChangeSet ChangeType = iota

	// ChangeReset indicates every value was reset to its default.
	ChangeReset

	// ChangeReload indicates the document was reloaded from storage.
	ChangeReload
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeSet:
		return "set"
	case ChangeReset:
		return "reset"
	case ChangeReload:
		return "reload"
	default:
		return "unknown"
	}
}

// Change represents a settings change event.
type Change struct {
	// ID uniquely identifies the event.
	ID uuid.UUID

	// Path is the dot-separated key path. Empty for reset and reload.
	Path string

	// Type is the type of change.
	Type ChangeType

	// OldValue is the previous value (may be nil).
	OldValue any

	// NewValue is the new value (may be nil).
	NewValue any

	// Source identifies where the change came from ("cli", "watcher", ...).
	Source string

	// At is when the change was published.
	At time.Time
}

// Observer is called when settings change.
type Observer func(change Change)

// Subscription represents an active observer subscription.
type Subscription struct {
	id       uuid.UUID
	notifier *Notifier
}

// ID returns the subscription identifier.
func (s *Subscription) ID() uuid.UUID {
	return s.id
}

// Unsubscribe removes this subscription. It is safe to call repeatedly.
func (s *Subscription) Unsubscribe() {
	if s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

type entry struct {
	id       uuid.UUID
	path     string // "" receives everything
	observer Observer
}

// Notifier manages change subscriptions. Delivery is synchronous, in
// subscription order, outside the notifier lock.
type Notifier struct {
	mu      sync.RWMutex
	entries []entry
	closed  bool
	now     func() time.Time
}

// New creates a new Notifier.
func New() *Notifier {
	return &Notifier{now: time.Now}
}

// Subscribe registers an observer for all changes.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	return n.SubscribePath("", observer)
}

// SubscribePath registers an observer for changes to path and its
// children. Subscribing to "localLobbySettings" receives changes to
// "localLobbySettings.maxDistance".
func (n *Notifier) SubscribePath(path string, observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := uuid.New()
	n.entries = append(n.entries, entry{id: id, path: path, observer: observer})
	return &Subscription{id: id, notifier: n}
}

// Notify stamps change with an ID and time when missing and delivers it.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}
	var observers []Observer
	for _, e := range n.entries {
		if matches(e.path, change) {
			observers = append(observers, e.observer)
		}
	}
	n.mu.RUnlock()

	if change.ID == uuid.Nil {
		change.ID = uuid.New()
	}
	if change.At.IsZero() {
		change.At = n.now()
	}
	for _, obs := range observers {
		obs(change)
	}
}

// NotifySet is a convenience method for set changes.
func (n *Notifier) NotifySet(path string, oldValue, newValue any, source string) {
	n.Notify(Change{
		Path:     path,
		Type:     ChangeSet,
		OldValue: oldValue,
		NewValue: newValue,
		Source:   source,
	})
}

// NotifyReset is a convenience method for reset events.
func (n *Notifier) NotifyReset(source string) {
	n.Notify(Change{Type: ChangeReset, Source: source})
}

// NotifyReload is a convenience method for reload events.
func (n *Notifier) NotifyReload(source string) {
	n.Notify(Change{Type: ChangeReload, Source: source})
}

// Len returns the number of active subscriptions.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.entries)
}

// Close stops delivery. It is safe to call Close multiple times.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.entries = nil
}

func (n *Notifier) unsubscribe(id uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, e := range n.entries {
		if e.id == id {
			n.entries = append(n.entries[:i:i], n.entries[i+1:]...)
			return
		}
	}
}

// matches reports whether a subscription on path receives change.
func matches(path string, change Change) bool {
	if path == "" || change.Path == "" {
		return true
	}
	return change.Path == path || strings.HasPrefix(change.Path, path+".")
}
