package store

import (
	"context"
	"errors"
)

// Backend errors.
var (
	// ErrNotFound is returned when no document has been persisted yet.
	ErrNotFound = errors.New("settings document not found")
	// ErrCorrupt is returned when the persisted bytes are not a JSON object.
	ErrCorrupt = errors.New("settings document is corrupt")
)

// Backend is durable storage for a single settings document.
//
// Paths passed to Patch and Peek are dot-separated, e.g.
// "localLobbySettings.maxDistance".
type Backend interface {
	// Read returns the whole document.
	Read(ctx context.Context) (map[string]any, error)

	// Write replaces the whole document.
	Write(ctx context.Context, doc map[string]any) error

	// Patch sets a single value, leaving the rest of the document as is.
	// It returns ErrNotFound when there is no document to patch.
	Patch(ctx context.Context, path string, value any) error

	// Peek reads a single value without decoding the whole document.
	Peek(ctx context.Context, path string) (any, bool, error)

	// Remove deletes the document. Removing a missing document succeeds.
	Remove(ctx context.Context) error
}
