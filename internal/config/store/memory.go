package store

import (
	"context"
	"strings"
	"sync"

	"github.com/dshills/crewsettings/internal/config/schema"
)

// MemoryBackend keeps the document in memory. It is used in tests and by
// dry runs that must not touch disk.
type MemoryBackend struct {
	mu  sync.Mutex
	doc map[string]any

	// WriteErr, when set, is returned by Write and Patch.
	WriteErr error

	writes  int
	patches []string
}

// NewMemoryBackend creates a backend seeded with doc. A nil doc means no
// document has been persisted.
func NewMemoryBackend(doc map[string]any) *MemoryBackend {
	b := &MemoryBackend{}
	if doc != nil {
		b.doc = schema.CloneValue(doc).(map[string]any)
	}
	return b
}

// Read implements Backend.
func (b *MemoryBackend) Read(ctx context.Context) (map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.doc == nil {
		return nil, ErrNotFound
	}
	return schema.CloneValue(b.doc).(map[string]any), nil
}

// Write implements Backend.
func (b *MemoryBackend) Write(ctx context.Context, doc map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.WriteErr != nil {
		return b.WriteErr
	}
	b.doc = schema.CloneValue(doc).(map[string]any)
	b.writes++
	return nil
}

// Patch implements Backend.
func (b *MemoryBackend) Patch(ctx context.Context, path string, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.WriteErr != nil {
		return b.WriteErr
	}
	if b.doc == nil {
		return ErrNotFound
	}

	parts := strings.Split(path, ".")
	current := b.doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = schema.CloneValue(value)
	b.patches = append(b.patches, path)
	return nil
}

// Peek implements Backend.
func (b *MemoryBackend) Peek(ctx context.Context, path string) (any, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.doc == nil {
		return nil, false, ErrNotFound
	}
	var current any = b.doc
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false, nil
		}
		if current, ok = m[part]; !ok {
			return nil, false, nil
		}
	}
	return schema.CloneValue(current), true, nil
}

// Remove implements Backend.
func (b *MemoryBackend) Remove(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.doc = nil
	return nil
}

// Writes returns the number of whole-document writes.
func (b *MemoryBackend) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

// Patches returns the paths patched so far.
func (b *MemoryBackend) Patches() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.patches...)
}
