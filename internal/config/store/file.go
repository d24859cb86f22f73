package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// DefaultFileName is the settings file name inside the data directory.
const DefaultFileName = "config.json"

// FileBackend stores the document as a JSON file. Every write replaces
// the file atomically through a temporary file and rename.
type FileBackend struct {
	path string
}

// NewFileBackend creates a backend for the file at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the file path.
func (b *FileBackend) Path() string {
	return b.path
}

// Read implements Backend.
func (b *FileBackend) Read(ctx context.Context) (map[string]any, error) {
	data, err := b.readBytes(ctx)
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, b.path)
	}
	return doc, nil
}

// Write implements Backend.
func (b *FileBackend) Write(ctx context.Context, doc map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return b.writeBytes(data)
}

// Patch implements Backend.
func (b *FileBackend) Patch(ctx context.Context, path string, value any) error {
	data, err := b.readBytes(ctx)
	if err != nil {
		return err
	}

	patched, err := sjson.SetBytes(data, path, value)
	if err != nil {
		return fmt.Errorf("failed to patch %s: %w", path, err)
	}
	return b.writeBytes(patched)
}

// Peek implements Backend.
func (b *FileBackend) Peek(ctx context.Context, path string) (any, bool, error) {
	data, err := b.readBytes(ctx)
	if err != nil {
		return nil, false, err
	}

	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		return nil, false, nil
	}
	return res.Value(), true, nil
}

// Remove implements Backend.
func (b *FileBackend) Remove(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(b.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove settings: %w", err)
	}
	return nil
}

// readBytes returns the raw file contents, mapping a missing file to
// ErrNotFound and anything but a JSON object to ErrCorrupt.
func (b *FileBackend) readBytes(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, b.path)
	}
	return data, nil
}

func (b *FileBackend) writeBytes(data []byte) error {
	data = pretty.Pretty(data)

	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempPath := b.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, b.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
