// Package store owns the load, migrate, validate and save lifecycle of the
// persisted settings document.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/dshills/crewsettings/internal/config/migration"
	"github.com/dshills/crewsettings/internal/logging"
	"github.com/dshills/crewsettings/internal/settings"
)

// Store is the persistent settings store. It implements settings.Writer.
type Store struct {
	mu       sync.Mutex
	backend  Backend
	registry *migration.Registry
	logger   *slog.Logger
	version  *semver.Version
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithRegistry replaces the default migration registry.
func WithRegistry(r *migration.Registry) Option {
	return func(s *Store) {
		s.registry = r
	}
}

// New creates a store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.WithComponent(s.logger, "store")
	if s.registry == nil {
		s.registry = migration.Default(migration.WithLogger(s.logger))
	}
	return s
}

var _ settings.Writer = (*Store)(nil)

// Load reads the document, creating it with defaults when absent or
// unreadable as JSON. Pending migrations are applied and persisted; then
// every key is checked against the schema and absent or invalid values are
// replaced by their defaults in the returned settings. Only a storage read
// failure is returned as an error, together with the defaults.
func (s *Store) Load(ctx context.Context) (settings.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.backend.Read(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		s.logger.Info("creating settings with defaults")
		return s.create(ctx), nil
	case errors.Is(err, ErrCorrupt):
		s.logger.Warn("replacing corrupt settings with defaults", "error", err)
		return s.create(ctx), nil
	case err != nil:
		return settings.Defaults(), fmt.Errorf("load settings: %w", err)
	}

	migrated, result := s.registry.Migrate(raw)
	if result.Changed() {
		if err := s.backend.Write(ctx, migrated); err != nil {
			s.logger.Error("failed to persist migrated settings", "error", err)
		}
	}
	s.version = migration.StoredVersion(migrated)

	st, replaced := settings.Decode(migrated)
	if len(replaced) > 0 {
		s.logger.Warn("substituted defaults for invalid settings", "keys", replaced)
	}
	return st, nil
}

// create persists a fresh default document and returns its settings.
// Must be called with s.mu held.
func (s *Store) create(ctx context.Context) settings.Settings {
	defaults := settings.Defaults()
	doc := defaults.Document()
	latest := s.registry.Latest()
	doc[migration.VersionKey] = latest.String()

	if err := s.backend.Write(ctx, doc); err != nil {
		s.logger.Error("failed to persist default settings", "error", err)
	}
	s.version = latest
	return defaults
}

// Set validates value against the schema entry for key and writes it
// through. Invalid values are logged and rejected without touching the
// persisted document.
func (s *Store) Set(ctx context.Context, key settings.Key, value any) error {
	if !key.Valid() {
		s.logger.Warn("ignored unknown settings key", "key", key)
		return fmt.Errorf("%w: %q", settings.ErrUnknownKey, key)
	}
	return s.patch(ctx, string(key), value)
}

// SetNested is Set for a key inside a nested group. Only the
// localLobbySettings group exists.
func (s *Store) SetNested(ctx context.Context, group settings.Key, key settings.LobbyKey, value any) error {
	if group != settings.KeyLocalLobbySettings || !key.Valid() {
		s.logger.Warn("ignored unknown nested key", "group", group, "key", key)
		return fmt.Errorf("%w: %s.%s", settings.ErrUnknownKey, group, key)
	}
	return s.patch(ctx, key.Path(), value)
}

func (s *Store) patch(ctx context.Context, path string, value any) error {
	generic, err := settings.CheckValue(path, value)
	if err != nil {
		s.logger.Warn("rejected settings value", "key", path, "error", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.backend.Patch(ctx, path, generic)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorrupt) {
		s.create(ctx)
		err = s.backend.Patch(ctx, path, generic)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	s.logger.Debug("saved setting", "key", path)
	return nil
}

// Clear erases the document and rewrites defaults. The defaults are
// returned even when storage fails; the error is informational.
func (s *Store) Clear(ctx context.Context) (settings.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Remove(ctx); err != nil {
		s.logger.Error("failed to remove settings", "error", err)
	}

	defaults := settings.Defaults()
	doc := defaults.Document()
	latest := s.registry.Latest()
	doc[migration.VersionKey] = latest.String()
	s.version = latest

	if err := s.backend.Write(ctx, doc); err != nil {
		return defaults, fmt.Errorf("reset settings: %w", err)
	}
	s.logger.Info("settings reset to defaults")
	return defaults, nil
}

// CurrentVersion returns the migration stamp of the loaded document, or
// 0.0.0 before the first Load.
func (s *Store) CurrentVersion() *semver.Version {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.version == nil {
		return semver.New(0, 0, 0, "", "")
	}
	return s.version
}

// StoredVersion peeks at the stamp currently on storage without loading.
func (s *Store) StoredVersion(ctx context.Context) (*semver.Version, error) {
	v, ok, err := s.backend.Peek(ctx, migration.VersionKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return semver.New(0, 0, 0, "", ""), nil
	}
	return migration.StoredVersion(migration.Document{migration.VersionKey: v}), nil
}

// Plan returns the migration steps Load would apply, without applying them.
func (s *Store) Plan(ctx context.Context) ([]migration.Step, error) {
	from, err := s.StoredVersion(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.registry.Pending(from), nil
}

// Raw returns the persisted document as stored, without migration or
// defaulting.
func (s *Store) Raw(ctx context.Context) (map[string]any, error) {
	return s.backend.Read(ctx)
}

// Registry returns the migration registry in use.
func (s *Store) Registry() *migration.Registry {
	return s.registry
}
