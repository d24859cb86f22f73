// Package migration upgrades persisted settings documents across
// application versions.
//
// Each step is tagged with the version that introduced it and is a pure
// function over the raw document. Steps only act when their legacy
// condition holds, so reapplying one is a no-op. The document records the
// highest step applied under VersionKey; a step never runs again once that
// stamp reaches its version.
package migration

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/dshills/crewsettings/internal/config/schema"
	"github.com/dshills/crewsettings/internal/logging"
)

// VersionKey is the document key holding the migration stamp.
const VersionKey = "version"

// Document is a raw settings document as decoded from storage.
type Document = map[string]any

// Step is a single version-tagged migration.
type Step struct {
	// Version is the application version that introduced the step.
	Version *semver.Version

	// Description describes what the step does.
	Description string

	// Apply mutates doc in place. It must leave values of unexpected type
	// untouched and must not fail.
	Apply func(doc Document)
}

// Result describes one Migrate run.
type Result struct {
	From    *semver.Version
	To      *semver.Version
	Applied []Step
}

// Changed reports whether any step ran.
func (r Result) Changed() bool {
	return len(r.Applied) > 0
}

// Registry holds migration steps ordered by version.
type Registry struct {
	steps  []Step
	target *semver.Version
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithTarget excludes steps newer than v, typically the running
// application version.
func WithTarget(v *semver.Version) Option {
	return func(r *Registry) {
		r.target = v
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.WithComponent(r.logger, "migration")
	return r
}

// Register adds a step. Versions must be valid semver and unique.
func (r *Registry) Register(version, description string, apply func(Document)) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("migration %q: %w", version, err)
	}
	for _, s := range r.steps {
		if s.Version.Equal(v) {
			return fmt.Errorf("migration %s already registered", v)
		}
	}

	r.steps = append(r.steps, Step{Version: v, Description: description, Apply: apply})
	sort.Slice(r.steps, func(i, j int) bool {
		return r.steps[i].Version.LessThan(r.steps[j].Version)
	})
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(version, description string, apply func(Document)) {
	if err := r.Register(version, description, apply); err != nil {
		panic(err)
	}
}

// Steps returns the registered steps within the target, in order.
func (r *Registry) Steps() []Step {
	out := make([]Step, 0, len(r.steps))
	for _, s := range r.steps {
		if r.target != nil && s.Version.GreaterThan(r.target) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Latest returns the version of the newest step, or 0.0.0 when empty.
// Fresh documents are stamped with it.
func (r *Registry) Latest() *semver.Version {
	steps := r.Steps()
	if len(steps) == 0 {
		return semver.New(0, 0, 0, "", "")
	}
	return steps[len(steps)-1].Version
}

// Pending returns the steps newer than from, in ascending order.
func (r *Registry) Pending(from *semver.Version) []Step {
	if from == nil {
		from = semver.New(0, 0, 0, "", "")
	}
	var out []Step
	for _, s := range r.Steps() {
		if s.Version.GreaterThan(from) {
			out = append(out, s)
		}
	}
	return out
}

// Apply runs steps over a copy of doc and returns the copy. The input
// document is not modified. A step that panics is logged and skipped.
func (r *Registry) Apply(doc Document, steps []Step) Document {
	out, _ := schema.CloneValue(doc).(map[string]any)
	if out == nil {
		out = Document{}
	}
	for _, s := range steps {
		r.run(out, s)
	}
	return out
}

func (r *Registry) run(doc Document, s Step) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("migration step panicked", "version", s.Version, "panic", p)
		}
	}()
	r.logger.Debug("applying migration", "version", s.Version, "description", s.Description)
	s.Apply(doc)
}

// Migrate applies every pending step to a copy of doc and stamps it with
// the highest version applied.
func (r *Registry) Migrate(doc Document) (Document, Result) {
	from := StoredVersion(doc)
	pending := r.Pending(from)

	result := Result{From: from, To: from, Applied: pending}
	out := r.Apply(doc, pending)
	if len(pending) > 0 {
		result.To = pending[len(pending)-1].Version
		out[VersionKey] = result.To.String()
		r.logger.Info("migrated settings", "from", from, "to", result.To, "steps", len(pending))
	}
	return out, result
}

// StoredVersion returns the stamp recorded in doc. A missing or unparsable
// stamp is treated as 0.0.0 so every step is pending.
func StoredVersion(doc Document) *semver.Version {
	if raw, ok := doc[VersionKey].(string); ok {
		if v, err := semver.NewVersion(raw); err == nil {
			return v
		}
	}
	return semver.New(0, 0, 0, "", "")
}
