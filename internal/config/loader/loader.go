// Package loader reads the bootstrap options that locate and configure the
// settings store, and encodes settings documents for export.
//
// Options are layered: built-in defaults, then an optional TOML or YAML
// file, then CREWSETTINGS_* environment variables.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dshills/crewsettings/internal/config/store"
)

// FileSystem is an abstraction for file system operations.
// This allows for easy testing with in-memory file systems.
type FileSystem interface {
	// ReadFile reads the entire file at path.
	ReadFile(path string) ([]byte, error)
	// Stat returns file info for path.
	Stat(path string) (fs.FileInfo, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Stat returns file info for path.
func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Options are the bootstrap options.
type Options struct {
	// DataDir holds the settings document.
	DataDir string `toml:"data_dir" yaml:"data_dir"`
	// FileName is the settings document name inside DataDir.
	FileName string `toml:"file_name" yaml:"file_name"`
	// LogLevel is debug, info, warn or error.
	LogLevel string `toml:"log_level" yaml:"log_level"`
	// LogFormat is text or json.
	LogFormat string `toml:"log_format" yaml:"log_format"`
	// AppVersion caps which migrations run. Empty runs all of them.
	AppVersion string `toml:"app_version" yaml:"app_version"`
	// Locale overrides the OS locale for language detection.
	Locale string `toml:"locale" yaml:"locale"`
	// Watch reloads settings when the file is edited externally.
	Watch bool `toml:"watch" yaml:"watch"`
	// WatchDebounce is the quiet period before a reload, e.g. "150ms".
	WatchDebounce string `toml:"watch_debounce" yaml:"watch_debounce"`
}

// DefaultOptions returns the built-in defaults.
func DefaultOptions() Options {
	dataDir := "."
	if dir, err := os.UserConfigDir(); err == nil {
		dataDir = filepath.Join(dir, "crewsettings")
	}
	return Options{
		DataDir:       dataDir,
		FileName:      store.DefaultFileName,
		LogLevel:      "info",
		LogFormat:     "text",
		Watch:         true,
		WatchDebounce: "100ms",
	}
}

// SettingsPath returns the settings document path.
func (o Options) SettingsPath() string {
	return filepath.Join(o.DataDir, o.FileName)
}

// Debounce parses WatchDebounce, falling back to 100ms.
func (o Options) Debounce() time.Duration {
	d, err := time.ParseDuration(o.WatchDebounce)
	if err != nil || d < 0 {
		return 100 * time.Millisecond
	}
	return d
}

// Load layers defaults, the options file at path (if any) and the
// environment. A missing file is not an error.
func Load(path string) (Options, error) {
	return LoadWithFS(OSFS{}, path, os.LookupEnv)
}

// LoadWithFS is Load with an explicit file system and environment lookup.
func LoadWithFS(fsys FileSystem, path string, lookup func(string) (string, bool)) (Options, error) {
	opts := DefaultOptions()

	if path != "" {
		if err := loadFile(fsys, path, &opts); err != nil {
			return opts, err
		}
	}
	if err := applyEnv(&opts, lookup); err != nil {
		return opts, err
	}
	return opts, nil
}

func loadFile(fsys FileSystem, path string, opts *Options) error {
	info, err := fsys.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading options file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("options file %s is a directory", path)
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading options file %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, opts)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, opts)
	default:
		return fmt.Errorf("unsupported options file extension %q", ext)
	}
	if err != nil {
		return &ParseError{Path: path, Message: err.Error(), Err: err}
	}
	return nil
}

// ParseError represents an error while parsing an options file.
type ParseError struct {
	Path    string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
