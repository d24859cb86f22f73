package loader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CREWSETTINGS_"

// envBindings maps environment variables onto option fields.
var envBindings = map[string]func(*Options, string) error{
	"DATA_DIR":       func(o *Options, v string) error { o.DataDir = v; return nil },
	"FILE_NAME":      func(o *Options, v string) error { o.FileName = v; return nil },
	"LOG_LEVEL":      func(o *Options, v string) error { o.LogLevel = v; return nil },
	"LOG_FORMAT":     func(o *Options, v string) error { o.LogFormat = v; return nil },
	"APP_VERSION":    func(o *Options, v string) error { o.AppVersion = v; return nil },
	"LOCALE":         func(o *Options, v string) error { o.Locale = v; return nil },
	"WATCH_DEBOUNCE": func(o *Options, v string) error { o.WatchDebounce = v; return nil },
	"WATCH": func(o *Options, v string) error {
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		o.Watch = b
		return nil
	},
}

// EnvNames returns the supported environment variable names, sorted.
func EnvNames() []string {
	names := make([]string, 0, len(envBindings))
	for suffix := range envBindings {
		names = append(names, EnvPrefix+suffix)
	}
	slices.Sort(names)
	return names
}

func applyEnv(opts *Options, lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	for suffix, apply := range envBindings {
		name := EnvPrefix + suffix
		val, ok := lookup(name)
		if !ok {
			continue
		}
		if err := apply(opts, val); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// parseBool accepts the usual spellings of true and false.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "on":
		return true, nil
	case "no", "off", "":
		return false, nil
	}
	return strconv.ParseBool(s)
}
