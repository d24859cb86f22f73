package settings

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidServerURL is returned for server addresses that cannot be used.
var ErrInvalidServerURL = errors.New("invalid server URL")

// deniedHosts are hostnames users commonly paste by mistake.
var deniedHosts = map[string]bool{
	"discord.gg": true,
}

// ValidateServerURL checks a voice server address and returns it in
// stored form, without a trailing slash. Only absolute http and https
// URLs with an empty or root path are accepted.
func ValidateServerURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidServerURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme must be http or https", ErrInvalidServerURL)
	}
	if u.Host == "" || u.Opaque != "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidServerURL)
	}
	if deniedHosts[strings.ToLower(u.Hostname())] {
		return "", fmt.Errorf("%w: %s is not a voice server", ErrInvalidServerURL, u.Hostname())
	}
	if u.Path != "" && u.Path != "/" {
		return "", fmt.Errorf("%w: path must be empty", ErrInvalidServerURL)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("%w: query and fragment are not allowed", ErrInvalidServerURL)
	}
	return strings.TrimSuffix(raw, "/"), nil
}
