package app

import (
	"net/url"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/dshills/crewsettings/internal/config/migration"
	"github.com/dshills/crewsettings/internal/settings"
)

const (
	obsSecretAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	obsSecretLength   = 9
	obsOverlayHost    = "obs.bettercrewlink.app"
)

// GenerateOBSSecret returns a fresh secret for the browser-source overlay.
func GenerateOBSSecret() (string, error) {
	return nanoid.Generate(obsSecretAlphabet, obsSecretLength)
}

// OverlayURL returns the browser-source URL for streaming software.
func OverlayURL(s settings.Settings) string {
	server := s.ServerURL
	if s.OBSCompatibilityMode {
		server = migration.CanonicalServerURL
	}

	scheme := "http"
	if (s.OBSCompatibilityMode && !strings.Contains(s.ServerURL, "bettercrewl.ink")) ||
		strings.Contains(s.ServerURL, "https") {
		scheme = "https"
	}

	q := []string{
		"compact=" + flag(s.CompactOverlay),
		"position=" + url.QueryEscape(s.OverlayPosition),
		"meeting=" + flag(s.MeetingOverlay),
		"secret=" + url.QueryEscape(s.OBSSecret),
		"server=" + url.QueryEscape(server),
	}
	u := url.URL{Scheme: scheme, Host: obsOverlayHost, Path: "/", RawQuery: strings.Join(q, "&")}
	return u.String()
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
