package app

import (
	"net/url"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/crewsettings/internal/settings"
)

func TestGenerateOBSSecret(t *testing.T) {
	secret, err := GenerateOBSSecret()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z0-9]{9}$`), secret)

	_, err = settings.CheckValue(string(settings.KeyOBSSecret), secret)
	assert.NoError(t, err)
}

func TestOverlayURL(t *testing.T) {
	tests := []struct {
		name       string
		serverURL  string
		compat     bool
		wantScheme string
		wantServer string
	}{
		{"compat with custom server", "http://voice.local:9736", true, "https", "https://bettercrewl.ink"},
		{"compat with default server", "https://bettercrewl.ink", true, "https", "https://bettercrewl.ink"},
		{"plain http server", "http://voice.local:9736", false, "http", "http://voice.local:9736"},
		{"plain https server", "https://voice.example.com", false, "https", "https://voice.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := settings.Defaults()
			s.ServerURL = tt.serverURL
			s.OBSCompatibilityMode = tt.compat
			s.OBSSecret = "SECRET123"
			s.CompactOverlay = true

			u, err := url.Parse(OverlayURL(s))
			require.NoError(t, err)
			assert.Equal(t, tt.wantScheme, u.Scheme)
			assert.Equal(t, "obs.bettercrewlink.app", u.Host)

			q := u.Query()
			assert.Equal(t, "1", q.Get("compact"))
			assert.Equal(t, "right", q.Get("position"))
			assert.Equal(t, "1", q.Get("meeting"))
			assert.Equal(t, "SECRET123", q.Get("secret"))
			assert.Equal(t, tt.wantServer, q.Get("server"))
		})
	}
}
