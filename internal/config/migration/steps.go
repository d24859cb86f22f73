package migration

import (
	"slices"
	"strings"
)

// CanonicalServerURL replaces retired server addresses.
const CanonicalServerURL = "https://bettercrewl.ink"

const (
	keyServerURL             = "serverURL"
	keyPlayerConfigMap       = "playerConfigMap"
	keyMobileHost            = "mobileHost"
	keyLegacyPushToTalk      = "pushToTalk"
	keyPushToTalkMode        = "pushToTalkMode"
	keyMicSensitivity        = "micSensitivity"
	keyMicSensitivityEnabled = "micSensitivityEnabled"
)

const (
	pushToTalkModeVoice = 0
	pushToTalkModePTT   = 1

	sensitivityCutoff  = 0.3
	sensitivityDefault = 0.15
)

// Default returns a registry holding the built-in settings migrations.
func Default(opts ...Option) *Registry {
	r := New(opts...)

	r.MustRegister("2.0.6", "move legacy servers to the canonical address",
		RewriteString(keyServerURL, CanonicalServerURL,
			"https://bettercrewl.ink:6523",
			"http://bettercrewl.ink",
			"http://crewlink.guus.info",
			"https://crewlink.guus.info",
		))
	r.MustRegister("2.0.7", "move legacy servers to the canonical address",
		RewriteString(keyServerURL, CanonicalServerURL,
			"https://bettercrewl.ink:6523",
			"http://bettercrewl.ink",
			"http://crewlink.guus.info",
			"https://crewlink.guus.ninja",
		))
	r.MustRegister("2.1.4", "reset per-player audio overrides", Set(keyPlayerConfigMap, func() any {
		return map[string]any{}
	}))
	r.MustRegister("2.2.0", "enable mobile hosting", Set(keyMobileHost, func() any { return true }))
	r.MustRegister("2.2.5", "replace push-to-talk flag with push-to-talk mode", migratePushToTalk)
	r.MustRegister("2.3.6", "move crewl.ink servers to the canonical address", migrateCrewlInk)
	r.MustRegister("2.4.0", "clamp deprecated microphone sensitivity", migrateMicSensitivity)

	return r
}

// RewriteString replaces the string at key with to when it equals one of
// the legacy values.
func RewriteString(key, to string, legacy ...string) func(Document) {
	return func(doc Document) {
		if s, ok := doc[key].(string); ok && slices.Contains(legacy, s) {
			doc[key] = to
		}
	}
}

// Set unconditionally stores a fresh value at key.
func Set(key string, value func() any) func(Document) {
	return func(doc Document) {
		doc[key] = value()
	}
}

func migratePushToTalk(doc Document) {
	ptt, ok := doc[keyLegacyPushToTalk].(bool)
	if !ok {
		return
	}
	if ptt {
		doc[keyPushToTalkMode] = float64(pushToTalkModePTT)
	} else {
		doc[keyPushToTalkMode] = float64(pushToTalkModeVoice)
	}
	delete(doc, keyLegacyPushToTalk)
}

// migrateCrewlInk matches on substring only; other historical spellings
// of the address are left alone.
func migrateCrewlInk(doc Document) {
	if s, ok := doc[keyServerURL].(string); ok && strings.Contains(s, "//crewl.ink") {
		doc[keyServerURL] = CanonicalServerURL
	}
}

func migrateMicSensitivity(doc Document) {
	v, ok := doc[keyMicSensitivity].(float64)
	if !ok || v < sensitivityCutoff {
		return
	}
	doc[keyMicSensitivity] = sensitivityDefault
	doc[keyMicSensitivityEnabled] = false
}
