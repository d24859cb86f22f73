package settings

import (
	"errors"
	"sync"

	"github.com/dshills/crewsettings/internal/config/schema"
	"github.com/dshills/crewsettings/internal/input/shortcut"
)

// OverlayPositions are the accepted overlayPosition values.
var OverlayPositions = []string{"hidden", "top", "bottom_left", "right", "right1", "left", "left1"}

// Describe returns the settings schema. The returned schema is shared and
// must not be modified.
func Describe() *schema.Schema {
	return describeOnce()
}

// Validator returns a strict validator for the settings schema. Shortcut
// fields are checked against the token grammar.
func Validator() *schema.Validator {
	return validatorOnce()
}

var describeOnce = sync.OnceValue(func() *schema.Schema {
	order := 0
	next := func() int {
		order++
		return order
	}

	lobby := schema.Object().
		Title("Lobby settings").
		Description("Voice rules shared by the lobby host.").
		Property(string(LobbyMaxDistance), schema.Number().Range(1, 10).Default(5.32).Order(1).
			Description("Voice range in game units.").Build())
	for i, k := range LobbyKeys[1:] {
		lobby.Property(string(k), schema.Boolean().Default(false).Order(i+2).Build())
	}
	b := schema.Object().Title("Settings")
	prop := func(k Key, sb *schema.Builder) {
		b.Property(string(k), sb.Order(next()).Build())
	}

	prop(KeyAlwaysOnTop, schema.Boolean().Default(false))
	prop(KeyLanguage, schema.String().Default(UndetectedLanguage).
		Description("UI language tag, or \"unkown\" until detected."))
	prop(KeyMicrophone, schema.String().Default("Default"))
	prop(KeySpeaker, schema.String().Default("Default"))
	prop(KeyPushToTalkMode, schema.IntEnum(int(VoiceActivity), int(PushToTalk), int(PushToMute)).
		Default(int(VoiceActivity)).
		Description("0 voice activity, 1 push to talk, 2 push to mute."))
	prop(KeyServerURL, schema.String().Format(schema.FormatURI).Default("https://bettercrewl.ink"))
	prop(KeyPushToTalkShortcut, schema.String().Format(schema.FormatShortcut).Default("V"))
	prop(KeyDeafenShortcut, schema.String().Format(schema.FormatShortcut).Default("RControl"))
	prop(KeyMuteShortcut, schema.String().Format(schema.FormatShortcut).Default("RAlt"))
	prop(KeyHideCode, schema.Boolean().Default(false))
	prop(KeyCompactOverlay, schema.Boolean().Default(false))
	prop(KeyOverlayPosition, schema.StringEnum(OverlayPositions...).Default("right"))
	prop(KeyMeetingOverlay, schema.Boolean().Default(true))
	prop(KeyEnableOverlay, schema.Boolean().Default(true))
	prop(KeyGhostVolume, schema.Number().Range(0, 100).Default(100))
	prop(KeyMasterVolume, schema.Number().Range(0, 200).Default(100))
	prop(KeyMicrophoneGain, schema.Number().Range(0, 300).Default(100))
	prop(KeyMicrophoneGainEnabled, schema.Boolean().Default(false))
	prop(KeyMicSensitivity, schema.Number().Range(0, 1).Default(0.15))
	prop(KeyMicSensitivityEnabled, schema.Boolean().Default(false))
	prop(KeyNatFix, schema.Boolean().Default(false))
	prop(KeyMobileHost, schema.Boolean().Default(true))
	prop(KeyVADEnabled, schema.Boolean().Default(true))
	prop(KeyEnableSpatialAudio, schema.Boolean().Default(true))
	prop(KeyOBSSecret, schema.String().Pattern(`^[A-Z0-9]*$`).Default("").
		Description("Generated on first use of the OBS overlay."))
	prop(KeyOBSCompatibilityMode, schema.Boolean().Default(true))
	prop(KeyOBSOverlay, schema.Boolean().Default(false))
	prop(KeyEchoCancellation, schema.Boolean().Default(true))
	prop(KeyNoiseSuppression, schema.Boolean().Default(true))
	prop(KeyPlayerConfigMap, schema.Object().Default(map[string]any{}))
	b.Property(string(KeyLocalLobbySettings), lobby.Order(next()).Build())

	return b.Build()
})

var validatorOnce = sync.OnceValue(func() *schema.Validator {
	return schema.NewValidator(Describe()).
		WithStrictMode(true).
		WithFormat(schema.FormatURI, func(value string) error {
			_, err := ValidateServerURL(value)
			return err
		}).
		WithFormat(schema.FormatShortcut, func(value string) error {
			if !shortcut.Token(value).Valid() {
				return errors.New("not a valid shortcut token")
			}
			return nil
		})
})
