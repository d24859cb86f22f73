// Package settings holds the typed settings document, its schema and the
// reducers that keep in-memory state and durable storage consistent.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"strings"

	"github.com/dshills/crewsettings/internal/config/schema"
)

// Sentinel errors.
var (
	ErrUnknownKey   = errors.New("unknown settings key")
	ErrTypeMismatch = errors.New("value does not match schema")
)

// UndetectedLanguage is stored until the language is detected. The
// misspelling is part of the persisted format.
const UndetectedLanguage = "unkown"

// PushToTalkMode selects how the microphone is gated.
type PushToTalkMode int

const (
	// VoiceActivity transmits whenever voice is detected.
	VoiceActivity PushToTalkMode = iota
	// PushToTalk transmits only while the shortcut is held.
	PushToTalk
	// PushToMute mutes while the shortcut is held.
	PushToMute
)

// String returns the mode name.
func (m PushToTalkMode) String() string {
	switch m {
	case VoiceActivity:
		return "VOICE"
	case PushToTalk:
		return "PUSH_TO_TALK"
	case PushToMute:
		return "PUSH_TO_MUTE"
	default:
		return fmt.Sprintf("PushToTalkMode(%d)", int(m))
	}
}

// PlayerConfig holds per-player audio overrides.
type PlayerConfig struct {
	Volume  float64 `json:"volume"`
	IsMuted bool    `json:"isMuted"`
}

// LobbySettings are the voice rules a lobby host shares with every client.
type LobbySettings struct {
	MaxDistance                   float64 `json:"maxDistance"`
	Haunting                      bool    `json:"haunting"`
	CommsSabotage                 bool    `json:"commsSabotage"`
	HearImpostorsInVents          bool    `json:"hearImpostorsInVents"`
	ImpostersHearImpostersInVents bool    `json:"impostersHearImpostersInvent"`
	DeadOnly                      bool    `json:"deadOnly"`
	MeetingGhostOnly              bool    `json:"meetingGhostOnly"`
	VisionHearing                 bool    `json:"visionHearing"`
	HearThroughCameras            bool    `json:"hearThroughCameras"`
	WallsBlockAudio               bool    `json:"wallsBlockAudio"`
}

// Settings is the typed settings document. Values are passed and returned
// by value; PlayerConfigMap is shared between copies until replaced.
type Settings struct {
	AlwaysOnTop           bool                    `json:"alwaysOnTop"`
	Language              string                  `json:"language"`
	Microphone            string                  `json:"microphone"`
	Speaker               string                  `json:"speaker"`
	PushToTalkMode        PushToTalkMode          `json:"pushToTalkMode"`
	ServerURL             string                  `json:"serverURL"`
	PushToTalkShortcut    string                  `json:"pushToTalkShortcut"`
	DeafenShortcut        string                  `json:"deafenShortcut"`
	MuteShortcut          string                  `json:"muteShortcut"`
	HideCode              bool                    `json:"hideCode"`
	CompactOverlay        bool                    `json:"compactOverlay"`
	OverlayPosition       string                  `json:"overlayPosition"`
	MeetingOverlay        bool                    `json:"meetingOverlay"`
	EnableOverlay         bool                    `json:"enableOverlay"`
	GhostVolume           float64                 `json:"ghostVolume"`
	MasterVolume          float64                 `json:"masterVolume"`
	MicrophoneGain        float64                 `json:"microphoneGain"`
	MicrophoneGainEnabled bool                    `json:"microphoneGainEnabled"`
	MicSensitivity        float64                 `json:"micSensitivity"`
	MicSensitivityEnabled bool                    `json:"micSensitivityEnabled"`
	NatFix                bool                    `json:"natFix"`
	MobileHost            bool                    `json:"mobileHost"`
	VADEnabled            bool                    `json:"vadEnabled"`
	EnableSpatialAudio    bool                    `json:"enableSpatialAudio"`
	OBSSecret             string                  `json:"obsSecret"`
	OBSCompatibilityMode  bool                    `json:"obsComptaibilityMode"`
	OBSOverlay            bool                    `json:"obsOverlay"`
	EchoCancellation      bool                    `json:"echoCancellation"`
	NoiseSuppression      bool                    `json:"noiseSuppression"`
	PlayerConfigMap       map[string]PlayerConfig `json:"playerConfigMap"`
	LocalLobbySettings    LobbySettings           `json:"localLobbySettings"`
}

var (
	fieldIndex      = jsonFieldIndex(reflect.TypeOf(Settings{}))
	lobbyFieldIndex = jsonFieldIndex(reflect.TypeOf(LobbySettings{}))
)

func jsonFieldIndex(t reflect.Type) map[string]int {
	idx := make(map[string]int, t.NumField())
	for i := range t.NumField() {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		idx[name] = i
	}
	return idx
}

// Defaults returns a document holding every schema default.
func Defaults() Settings {
	s, _ := Decode(nil)
	return s
}

// DefaultLobbySettings returns the default lobby rules.
func DefaultLobbySettings() LobbySettings {
	return Defaults().LocalLobbySettings
}

// Get returns the value stored under k, or nil for an unknown key.
func (s Settings) Get(k Key) any {
	i, ok := fieldIndex[string(k)]
	if !ok {
		return nil
	}
	return reflect.ValueOf(s).Field(i).Interface()
}

// With returns a copy of s with k set to value. The value is checked
// against the schema first; s itself is never modified.
func (s Settings) With(k Key, value any) (Settings, error) {
	i, ok := fieldIndex[string(k)]
	if !ok {
		return s, fmt.Errorf("%w: %q", ErrUnknownKey, k)
	}
	generic, err := CheckValue(string(k), value)
	if err != nil {
		return s, err
	}

	next := s
	if err := assign(reflect.ValueOf(&next).Elem().Field(i), generic); err != nil {
		return s, fmt.Errorf("%w: %s: %v", ErrTypeMismatch, k, err)
	}
	return next, nil
}

// Get returns the value stored under k, or nil for an unknown key.
func (l LobbySettings) Get(k LobbyKey) any {
	i, ok := lobbyFieldIndex[string(k)]
	if !ok {
		return nil
	}
	return reflect.ValueOf(l).Field(i).Interface()
}

// With returns a copy of l with k set to value.
func (l LobbySettings) With(k LobbyKey, value any) (LobbySettings, error) {
	i, ok := lobbyFieldIndex[string(k)]
	if !ok {
		return l, fmt.Errorf("%w: %q", ErrUnknownKey, k.Path())
	}
	generic, err := CheckValue(k.Path(), value)
	if err != nil {
		return l, err
	}

	next := l
	if err := assign(reflect.ValueOf(&next).Elem().Field(i), generic); err != nil {
		return l, fmt.Errorf("%w: %s: %v", ErrTypeMismatch, k.Path(), err)
	}
	return next, nil
}

// WithLobby returns a copy of s whose lobby group has k set to value.
func (s Settings) WithLobby(k LobbyKey, value any) (Settings, error) {
	lobby, err := s.LocalLobbySettings.With(k, value)
	if err != nil {
		return s, err
	}
	next := s
	next.LocalLobbySettings = lobby
	return next, nil
}

// Clone returns a deep copy of s.
func (s Settings) Clone() Settings {
	next := s
	next.PlayerConfigMap = maps.Clone(s.PlayerConfigMap)
	return next
}

// Document returns s as a generic document keyed by persisted names.
func (s Settings) Document() map[string]any {
	doc, err := toGeneric(s)
	if err != nil {
		return map[string]any{}
	}
	m, _ := doc.(map[string]any)
	return m
}

// Decode builds Settings from a generic document. Keys that are absent or
// fail schema validation take their default; the replaced paths are
// returned so callers can report them. Unknown keys are ignored.
func Decode(doc map[string]any) (Settings, []string) {
	sch := Describe()
	var s Settings
	var replaced []string

	root := reflect.ValueOf(&s).Elem()
	for _, name := range sch.Keys() {
		prop := sch.Properties[name]
		field := root.Field(fieldIndex[name])
		raw, present := doc[name]

		if prop.IsObject() {
			group, ok := raw.(map[string]any)
			if !ok && present {
				replaced = append(replaced, name)
			}
			replaced = append(replaced, decodeGroup(field, name, prop, group, ok)...)
			continue
		}

		if !decodeField(field, name, prop, raw, present) && len(doc) > 0 {
			replaced = append(replaced, name)
		}
	}
	return s, replaced
}

// decodeGroup fills the struct field from a nested group. Missing entries
// are only reported when the group itself was present.
func decodeGroup(field reflect.Value, name string, prop *schema.Schema, group map[string]any, present bool) []string {
	var replaced []string
	idx := jsonFieldIndex(field.Type())
	for _, sub := range prop.Keys() {
		path := name + "." + sub
		raw, ok := group[sub]
		if !decodeField(field.Field(idx[sub]), path, prop.Properties[sub], raw, ok) && present {
			replaced = append(replaced, path)
		}
	}
	return replaced
}

// decodeField assigns raw when it validates, otherwise the default. It
// reports whether raw was used.
func decodeField(field reflect.Value, path string, prop *schema.Schema, raw any, present bool) bool {
	if present && Validator().Valid(path, raw) && assign(field, raw) == nil {
		return true
	}
	if err := assign(field, prop.DefaultValue()); err != nil {
		field.Set(reflect.Zero(field.Type()))
	}
	return false
}

// CheckValue normalizes value to its generic JSON form and validates it
// against the schema entry at path. Server addresses come back in stored
// form.
func CheckValue(path string, value any) (any, error) {
	generic, err := toGeneric(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTypeMismatch, path, err)
	}
	if err := Validator().ValidatePath(path, generic); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTypeMismatch, err)
	}
	if raw, ok := generic.(string); ok && path == string(KeyServerURL) {
		stored, err := ValidateServerURL(raw)
		if err != nil {
			return nil, err
		}
		generic = stored
	}
	return generic, nil
}

func toGeneric(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func assign(field reflect.Value, generic any) error {
	data, err := json.Marshal(generic)
	if err != nil {
		return err
	}
	ptr := reflect.New(field.Type())
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return err
	}
	field.Set(ptr.Elem())
	return nil
}
