package settings

// Key names a top-level settings key. The set is closed: only the
// constants below are valid.
type Key string

const (
	KeyAlwaysOnTop           Key = "alwaysOnTop"
	KeyLanguage              Key = "language"
	KeyMicrophone            Key = "microphone"
	KeySpeaker               Key = "speaker"
	KeyPushToTalkMode        Key = "pushToTalkMode"
	KeyServerURL             Key = "serverURL"
	KeyPushToTalkShortcut    Key = "pushToTalkShortcut"
	KeyDeafenShortcut        Key = "deafenShortcut"
	KeyMuteShortcut          Key = "muteShortcut"
	KeyHideCode              Key = "hideCode"
	KeyCompactOverlay        Key = "compactOverlay"
	KeyOverlayPosition       Key = "overlayPosition"
	KeyMeetingOverlay        Key = "meetingOverlay"
	KeyEnableOverlay         Key = "enableOverlay"
	KeyGhostVolume           Key = "ghostVolume"
	KeyMasterVolume          Key = "masterVolume"
	KeyMicrophoneGain        Key = "microphoneGain"
	KeyMicrophoneGainEnabled Key = "microphoneGainEnabled"
	KeyMicSensitivity        Key = "micSensitivity"
	KeyMicSensitivityEnabled Key = "micSensitivityEnabled"
	KeyNatFix                Key = "natFix"
	KeyMobileHost            Key = "mobileHost"
	KeyVADEnabled            Key = "vadEnabled"
	KeyEnableSpatialAudio    Key = "enableSpatialAudio"
	KeyOBSSecret             Key = "obsSecret"
	KeyOBSCompatibilityMode  Key = "obsComptaibilityMode"
	KeyOBSOverlay            Key = "obsOverlay"
	KeyEchoCancellation      Key = "echoCancellation"
	KeyNoiseSuppression      Key = "noiseSuppression"
	KeyPlayerConfigMap       Key = "playerConfigMap"
	KeyLocalLobbySettings    Key = "localLobbySettings"
)

// Keys lists every top-level key in display order.
var Keys = []Key{
	KeyAlwaysOnTop,
	KeyLanguage,
	KeyMicrophone,
	KeySpeaker,
	KeyPushToTalkMode,
	KeyServerURL,
	KeyPushToTalkShortcut,
	KeyDeafenShortcut,
	KeyMuteShortcut,
	KeyHideCode,
	KeyCompactOverlay,
	KeyOverlayPosition,
	KeyMeetingOverlay,
	KeyEnableOverlay,
	KeyGhostVolume,
	KeyMasterVolume,
	KeyMicrophoneGain,
	KeyMicrophoneGainEnabled,
	KeyMicSensitivity,
	KeyMicSensitivityEnabled,
	KeyNatFix,
	KeyMobileHost,
	KeyVADEnabled,
	KeyEnableSpatialAudio,
	KeyOBSSecret,
	KeyOBSCompatibilityMode,
	KeyOBSOverlay,
	KeyEchoCancellation,
	KeyNoiseSuppression,
	KeyPlayerConfigMap,
	KeyLocalLobbySettings,
}

// ShortcutKeys are the keys holding shortcut tokens. A change to any of
// them requires the host to re-register its global input hooks.
var ShortcutKeys = []Key{
	KeyPushToTalkShortcut,
	KeyDeafenShortcut,
	KeyMuteShortcut,
}

// RestartKeys are the keys whose new values only take effect after the
// voice session is reloaded.
var RestartKeys = []Key{
	KeyMicrophone,
	KeySpeaker,
	KeyServerURL,
	KeyVADEnabled,
	KeyNatFix,
	KeyNoiseSuppression,
	KeyEchoCancellation,
	KeyOBSCompatibilityMode,
	KeyMobileHost,
	KeyMicrophoneGainEnabled,
	KeyMicSensitivityEnabled,
}

// Valid reports whether k is a known key.
func (k Key) Valid() bool {
	_, ok := fieldIndex[string(k)]
	return ok
}

// IsShortcut reports whether k holds a shortcut token.
func (k Key) IsShortcut() bool {
	for _, s := range ShortcutKeys {
		if s == k {
			return true
		}
	}
	return false
}

// NeedsRestart reports whether a change to k only applies after reload.
func (k Key) NeedsRestart() bool {
	for _, s := range RestartKeys {
		if s == k {
			return true
		}
	}
	return false
}

// String returns the persisted key name.
func (k Key) String() string {
	return string(k)
}

// LobbyKey names a key inside the localLobbySettings group.
type LobbyKey string

const (
	LobbyMaxDistance                   LobbyKey = "maxDistance"
	LobbyHaunting                      LobbyKey = "haunting"
	LobbyCommsSabotage                 LobbyKey = "commsSabotage"
	LobbyHearImpostorsInVents          LobbyKey = "hearImpostorsInVents"
	LobbyImpostersHearImpostersInVents LobbyKey = "impostersHearImpostersInvent"
	LobbyDeadOnly                      LobbyKey = "deadOnly"
	LobbyMeetingGhostOnly              LobbyKey = "meetingGhostOnly"
	LobbyVisionHearing                 LobbyKey = "visionHearing"
	LobbyHearThroughCameras            LobbyKey = "hearThroughCameras"
	LobbyWallsBlockAudio               LobbyKey = "wallsBlockAudio"
)

// LobbyKeys lists every lobby key in display order.
var LobbyKeys = []LobbyKey{
	LobbyMaxDistance,
	LobbyHaunting,
	LobbyCommsSabotage,
	LobbyHearImpostorsInVents,
	LobbyImpostersHearImpostersInVents,
	LobbyDeadOnly,
	LobbyMeetingGhostOnly,
	LobbyVisionHearing,
	LobbyHearThroughCameras,
	LobbyWallsBlockAudio,
}

// Valid reports whether k is a known lobby key.
func (k LobbyKey) Valid() bool {
	_, ok := lobbyFieldIndex[string(k)]
	return ok
}

// Path returns the dotted document path of k.
func (k LobbyKey) Path() string {
	return string(KeyLocalLobbySettings) + "." + string(k)
}

// String returns the persisted key name.
func (k LobbyKey) String() string {
	return string(k)
}
