package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSchema() *Schema {
	lobby := Object().
		Property("maxDistance", Number().Range(1, 10).Default(5.32).Order(1).Build()).
		Property("haunting", Boolean().Default(false).Order(2).Build()).
		Build()

	return Object().
		Property("serverURL", String().Format(FormatURI).Default("https://bettercrewl.ink").Order(1).Build()).
		Property("masterVolume", Integer().Range(0, 200).Default(100).Order(2).Build()).
		Property("overlayPosition", StringEnum("hidden", "top", "right").Default("right").Order(3).Build()).
		Property("playerConfigMap", Object().Default(map[string]any{}).Order(4).Build()).
		Property("localLobbySettings", lobby).
		Build()
}

func TestSchema_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(sampleSchema())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "object", doc["type"])

	props := doc["properties"].(map[string]any)
	server := props["serverURL"].(map[string]any)
	assert.Equal(t, "string", server["type"])
	assert.Equal(t, "uri", server["format"])
	assert.Equal(t, "https://bettercrewl.ink", server["default"])

	volume := props["masterVolume"].(map[string]any)
	assert.Equal(t, 200.0, volume["maximum"])

	multi, err := json.Marshal(SchemaType{Types: []string{"string", "null"}})
	require.NoError(t, err)
	assert.JSONEq(t, `["string","null"]`, string(multi))
}

func TestSchema_GetProperty(t *testing.T) {
	s := sampleSchema()

	tests := []struct {
		path  string
		found bool
	}{
		{"", true},
		{"serverURL", true},
		{"localLobbySettings", true},
		{"localLobbySettings.maxDistance", true},
		{"localLobbySettings.missing", false},
		{"serverURL.host", false},
		{"unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.found, s.HasProperty(tt.path))
		})
	}
}

func TestSchema_Keys(t *testing.T) {
	s := sampleSchema()
	// localLobbySettings has order 0 and sorts first.
	assert.Equal(t, []string{"localLobbySettings", "serverURL", "masterVolume", "overlayPosition", "playerConfigMap"}, s.Keys())

	var nilSchema *Schema
	assert.Nil(t, nilSchema.Keys())
}

func TestSchema_Defaults(t *testing.T) {
	s := sampleSchema()

	defaults := s.Defaults()
	assert.Equal(t, "https://bettercrewl.ink", defaults["serverURL"])
	assert.Equal(t, 100, defaults["masterVolume"])
	assert.Equal(t, map[string]any{"maxDistance": 5.32, "haunting": false}, defaults["localLobbySettings"])

	// Each call produces independent containers.
	defaults["playerConfigMap"].(map[string]any)["7"] = "x"
	again := s.Defaults()
	assert.Empty(t, again["playerConfigMap"])
}

func TestCloneValue(t *testing.T) {
	orig := map[string]any{"a": []any{1, map[string]any{"b": 2}}}
	clone := CloneValue(orig).(map[string]any)

	clone["a"].([]any)[1].(map[string]any)["b"] = 3
	assert.Equal(t, 2, orig["a"].([]any)[1].(map[string]any)["b"])
	assert.Equal(t, "x", CloneValue("x"))
}
