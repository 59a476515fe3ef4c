package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func navigateSchema() *ObjectSchema {
	return &ObjectSchema{
		Fields: map[string]Field{
			"url":        {Type: String, Description: "target URL"},
			"timeout_ms": {Type: Int, Description: "navigation timeout"},
			"wait":       {Type: Bool, Description: "wait for load"},
			"mode":       {Type: String, Enum: []string{"default", "strict"}},
		},
		Required: []string{"url"},
	}
}

func TestValidateAndTransformHappyPath(t *testing.T) {
	raw := json.RawMessage(`{"url":"http://localhost:3000","timeout_ms":500,"wait":true}`)

	values, warnings, verr := navigateSchema().ValidateAndTransform(raw)
	require.Nil(t, verr)
	assert.Empty(t, warnings)
	assert.Equal(t, "http://localhost:3000", values["url"])
	assert.Equal(t, 500, values["timeout_ms"]) // float64 narrowed to int
	assert.Equal(t, true, values["wait"])
}

func TestValidateMissingRequired(t *testing.T) {
	_, _, verr := navigateSchema().ValidateAndTransform(json.RawMessage(`{"wait":true}`))
	require.NotNil(t, verr)
	assert.Equal(t, "url", verr.Param)
	assert.Contains(t, verr.Error(), "required")
}

func TestValidateTypeMismatch(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"string field gets number", `{"url":42}`},
		{"int field gets fraction", `{"url":"x","timeout_ms":1.5}`},
		{"bool field gets string", `{"url":"x","wait":"yes"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, verr := navigateSchema().ValidateAndTransform(json.RawMessage(tc.raw))
			assert.NotNil(t, verr)
		})
	}
}

func TestValidateEnum(t *testing.T) {
	_, _, verr := navigateSchema().ValidateAndTransform(json.RawMessage(`{"url":"x","mode":"bogus"}`))
	require.NotNil(t, verr)
	assert.Equal(t, "mode", verr.Param)

	values, _, verr := navigateSchema().ValidateAndTransform(json.RawMessage(`{"url":"x","mode":"strict"}`))
	require.Nil(t, verr)
	assert.Equal(t, "strict", values["mode"])
}

func TestValidateUnknownFieldWarnsAndDrops(t *testing.T) {
	values, warnings, verr := navigateSchema().ValidateAndTransform(json.RawMessage(`{"url":"x","ulr":"typo"}`))
	require.Nil(t, verr)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], `"ulr"`)
	_, present := values["ulr"]
	assert.False(t, present)
}

func TestValidateMalformedJSON(t *testing.T) {
	_, _, verr := navigateSchema().ValidateAndTransform(json.RawMessage(`[1,2]`))
	assert.NotNil(t, verr)
}

func TestValidateEmptyInput(t *testing.T) {
	s := &ObjectSchema{Fields: map[string]Field{"n": {Type: Int}}}
	values, warnings, verr := s.ValidateAndTransform(nil)
	require.Nil(t, verr)
	assert.Empty(t, warnings)
	assert.Empty(t, values)
}

func TestJSONSchemaRendering(t *testing.T) {
	rendered := navigateSchema().JSONSchema()
	assert.Equal(t, "object", rendered["type"])
	assert.Equal(t, []string{"url"}, rendered["required"])

	props := rendered["properties"].(map[string]any)
	urlProp := props["url"].(map[string]any)
	assert.Equal(t, "string", urlProp["type"])
}
