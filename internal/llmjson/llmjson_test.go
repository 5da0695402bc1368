package llmjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

func TestParsePlainJSON(t *testing.T) {
	var out payload
	ok := Parse(`{"score": 85, "label": "good"}`, &out)

	require.True(t, ok)
	assert.Equal(t, 85.0, out.Score)
	assert.Equal(t, "good", out.Label)
}

func TestParseJSONFence(t *testing.T) {
	raw := "Here is the analysis you asked for:\n```json\n{\"score\": 42, \"label\": \"ok\"}\n```\nLet me know if you need more."

	var out payload
	require.True(t, Parse(raw, &out))
	assert.Equal(t, 42.0, out.Score)
}

func TestParseGenericFenceWithLanguageTag(t *testing.T) {
	raw := "Result:\n```javascript\n{\"score\": 7, \"label\": \"meh\"}\n```"

	var out payload
	require.True(t, Parse(raw, &out))
	assert.Equal(t, 7.0, out.Score)
	assert.Equal(t, "meh", out.Label)
}

func TestParseBraceSubstring(t *testing.T) {
	raw := `Sure! The result is {"score": 99, "label": "great"} and hope that helps.`

	var out payload
	require.True(t, Parse(raw, &out))
	assert.Equal(t, 99.0, out.Score)
}

func TestParseGarbageLeavesOutUntouched(t *testing.T) {
	out := payload{Score: 10, Label: "unchanged"}
	ok := Parse("I could not produce any structured output, sorry.", &out)

	assert.False(t, ok)
	assert.Equal(t, 10.0, out.Score)
	assert.Equal(t, "unchanged", out.Label)
}

func TestParseEmptyInput(t *testing.T) {
	var out payload
	assert.False(t, Parse("", &out))
	assert.False(t, Parse("   \n  ", &out))
}

func TestParseMapReturnsDefaultOnFailure(t *testing.T) {
	def := map[string]any{"interest_level": "unknown"}

	got := ParseMap("no json here", def)
	assert.Equal(t, def, got)

	got = ParseMap(`{"interest_level": "high"}`, def)
	assert.Equal(t, "high", got["interest_level"])
}
