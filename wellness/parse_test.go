package wellness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "plain", content: `  {"a": 1}  `, want: `{"a": 1}`},
		{name: "json fence", content: "Here you go:\n```json\n{\"a\": 1}\n```\nThanks", want: `{"a": 1}`},
		{name: "bare fence", content: "```\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "first fence wins", content: "```json\n{\"a\": 1}\n```\n```json\n{\"b\": 2}\n```", want: `{"a": 1}`},
		{name: "empty", content: "   ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.content))
		})
	}
}

func TestDecodeInto_KeepsDefaultsForMissingKeys(t *testing.T) {
	t.Parallel()

	out := defaultSupervisorOutput()
	require.NoError(t, decodeInto(`{"intent": "focus improvement"}`, &out))

	assert.Equal(t, "focus improvement", out.Intent)
	assert.Equal(t, "neutral", out.EmotionalState)
	assert.True(t, out.Allowed)
	assert.Equal(t, "This is not medical advice.", out.SafetyNote)
}

func TestDecodeInto_Errors(t *testing.T) {
	t.Parallel()

	var out Plan
	assert.ErrorIs(t, decodeInto("", &out), ErrEmptyOutput)
	assert.ErrorIs(t, decodeInto("```json\n```", &out), ErrEmptyOutput)

	err := decodeInto("not json at all", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode model output")

	err = decodeInto(`{"plan": "emotion_reflection"}`, &out)
	require.Error(t, err, "a string where a list is expected is a decode error")
}
