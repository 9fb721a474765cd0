package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServiceRequiresAPIKey(t *testing.T) {
	_, err := NewService(&Config{Provider: "deepseek", Model: "deepseek-chat"})
	require.Error(t, err)

	// Ollama runs locally and needs no key.
	svc, err := NewService(&Config{Provider: "ollama", Model: "llama3.1", BaseURL: "http://localhost:11434"})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, stripCodeFence(tc.in), "input %q", tc.in)
	}
}

func TestOptionsTemperatureSet(t *testing.T) {
	// An explicit zero temperature must be distinguishable from "unset":
	// tier 0 intents pin sampling to exactly 0.0.
	opts := Options{Temperature: 0, TemperatureSet: true}
	assert.True(t, opts.TemperatureSet)
	assert.Zero(t, opts.Temperature)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "0123456789...", truncate("0123456789abcdef", 10))
}
