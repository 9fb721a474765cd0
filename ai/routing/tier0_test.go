package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/kestrel/ai/intent"
)

func TestRuleMatcherDeviceControl(t *testing.T) {
	matcher := NewRuleMatcher()

	testCases := []struct {
		input  string
		ruleID string
		slots  map[string]string
	}{
		{
			input:  "turn on the kitchen light",
			ruleID: "device.toggle",
			slots:  map[string]string{"state": "on", "room": "kitchen", "device": "light"},
		},
		{
			input:  "Turn off the living room lights",
			ruleID: "device.toggle",
			slots:  map[string]string{"state": "off", "room": "living room", "device": "lights"},
		},
		{
			input:  "switch the fan off",
			ruleID: "device.toggle.suffix",
			slots:  map[string]string{"state": "off", "device": "fan"},
		},
		{
			input:  "please dim the bedroom lamp",
			ruleID: "device.dim",
			slots:  map[string]string{"room": "bedroom", "device": "lamp"},
		},
	}

	for _, tc := range testCases {
		m := matcher.Match(tc.input)
		require.NotNil(t, m, "input %q", tc.input)
		assert.Equal(t, intent.IntentDeviceControl, m.Intent, "input %q", tc.input)
		assert.Equal(t, tc.ruleID, m.RuleID, "input %q", tc.input)
		assert.GreaterOrEqual(t, m.Confidence, float32(0.9), "input %q", tc.input)
		for name, want := range tc.slots {
			assert.Equal(t, want, m.Slots[name], "input %q slot %q", tc.input, name)
		}
	}
}

func TestRuleMatcherQueries(t *testing.T) {
	matcher := NewRuleMatcher()

	testCases := []struct {
		input    string
		expected intent.Intent
	}{
		{"what time is it?", intent.IntentTimeQuery},
		{"What's the time", intent.IntentTimeQuery},
		{"what's the weather like today", intent.IntentWeatherQuery},
		{"what's on my calendar tomorrow", intent.IntentCalendarQuery},
		{"what is my agenda", intent.IntentCalendarQuery},
		{"add milk to the shopping list", intent.IntentListAdd},
		{"what's on my shopping list", intent.IntentListQuery},
		{"schedule a meeting with sam at noon", intent.IntentCalendarCreate},
		{"note down that the boiler pressure was low", intent.IntentJournalCreate},
	}

	for _, tc := range testCases {
		m := matcher.Match(tc.input)
		require.NotNil(t, m, "input %q", tc.input)
		assert.Equal(t, tc.expected, m.Intent, "input %q", tc.input)
		assert.GreaterOrEqual(t, m.Confidence, float32(0.9), "input %q", tc.input)
	}
}

func TestRuleMatcherCalendarQueryIsNotAList(t *testing.T) {
	matcher := NewRuleMatcher()

	// The list rules require the literal word "list" so that calendar and
	// agenda queries match exactly one rule.
	for _, input := range []string{
		"what's on my calendar tomorrow",
		"what's on my schedule today",
		"what is on my agenda",
	} {
		m := matcher.Match(input)
		require.NotNil(t, m, "input %q", input)
		assert.Equal(t, intent.IntentCalendarQuery, m.Intent, "input %q", input)
		assert.Empty(t, m.Slots["list"], "input %q", input)
	}
}

func TestRuleMatcherSlotExtraction(t *testing.T) {
	matcher := NewRuleMatcher()

	m := matcher.Match("add olive oil to my grocery list")
	require.NotNil(t, m)
	assert.Equal(t, intent.IntentListAdd, m.Intent)
	assert.Equal(t, "olive oil", m.Slots["item"])
	assert.Equal(t, "grocery", m.Slots["list"])
}

func TestRuleMatcherNoMatch(t *testing.T) {
	matcher := NewRuleMatcher()

	for _, input := range []string{
		"tell me a story about dragons",
		"why is the sky blue",
		"what did I tell you about Arduino last week",
		"",
	} {
		assert.Nil(t, matcher.Match(input), "input %q", input)
	}
}
