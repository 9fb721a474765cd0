package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/kestrel/ai/intent"
)

func snapshotWith(turns []Turn, entities []Entity) *Snapshot {
	return &Snapshot{Turns: turns, Entities: entities, Retrieved: true}
}

func TestContextMatcherRecall(t *testing.T) {
	m := NewContextMatcher()

	match := m.Resolve("what did I tell you about Arduino last week", snapshotWith(nil, []Entity{
		{Name: "Arduino", Kind: "topic", LastSeen: time.Now()},
	}))
	require.NotNil(t, match)
	assert.Equal(t, intent.IntentMemoryRecall, match.Intent)
	assert.Equal(t, "Arduino", match.Slots["topic"])
	assert.GreaterOrEqual(t, match.Confidence, float32(0.5))
	// Recall confidence is inherently bounded: never certain territory.
	assert.Less(t, match.Confidence, float32(0.85))
}

func TestContextMatcherRecallWithoutKnownEntity(t *testing.T) {
	m := NewContextMatcher()

	match := m.Resolve("remember what I said about the garden", &Snapshot{Retrieved: true})
	require.NotNil(t, match)
	assert.Equal(t, intent.IntentMemoryRecall, match.Intent)
	assert.Less(t, match.Confidence, float32(0.7), "unverified topics score lower")
}

func TestContextMatcherFollowUpInheritsIntent(t *testing.T) {
	m := NewContextMatcher()

	snap := snapshotWith([]Turn{
		{Role: "assistant", Text: "Done, kitchen light is on."},
		{Role: "user", Text: "turn on the kitchen light", Intent: intent.IntentDeviceControl},
	}, []Entity{
		{Name: "bedroom", Kind: "room"},
	})

	match := m.Resolve("and the bedroom?", snap)
	require.NotNil(t, match)
	assert.Equal(t, intent.IntentDeviceControl, match.Intent)
	assert.Equal(t, "bedroom", match.Slots["room"])
	assert.GreaterOrEqual(t, match.Confidence, float32(0.5))
}

func TestContextMatcherPronounReference(t *testing.T) {
	m := NewContextMatcher()

	snap := snapshotWith([]Turn{
		{Role: "user", Text: "turn on the fan", Intent: intent.IntentDeviceControl},
	}, nil)

	match := m.Resolve("turn it off", snap)
	require.NotNil(t, match)
	assert.Equal(t, intent.IntentDeviceControl, match.Intent)
}

func TestContextMatcherNoContextNoMatch(t *testing.T) {
	m := NewContextMatcher()

	assert.Nil(t, m.Resolve("and the bedroom?", &Snapshot{Retrieved: true}))
	assert.Nil(t, m.Resolve("turn on the kitchen light", snapshotWith([]Turn{
		{Role: "user", Text: "hello", Intent: intent.IntentSmalltalk},
	}, nil)))
}
