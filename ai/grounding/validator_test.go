package grounding

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/kestrel/internal/profile"
)

type recordingSink struct {
	mu         sync.Mutex
	violations []*Violation
}

func (s *recordingSink) AppendGroundingViolation(_ context.Context, v *Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.violations = append(s.violations, v)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.violations)
}

func newFastValidator(sink ViolationSink) *Validator {
	return NewValidator(Config{
		Method:    profile.GroundingFast,
		Threshold: 0.7,
		Sink:      sink,
	})
}

func TestShortResponseIsGrounded(t *testing.T) {
	v := newFastValidator(nil)

	verdict := v.Check(context.Background(), "The kitchen light is on.", "", 1, "s1")
	assert.True(t, verdict.Grounded)
}

func TestUncertaintyAdmissionIsAlwaysGrounded(t *testing.T) {
	v := newFastValidator(nil)

	// An admission of uncertainty carries no claim, no matter how long the
	// response or how empty the context.
	long := "I'm not sure about the details of that conversation, there were several " +
		"topics discussed that day and I could not tell you which one you mean exactly."
	verdict := v.Check(context.Background(), long, "", 1, "s1")

	assert.True(t, verdict.Grounded)
	assert.Equal(t, float32(1), verdict.Confidence)
}

func TestSupportedResponsePasses(t *testing.T) {
	sink := &recordingSink{}
	v := newFastValidator(sink)

	contextText := "user: remind me the arduino project uses a soil moisture sensor " +
		"on pin seven with a relay controlling the pump"
	response := "Your arduino project uses a soil moisture sensor on pin seven, " +
		"and a relay controls the pump."

	verdict := v.Check(context.Background(), response, contextText, 1, "s1")

	assert.True(t, verdict.Grounded)
	assert.GreaterOrEqual(t, verdict.Confidence, float32(0.7))
	assert.Equal(t, 0, sink.count())
}

func TestFabricatedDetailFailsAndRecordsViolation(t *testing.T) {
	sink := &recordingSink{}
	v := newFastValidator(sink)

	contextText := "user: the arduino project waters the basil plant every morning"
	response := "Your arduino setup measures barometric pressure, ambient humidity, " +
		"wind velocity and transmits telemetry readings over satellite uplink hourly."

	verdict := v.Check(context.Background(), response, contextText, 7, "s2")

	require.False(t, verdict.Grounded)
	assert.Contains(t, verdict.Flags, "low_overlap")
	require.Equal(t, 1, sink.count())
	assert.Equal(t, int32(7), sink.violations[0].UserID)
	assert.Equal(t, response, sink.violations[0].Response)
	assert.NotEmpty(t, sink.violations[0].ID)
}

func TestCitationLanguageWithoutSupportIsFlagged(t *testing.T) {
	v := newFastValidator(nil)

	response := "Studies show that watering basil twice daily doubles growth, " +
		"which matches what your sensor data has been indicating recently."
	verdict := v.Check(context.Background(), response, "user: how is my basil doing", 1, "s1")

	assert.False(t, verdict.Grounded)
	assert.Contains(t, verdict.Explanation, "citation-style claim")
	assert.Contains(t, verdict.Flags, "citation_language")
}

func TestNoContextFailsOpen(t *testing.T) {
	v := newFastValidator(nil)

	response := "Basil generally prefers well-drained soil and regular sunlight " +
		"throughout the warmer growing months of the year."
	verdict := v.Check(context.Background(), response, "", 1, "s1")

	assert.True(t, verdict.Grounded)
}

func TestThresholdOutOfRangeDefaults(t *testing.T) {
	v := NewValidator(Config{Method: profile.GroundingFast, Threshold: 4})
	assert.Equal(t, float32(0.7), v.threshold)
}

func TestThoroughWithoutServiceDegradesToFast(t *testing.T) {
	v := NewValidator(Config{Method: profile.GroundingThorough})
	assert.Equal(t, profile.GroundingFast, v.method)
}
