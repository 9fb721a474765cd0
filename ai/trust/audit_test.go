package trust

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu        sync.Mutex
	decisions []*Decision
	err       error
	block     chan struct{}
}

func (s *recordingSink) AppendTrustDecision(_ context.Context, d *Decision) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.decisions = append(s.decisions, d)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.decisions)
}

func TestAuditWriterPersistsDecisions(t *testing.T) {
	sink := &recordingSink{}
	w := NewAuditWriter(sink, 16)

	for i := 0; i < 5; i++ {
		w.Append(&Decision{ID: newDecisionID(), Mode: ModeRead})
	}
	w.Close()

	assert.Equal(t, 5, sink.count())
	assert.Zero(t, w.Dropped())
}

func TestAuditWriterSwallowsSinkErrors(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	w := NewAuditWriter(sink, 16)

	// Append must not panic or propagate anything.
	w.Append(&Decision{ID: newDecisionID()})
	w.Close()
}

func TestAuditWriterDropsWhenFull(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	w := NewAuditWriter(sink, 1)

	// First append may start persisting and block; flood the rest.
	for i := 0; i < 10; i++ {
		w.Append(&Decision{ID: newDecisionID()})
	}

	require.Eventually(t, func() bool { return w.Dropped() > 0 },
		time.Second, 10*time.Millisecond, "a full buffer must drop, not block")
	close(sink.block)
	w.Close()
}

func TestGateAppendsToAudit(t *testing.T) {
	sink := &recordingSink{}
	w := NewAuditWriter(sink, 16)
	gate := NewGate(&fakeAllowlist{}, w)

	gate.Evaluate(context.Background(), &Request{
		UserID: 1, SourceType: "email", SourceValue: "x", Channel: "email",
		RequestedAction: "device",
	})
	gate.Evaluate(context.Background(), &Request{
		UserID: 1, Channel: "web", Authenticated: true, RequestedAction: "device",
	})
	w.Close()

	require.Equal(t, 2, sink.count())
	assert.Equal(t, ModeRead, sink.decisions[0].Mode)
	assert.Equal(t, ModeAct, sink.decisions[1].Mode)
}
