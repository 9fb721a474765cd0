package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/kestrel/ai/generation"
	"github.com/kestrelhq/kestrel/ai/intent"
	"github.com/kestrelhq/kestrel/ai/metrics"
	"github.com/kestrelhq/kestrel/ai/routing"
	"github.com/kestrelhq/kestrel/ai/trust"
)

type fakeAllowlist struct {
	entries []*trust.AllowlistEntry
}

func (f *fakeAllowlist) FindAllowlistEntry(_ context.Context, userID int32, contactType, contactValue string) (*trust.AllowlistEntry, error) {
	for _, e := range f.entries {
		if e.UserID == userID && e.ContactType == contactType && e.ContactValue == contactValue {
			return e, nil
		}
	}
	return nil, nil
}

type fakeProvider struct {
	turns    []routing.Turn
	entities []routing.Entity
}

func (f *fakeProvider) RecentTurns(_ context.Context, _ string, limit int) ([]routing.Turn, error) {
	if limit < len(f.turns) {
		return f.turns[:limit], nil
	}
	return f.turns, nil
}

func (f *fakeProvider) KnownEntities(_ context.Context, _ string) ([]routing.Entity, error) {
	return f.entities, nil
}

type recordingExecutor struct {
	mu      sync.Mutex
	calls   []*routing.Result
	message string
	err     error
}

func (e *recordingExecutor) Execute(_ context.Context, _ *Turn, res *routing.Result) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, res)
	return e.message, e.err
}

func (e *recordingExecutor) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

type memoryMetricsSink struct {
	mu      sync.Mutex
	records []*metrics.Record
}

func (s *memoryMetricsSink) AppendResolutionRecord(_ context.Context, rec *metrics.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memoryMetricsSink) ResolutionRecordsSince(_ context.Context, _ time.Time) ([]*metrics.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records, nil
}

// fullExecutors registers a no-op executor for every side-effecting intent
// except the ones explicitly overridden.
func fullExecutors(reg *intent.Registry, overrides map[intent.Intent]Executor) *ExecutorRegistry {
	execs := NewExecutorRegistry()
	for _, def := range reg.SideEffecting() {
		execs.Register(def.Intent, ExecutorFunc(func(context.Context, *Turn, *routing.Result) (string, error) {
			return "Done.", nil
		}))
	}
	for it, exec := range overrides {
		execs.Register(it, exec)
	}
	return execs
}

type testHarness struct {
	pipeline  *Pipeline
	executor  *recordingExecutor
	sink      *memoryMetricsSink
	collector *metrics.Collector
}

func newHarness(t *testing.T, allowlist trust.AllowlistStore, provider routing.ContextProvider) *testHarness {
	t.Helper()

	reg := intent.DefaultRegistry()
	executor := &recordingExecutor{message: "Okay, the kitchen light is on."}
	sink := &memoryMetricsSink{}
	collector := metrics.NewCollector(metrics.CollectorConfig{Sink: sink, QueueSize: 32})
	t.Cleanup(collector.Close)

	p, err := New(Config{
		Registry: reg,
		Chain: routing.NewChain(routing.ChainConfig{
			Registry: reg,
			Context:  provider,
		}),
		Gate:      trust.NewGate(allowlist, nil),
		Executors: fullExecutors(reg, map[intent.Intent]Executor{intent.IntentDeviceControl: executor}),
		Collector: collector,
	})
	require.NoError(t, err)

	return &testHarness{pipeline: p, executor: executor, sink: sink, collector: collector}
}

func (h *testHarness) lastRecord(t *testing.T) *metrics.Record {
	t.Helper()
	h.collector.Close()
	h.sink.mu.Lock()
	defer h.sink.mu.Unlock()
	require.NotEmpty(t, h.sink.records)
	return h.sink.records[len(h.sink.records)-1]
}

func TestTrustedDeviceCommandExecutes(t *testing.T) {
	h := newHarness(t, &fakeAllowlist{}, nil)

	out := h.pipeline.Run(context.Background(), &Turn{
		UserID:        1,
		SessionID:     "s1",
		Text:          "turn on the kitchen light",
		SourceType:    "session",
		SourceValue:   "s1",
		Channel:       "app",
		Authenticated: true,
	})

	require.NotNil(t, out.Result)
	assert.Equal(t, intent.IntentDeviceControl, out.Result.Intent)
	assert.Equal(t, 0, out.Result.Tier)
	assert.Equal(t, float32(0.95), out.Result.Confidence)

	assert.Equal(t, trust.ModeAct, out.Decision.Mode)
	assert.True(t, out.Executed)
	assert.Equal(t, 1, h.executor.count())

	// Tier 0 at 0.95 needs no hedging.
	assert.Equal(t, generation.QualifierNone, out.Qualifier)
	assert.Equal(t, "Okay, the kitchen light is on.", out.Response)

	rec := h.lastRecord(t)
	assert.Equal(t, 0, rec.Tier)
	assert.Equal(t, intent.IntentDeviceControl, rec.Intent)
	assert.True(t, rec.Success)
	assert.True(t, rec.Executed)
	assert.Equal(t, string(trust.ModeAct), rec.TrustMode)
}

func TestUntrustedDeviceCommandIsSuppressed(t *testing.T) {
	h := newHarness(t, &fakeAllowlist{}, nil)

	// Same text, but arriving by email from an unregistered sender.
	out := h.pipeline.Run(context.Background(), &Turn{
		UserID:      1,
		SessionID:   "s1",
		Text:        "turn on the kitchen light",
		SourceType:  "email",
		SourceValue: "stranger@example.com",
		Channel:     "email",
	})

	assert.Equal(t, intent.IntentDeviceControl, out.Result.Intent)
	assert.Equal(t, trust.ModeRead, out.Decision.Mode)
	assert.False(t, out.Executed)
	assert.Equal(t, 0, h.executor.count())
	assert.Contains(t, out.Response, "can't make changes")

	rec := h.lastRecord(t)
	assert.False(t, rec.Executed)
	assert.Equal(t, string(trust.ModeRead), rec.TrustMode)
}

func TestAllowlistedContactMayExecuteGrantedPermissions(t *testing.T) {
	allowlist := &fakeAllowlist{entries: []*trust.AllowlistEntry{{
		UserID:       1,
		ContactType:  "email",
		ContactValue: "mom@example.com",
		Permissions:  []string{intent.PermissionDevice},
		Label:        "Mom",
	}}}
	h := newHarness(t, allowlist, nil)

	out := h.pipeline.Run(context.Background(), &Turn{
		UserID:      1,
		SessionID:   "s1",
		Text:        "turn on the kitchen light",
		SourceType:  "email",
		SourceValue: "mom@example.com",
		Channel:     "email",
	})

	assert.Equal(t, trust.ModeAct, out.Decision.Mode)
	assert.True(t, out.Executed)
	assert.Equal(t, 1, h.executor.count())

	// The gate is asked for the intent's permission, not the intent name,
	// so an exact permission grant suffices.
	assert.Equal(t, intent.PermissionDevice, out.Decision.ActionRequested)
}

func TestContextualRecallEscalatesAndHedges(t *testing.T) {
	provider := &fakeProvider{
		turns: []routing.Turn{
			{Role: "user", Text: "my arduino project waters the basil with a soil moisture sensor", CreatedAt: time.Now().Add(-time.Hour)},
		},
		entities: []routing.Entity{{Name: "arduino", Kind: "project"}},
	}
	h := newHarness(t, &fakeAllowlist{}, provider)

	out := h.pipeline.Run(context.Background(), &Turn{
		UserID:        1,
		SessionID:     "s1",
		Text:          "what did i tell you about my arduino project",
		SourceType:    "session",
		SourceValue:   "s1",
		Channel:       "app",
		Authenticated: true,
	})

	require.NotNil(t, out.Result)
	assert.Equal(t, intent.IntentMemoryRecall, out.Result.Intent)
	assert.Equal(t, 2, out.Result.Tier)
	assert.True(t, out.Result.ContextUsed)
	assert.False(t, out.Executed)

	// Recall through tier 2 never reads as certain.
	assert.NotEqual(t, generation.QualifierNone, out.Qualifier)
}

func TestUnresolvedAsksForClarification(t *testing.T) {
	h := newHarness(t, &fakeAllowlist{}, nil)

	out := h.pipeline.Run(context.Background(), &Turn{
		UserID:        1,
		SessionID:     "s1",
		Text:          "florble the wuzzit",
		SourceType:    "session",
		SourceValue:   "s1",
		Channel:       "app",
		Authenticated: true,
	})

	require.NotNil(t, out.Result)
	assert.True(t, out.Result.Unresolved)
	assert.Equal(t, clarificationText, out.Response)
	assert.False(t, out.Executed)
	assert.Zero(t, out.Confidence)

	// Provenance is evaluated for every message, resolvable or not.
	require.NotNil(t, out.Decision)
	assert.Equal(t, trust.ModeAct, out.Decision.Mode)
	assert.Equal(t, intent.PermissionRead, out.Decision.ActionRequested)
}

type recordingAuditSink struct {
	mu        sync.Mutex
	decisions []*trust.Decision
}

func (s *recordingAuditSink) AppendTrustDecision(_ context.Context, d *trust.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, d)
	return nil
}

func TestUnresolvedTurnIsAudited(t *testing.T) {
	reg := intent.DefaultRegistry()
	sink := &recordingAuditSink{}
	audit := trust.NewAuditWriter(sink, 8)

	p, err := New(Config{
		Registry:  reg,
		Chain:     routing.NewChain(routing.ChainConfig{Registry: reg}),
		Gate:      trust.NewGate(&fakeAllowlist{}, audit),
		Executors: fullExecutors(reg, nil),
	})
	require.NoError(t, err)

	out := p.Run(context.Background(), &Turn{
		UserID:      1,
		SessionID:   "s1",
		Text:        "florble the wuzzit",
		SourceType:  "email",
		SourceValue: "stranger@example.com",
		Channel:     "email",
	})
	audit.Close()

	require.True(t, out.Result.Unresolved)
	require.NotNil(t, out.Decision)
	assert.Equal(t, trust.ModeRead, out.Decision.Mode)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.decisions, 1)
	assert.Equal(t, intent.PermissionRead, sink.decisions[0].ActionRequested)
}

func TestExecutorFailureApologizes(t *testing.T) {
	h := newHarness(t, &fakeAllowlist{}, nil)
	h.executor.err = assert.AnError
	h.executor.message = ""

	out := h.pipeline.Run(context.Background(), &Turn{
		UserID:        1,
		SessionID:     "s1",
		Text:          "turn on the kitchen light",
		SourceType:    "session",
		SourceValue:   "s1",
		Channel:       "app",
		Authenticated: true,
	})

	assert.False(t, out.Executed)
	assert.Contains(t, out.Response, "couldn't complete")

	rec := h.lastRecord(t)
	assert.False(t, rec.Success)
	assert.NotEmpty(t, rec.Error)
}

func TestStartupFailsOnMissingExecutor(t *testing.T) {
	reg := intent.DefaultRegistry()
	execs := NewExecutorRegistry()
	// Only one of several side-effecting intents is bound.
	execs.Register(intent.IntentDeviceControl, ExecutorFunc(func(context.Context, *Turn, *routing.Result) (string, error) {
		return "", nil
	}))

	_, err := New(Config{
		Registry:  reg,
		Chain:     routing.NewChain(routing.ChainConfig{Registry: reg}),
		Gate:      trust.NewGate(&fakeAllowlist{}, nil),
		Executors: execs,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without executors")
}

func TestExecutorRegistryValidates(t *testing.T) {
	reg := intent.DefaultRegistry()
	execs := fullExecutors(reg, nil)
	assert.NoError(t, execs.ValidateAgainst(reg))
}
