// Package pipeline wires classification, trust gating, execution, response
// generation and post-checks into the per-turn request path.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/kestrelhq/kestrel/ai/generation"
	"github.com/kestrelhq/kestrel/ai/grounding"
	"github.com/kestrelhq/kestrel/ai/intent"
	"github.com/kestrelhq/kestrel/ai/llm"
	"github.com/kestrelhq/kestrel/ai/metrics"
	"github.com/kestrelhq/kestrel/ai/routing"
	"github.com/kestrelhq/kestrel/ai/trust"
)

// Turn is one inbound message with its provenance.
type Turn struct {
	UserID      int32
	SessionID   string
	Text        string
	SourceType  string
	SourceValue string
	Channel     string
	// Authenticated is set by the transport after credential verification.
	Authenticated bool
}

// Outcome is the fully processed result of one turn.
type Outcome struct {
	Response   string
	Result     *routing.Result
	Decision   *trust.Decision
	Executed   bool
	Confidence float32
	Qualifier  generation.QualifierLevel
	Grounded   bool
	LatencyMs  int64
}

const (
	clarificationText = "I'm not sure what you're asking for. Could you rephrase that?"
	executionApology  = "Sorry, I couldn't complete that right now. Please try again in a moment."
	generationApology = "Sorry, I'm having trouble answering right now. Please try again in a moment."
	suppressedNotice  = "I can't make changes from this channel. I've noted the request, " +
		"but it needs to come through an authorized channel to take effect."
)

const systemPersona = "You are Kestrel, a concise personal assistant. Answer using the " +
	"conversation context when it is relevant. If the context does not contain the answer, " +
	"say so instead of guessing."

// Config assembles a pipeline from its stages.
type Config struct {
	Registry  *intent.Registry
	Chain     *routing.Chain
	Gate      *trust.Gate
	Executors *ExecutorRegistry

	// Service generates free-form responses; nil degrades to canned text.
	Service      llm.Service
	Temperatures *generation.Temperatures
	Formatter    *generation.Formatter
	Validator    *grounding.Validator
	Collector    *metrics.Collector

	// GenTimeout bounds response generation (default 10s).
	GenTimeout time.Duration
}

// Pipeline processes turns end to end.
type Pipeline struct {
	registry  *intent.Registry
	chain     *routing.Chain
	gate      *trust.Gate
	executors *ExecutorRegistry

	service      llm.Service
	temperatures *generation.Temperatures
	formatter    *generation.Formatter
	validator    *grounding.Validator
	collector    *metrics.Collector

	genTimeout time.Duration
}

// New builds a pipeline. It fails when a side-effecting intent has no
// executor, so misconfiguration surfaces at startup.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Registry == nil || cfg.Chain == nil || cfg.Gate == nil || cfg.Executors == nil {
		return nil, errors.New("pipeline requires a registry, chain, gate and executor registry")
	}
	if err := cfg.Executors.ValidateAgainst(cfg.Registry); err != nil {
		return nil, errors.Wrap(err, "executor registry incomplete")
	}
	if cfg.Temperatures == nil {
		cfg.Temperatures = generation.NewTemperatures(cfg.Registry, nil)
	}
	if cfg.Formatter == nil {
		cfg.Formatter = generation.NewFormatter(cfg.Registry)
	}
	if cfg.GenTimeout <= 0 {
		cfg.GenTimeout = 10 * time.Second
	}
	return &Pipeline{
		registry:     cfg.Registry,
		chain:        cfg.Chain,
		gate:         cfg.Gate,
		executors:    cfg.Executors,
		service:      cfg.Service,
		temperatures: cfg.Temperatures,
		formatter:    cfg.Formatter,
		validator:    cfg.Validator,
		collector:    cfg.Collector,
		genTimeout:   cfg.GenTimeout,
	}, nil
}

// Run processes one turn: classify, gate, execute or suppress, generate,
// ground-check, qualify, record.
func (p *Pipeline) Run(ctx context.Context, turn *Turn) *Outcome {
	start := time.Now()

	res, snap := p.chain.Classify(ctx, turn.SessionID, turn.Text)

	// The gate speaks in permission names, not intent names. An unresolved
	// turn only ever produces a clarification question, so it requests read.
	requested := intent.PermissionRead
	if !res.Unresolved {
		requested = p.registry.RequiredPermission(res.Intent)
	}
	decision := p.gate.Evaluate(ctx, &trust.Request{
		UserID:          turn.UserID,
		SourceType:      turn.SourceType,
		SourceValue:     turn.SourceValue,
		Channel:         turn.Channel,
		Authenticated:   turn.Authenticated,
		Content:         turn.Text,
		RequestedAction: requested,
	})
	if p.collector != nil {
		p.collector.RecordTrustDecision(string(decision.Mode), turn.Channel)
	}

	if res.Unresolved {
		out := &Outcome{
			Response:  clarificationText,
			Result:    res,
			Decision:  decision,
			Grounded:  true,
			LatencyMs: time.Since(start).Milliseconds(),
		}
		out.Qualifier = generation.QualifierAdmission
		p.record(turn, out, true, "")
		return out
	}

	out := &Outcome{Result: res, Decision: decision, Grounded: true}
	def, _ := p.registry.Get(res.Intent)

	var draft string
	var runErr error
	switch {
	case def.SideEffect && p.mayExecute(decision, res.Intent):
		draft, runErr = p.execute(ctx, turn, res)
		out.Executed = runErr == nil
		if runErr != nil {
			slog.Warn("executor failed",
				"intent", res.Intent, "user_id", turn.UserID, "error", runErr)
			draft = executionApology
		}
	case def.SideEffect:
		// Untrusted provenance: describe, never do.
		draft = suppressedNotice
	default:
		draft, runErr = p.generate(ctx, turn, res, snap, decision)
		if runErr != nil {
			slog.Warn("generation failed",
				"intent", res.Intent, "user_id", turn.UserID, "error", runErr)
			draft = generationApology
		}
	}

	if p.validator != nil && runErr == nil && !out.Executed {
		verdict := p.validator.Check(ctx, draft, snap.Text(), turn.UserID, turn.SessionID)
		out.Grounded = verdict.Grounded
	}

	out.Confidence = p.formatter.Estimate(res)
	out.Qualifier = generation.Level(out.Confidence)
	out.Response = p.formatter.Apply(draft, out.Confidence)
	out.LatencyMs = time.Since(start).Milliseconds()

	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}
	p.record(turn, out, runErr == nil, errText)
	return out
}

// mayExecute reports whether the trust decision covers the intent's
// required permission.
func (p *Pipeline) mayExecute(decision *trust.Decision, it intent.Intent) bool {
	if decision == nil || decision.Mode != trust.ModeAct {
		return false
	}
	return decision.HasPermission(p.registry.RequiredPermission(it))
}

func (p *Pipeline) execute(ctx context.Context, turn *Turn, res *routing.Result) (string, error) {
	exec, ok := p.executors.Get(res.Intent)
	if !ok {
		// New validates at startup; reaching this means the registry
		// changed underneath us.
		return "", errors.Errorf("no executor for intent %q", res.Intent)
	}
	return exec.Execute(ctx, turn, res)
}

// generate drafts a free-form response. In read-only mode the model is
// instructed to describe rather than act, which also defuses instructions
// embedded in untrusted message content.
func (p *Pipeline) generate(ctx context.Context, turn *Turn, res *routing.Result, snap *routing.Snapshot, decision *trust.Decision) (string, error) {
	if p.service == nil {
		return "", errors.New("no generation service configured")
	}

	system := systemPersona
	if decision != nil && decision.Mode == trust.ModeRead {
		system += "\n\n" + trust.ReadOnlyInstruction
	}

	messages := []llm.Message{llm.SystemPrompt(system)}
	if ctxText := snap.Text(); ctxText != "" {
		messages = append(messages, llm.SystemPrompt("Conversation context:\n"+ctxText))
	}
	messages = append(messages, llm.UserMessage(turn.Text))

	gctx, cancel := context.WithTimeout(ctx, p.genTimeout)
	defer cancel()

	response, _, err := p.service.CompleteWithRetry(gctx, messages, llm.Options{
		Temperature:    p.temperatures.For(res.Intent, res.Tier),
		TemperatureSet: true,
		MaxTokens:      512,
		Timeout:        p.genTimeout,
	})
	if err != nil {
		return "", errors.Wrap(err, "generate response")
	}
	return response, nil
}

func (p *Pipeline) record(turn *Turn, out *Outcome, success bool, errText string) {
	if p.collector == nil {
		return
	}
	rec := &metrics.Record{
		UserID:     turn.UserID,
		SessionID:  turn.SessionID,
		Input:      turn.Text,
		Tier:       3,
		Confidence: out.Confidence,
		LatencyMs:  out.LatencyMs,
		Executed:   out.Executed,
		Success:    success,
		Grounded:   out.Grounded,
		Error:      errText,
		Timestamp:  time.Now(),
	}
	if out.Result != nil {
		rec.Tier = out.Result.Tier
		rec.Intent = out.Result.Intent
	}
	if out.Decision != nil {
		rec.TrustMode = string(out.Decision.Mode)
	}
	p.collector.Record(rec)
}
