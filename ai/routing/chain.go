package routing

import (
	"context"
	"log/slog"
	"time"

	"github.com/kestrelhq/kestrel/ai/intent"
	"github.com/kestrelhq/kestrel/internal/profile"
)

// Chain resolves raw text into an intent using the cheapest sufficient tier.
// Escalation is monotonic: once a tier has been tried it is never retried
// within the same turn.
type Chain struct {
	registry *intent.Registry
	tier0    *RuleMatcher
	tier1    *KeywordScorer
	tier2    *ContextMatcher
	tier3    *LLMClassifier
	context  ContextProvider

	tier0Floor   float32
	tier1Floor   float32
	tier2Floor   float32
	tier2Timeout time.Duration

	recentTurnLimit int
}

// ChainConfig configures the classifier chain. Dependencies are injected;
// nil Tier3 or Context disables the corresponding capability rather than
// failing.
type ChainConfig struct {
	Registry *intent.Registry
	Tier3    *LLMClassifier
	Context  ContextProvider

	Tier0Floor   float32
	Tier1Floor   float32
	Tier2Floor   float32
	Tier2Timeout time.Duration
}

// ChainConfigFromProfile derives chain thresholds from the platform profile.
func ChainConfigFromProfile(p *profile.Profile) ChainConfig {
	return ChainConfig{
		Tier0Floor:   float32(p.Tier0Floor),
		Tier1Floor:   float32(p.Tier1Floor),
		Tier2Floor:   float32(p.Tier2Floor),
		Tier2Timeout: time.Duration(p.Tier2TimeoutMs) * time.Millisecond,
	}
}

// NewChain creates a classifier chain.
func NewChain(cfg ChainConfig) *Chain {
	registry := cfg.Registry
	if registry == nil {
		registry = intent.DefaultRegistry()
	}
	if cfg.Tier0Floor <= 0 {
		cfg.Tier0Floor = 0.9
	}
	if cfg.Tier1Floor <= 0 {
		cfg.Tier1Floor = 0.6
	}
	if cfg.Tier2Floor <= 0 {
		cfg.Tier2Floor = 0.5
	}
	if cfg.Tier2Timeout <= 0 {
		cfg.Tier2Timeout = 200 * time.Millisecond
	}

	return &Chain{
		registry:        registry,
		tier0:           NewRuleMatcher(),
		tier1:           NewKeywordScorer(),
		tier2:           NewContextMatcher(),
		tier3:           cfg.Tier3,
		context:         cfg.Context,
		tier0Floor:      cfg.Tier0Floor,
		tier1Floor:      cfg.Tier1Floor,
		tier2Floor:      cfg.Tier2Floor,
		tier2Timeout:    cfg.Tier2Timeout,
		recentTurnLimit: 10,
	}
}

// Classify resolves text into exactly one Result, never an error: when no
// tier clears its floor the Result is the explicit Unresolved value. The
// returned Snapshot is whatever context was retrieved along the way, for
// reuse by generation and grounding.
func (c *Chain) Classify(ctx context.Context, sessionID, text string) (*Result, *Snapshot) {
	start := time.Now()
	forced := needsForcedContext(text)
	var snap *Snapshot

	// Tier 0: deterministic rules.
	if m := c.tier0.Match(text); m != nil && m.Confidence >= c.tier0Floor {
		snap = c.retrieveFor(ctx, sessionID, m.Intent, forced, snap)
		res := &Result{
			Intent:        m.Intent,
			Tier:          0,
			Confidence:    m.Confidence,
			OriginalText:  text,
			Slots:         m.Slots,
			MatchedRuleID: m.RuleID,
			ContextUsed:   snap.Retrieved,
		}
		c.logResolved(res, start)
		return res, snap
	}

	// Tier 1: keyword scoring.
	if m := c.tier1.Score(text); m != nil && m.Confidence >= c.tier1Floor {
		snap = c.retrieveFor(ctx, sessionID, m.Intent, forced, snap)
		res := &Result{
			Intent:       m.Intent,
			Tier:         1,
			Confidence:   m.Confidence,
			OriginalText: text,
			ContextUsed:  snap.Retrieved,
		}
		c.logResolved(res, start)
		return res, snap
	}

	// Tier 2 is context-dependent: retrieve before matching, inside the
	// tier's latency budget.
	tierCtx, cancel := context.WithTimeout(ctx, c.tier2Timeout)
	snap = c.retrieve(tierCtx, sessionID, snap)
	if m := c.tier2.Resolve(text, snap); m != nil && m.Confidence >= c.tier2Floor {
		cancel()
		res := &Result{
			Intent:       m.Intent,
			Tier:         2,
			Confidence:   m.Confidence,
			OriginalText: text,
			Slots:        m.Slots,
			ContextUsed:  snap.Retrieved,
		}
		c.logResolved(res, start)
		return res, snap
	}
	cancel()

	// Tier 3: language model fallback. The classifier carries its own
	// timeout and degrades to nil.
	if c.tier3 != nil {
		if m := c.tier3.Classify(ctx, text, snap); m != nil {
			res := &Result{
				Intent:       m.Intent,
				Tier:         3,
				Confidence:   m.Confidence,
				OriginalText: text,
				ContextUsed:  snap.Retrieved,
			}
			c.logResolved(res, start)
			return res, snap
		}
	}

	slog.Debug("no tier cleared its floor",
		"input", truncate(text, 50),
		"latency_ms", time.Since(start).Milliseconds())
	return Unresolved(text, snap.Retrieved), snap
}

// retrieveFor fetches context when the resolved intent's tags or the forced
// cues require it. Intents tagged no-context skip retrieval entirely unless
// the text itself forces it.
func (c *Chain) retrieveFor(ctx context.Context, sessionID string, it intent.Intent, forced bool, snap *Snapshot) *Snapshot {
	need := forced
	if def, ok := c.registry.Get(it); ok && def.NeedsContext() {
		need = true
	}
	if !need {
		if snap == nil {
			snap = &Snapshot{}
		}
		return snap
	}
	return c.retrieve(ctx, sessionID, snap)
}

// retrieve fetches recent turns and known entities once per classification.
// Provider failures leave an empty snapshot; classification continues on
// whatever the cheaper tiers can do without it.
func (c *Chain) retrieve(ctx context.Context, sessionID string, snap *Snapshot) *Snapshot {
	if snap != nil && snap.Retrieved {
		return snap
	}
	if snap == nil {
		snap = &Snapshot{}
	}
	if c.context == nil || sessionID == "" {
		return snap
	}

	turns, err := c.context.RecentTurns(ctx, sessionID, c.recentTurnLimit)
	if err != nil {
		slog.Warn("context retrieval failed", "session", sessionID, "error", err)
		return snap
	}
	entities, err := c.context.KnownEntities(ctx, sessionID)
	if err != nil {
		slog.Warn("entity retrieval failed", "session", sessionID, "error", err)
	}

	snap.Turns = turns
	snap.Entities = entities
	snap.Retrieved = true
	return snap
}

func (c *Chain) logResolved(res *Result, start time.Time) {
	slog.Debug("intent resolved",
		"input", truncate(res.OriginalText, 50),
		"intent", res.Intent,
		"tier", res.Tier,
		"confidence", res.Confidence,
		"context_used", res.ContextUsed,
		"latency_ms", time.Since(start).Milliseconds())
}
