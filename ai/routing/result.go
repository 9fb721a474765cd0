// Package routing implements the tiered intent-resolution chain: escalating
// strategies from deterministic rules (tier 0) through keyword scoring
// (tier 1) and context-dependent disambiguation (tier 2) up to the language
// model fallback (tier 3). Classification stops at the first tier clearing
// its confidence floor; escalation is monotonic within a turn.
package routing

import (
	"context"
	"time"

	"github.com/kestrelhq/kestrel/ai/intent"
)

// Result is the outcome of classifying a single message. Created once per
// message and never mutated; downstream components (trust gate, temperature
// manager, metrics) only read it.
type Result struct {
	Intent        intent.Intent
	Tier          int
	Confidence    float32
	OriginalText  string
	Slots         map[string]string
	MatchedRuleID string
	// ContextUsed records whether conversation context was actually
	// retrieved while resolving this message. Confidence estimation and
	// grounding both depend on it.
	ContextUsed bool
	// Unresolved marks the explicit no-match outcome. It is a value, not an
	// error: no tier cleared its floor and the caller should ask a
	// clarifying question.
	Unresolved bool
}

// Unresolved returns the explicit no-match result for text.
func Unresolved(text string, contextUsed bool) *Result {
	return &Result{
		Intent:       intent.IntentUnknown,
		Tier:         3,
		Confidence:   0,
		OriginalText: text,
		ContextUsed:  contextUsed,
		Unresolved:   true,
	}
}

// Turn is a single prior exchange in the conversation.
type Turn struct {
	Role      string // "user" or "assistant"
	Text      string
	Intent    intent.Intent
	CreatedAt time.Time
}

// Entity is a named thing the conversation has mentioned before.
type Entity struct {
	Name     string
	Kind     string // "topic", "room", "device", ...
	LastSeen time.Time
}

// ContextProvider supplies recent conversation history and known entities.
// The store implements it; tests substitute a fake.
type ContextProvider interface {
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error)
	KnownEntities(ctx context.Context, sessionID string) ([]Entity, error)
}

// Snapshot is the context actually retrieved for one message. The pipeline
// reuses it for generation and grounding so the store is queried at most once
// per turn.
type Snapshot struct {
	Turns     []Turn
	Entities  []Entity
	Retrieved bool
}

// Text concatenates all retrieved turn texts, oldest first. Grounding
// compares drafted responses against this.
func (s *Snapshot) Text() string {
	if s == nil || len(s.Turns) == 0 {
		return ""
	}
	out := ""
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if out != "" {
			out += "\n"
		}
		out += s.Turns[i].Text
	}
	return out
}
