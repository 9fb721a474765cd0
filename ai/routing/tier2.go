package routing

import (
	"strings"

	"github.com/kestrelhq/kestrel/ai/intent"
)

// ContextMatcher implements tier 2: disambiguation against recent
// conversation history and known entities. It resolves references like "it"
// or "that room" that have no standalone meaning, and recognizes recall
// requests whose answer lives in past turns.
type ContextMatcher struct{}

// ContextMatch is a successful tier 2 match.
type ContextMatch struct {
	Intent     intent.Intent
	Confidence float32
	Slots      map[string]string
}

// recallPhrases indicate the user is asking the assistant to reproduce
// something said before.
var recallPhrases = []string{
	"did i tell you",
	"did i say",
	"what did i",
	"you said",
	"we talked about",
	"remind me what",
	"remember",
}

// followUpCues indicate an elliptical follow-up that inherits its intent from
// the previous user turn.
var followUpCues = []string{
	"it", "that", "them", "those", "the same", "again",
	"what about", "how about", "and the",
}

// NewContextMatcher creates a context matcher.
func NewContextMatcher() *ContextMatcher {
	return &ContextMatcher{}
}

// Resolve attempts a context-dependent classification. snap may hold no
// retrieved turns, in which case only recall detection applies.
func (m *ContextMatcher) Resolve(input string, snap *Snapshot) *ContextMatch {
	normalized := normalizeInput(input)

	if match := m.resolveRecall(normalized, snap); match != nil {
		return match
	}
	return m.resolveFollowUp(normalized, snap)
}

// resolveRecall detects memory recall requests. Confidence rises when the
// mentioned topic is a known entity: the conversation really has covered it.
func (m *ContextMatcher) resolveRecall(normalized string, snap *Snapshot) *ContextMatch {
	if !containsAny(normalized, recallPhrases) {
		return nil
	}

	match := &ContextMatch{
		Intent:     intent.IntentMemoryRecall,
		Confidence: 0.55,
		Slots:      map[string]string{},
	}
	if snap != nil {
		for _, e := range snap.Entities {
			if strings.Contains(normalized, strings.ToLower(e.Name)) {
				match.Confidence = 0.7
				match.Slots["topic"] = e.Name
				break
			}
		}
	}
	return match
}

// resolveFollowUp inherits the intent of the most recent classified user turn
// when the new message is an elliptical reference.
func (m *ContextMatcher) resolveFollowUp(normalized string, snap *Snapshot) *ContextMatch {
	if snap == nil || len(snap.Turns) == 0 {
		return nil
	}
	if !m.hasFollowUpCue(normalized) {
		return nil
	}

	for _, turn := range snap.Turns {
		if turn.Role != "user" || turn.Intent == "" || turn.Intent == intent.IntentUnknown {
			continue
		}
		match := &ContextMatch{
			Intent:     turn.Intent,
			Confidence: 0.6,
			Slots:      map[string]string{},
		}
		// A known room or device in the follow-up pins the reference.
		for _, e := range snap.Entities {
			if (e.Kind == "room" || e.Kind == "device") &&
				strings.Contains(normalized, strings.ToLower(e.Name)) {
				match.Confidence = 0.7
				match.Slots[e.Kind] = e.Name
				break
			}
		}
		return match
	}
	return nil
}

func (m *ContextMatcher) hasFollowUpCue(normalized string) bool {
	// Short elliptical messages are follow-ups almost by definition.
	if wordCount(normalized) <= 3 && containsAny(normalized, followUpCues) {
		return true
	}
	for _, cue := range []string{"what about", "how about", "and the", "the same", "again"} {
		if strings.Contains(normalized, cue) {
			return true
		}
	}
	// Bare pronoun references: "turn it off", "open that".
	for _, tok := range tokenize(normalized) {
		if tok == "it" || tok == "that" || tok == "them" || tok == "those" {
			return true
		}
	}
	return false
}
