package generation

import (
	"strings"
	"unicode"

	"github.com/kestrelhq/kestrel/ai/intent"
	"github.com/kestrelhq/kestrel/ai/routing"
)

// QualifierLevel orders hedge strength: higher means more hedged. Hedge
// strength is non-increasing in confidence.
type QualifierLevel int

const (
	QualifierNone QualifierLevel = iota
	QualifierSoft
	QualifierHedge
	QualifierAdmission
)

// Wording thresholds. The formatter never asserts certainty the system does
// not have.
const (
	noQualifierFloor   = 0.85
	softQualifierFloor = 0.70
	hedgeFloor         = 0.50
)

const (
	softQualifierPrefix = "Based on what I know, "
	hedgePrefix         = "I'm not entirely sure, but "
	admissionText       = "I don't have enough information to answer that reliably. " +
		"Could you give me a bit more detail?"
)

// Formatter adjusts a drafted response's wording to match estimated
// confidence.
type Formatter struct {
	registry *intent.Registry
}

// NewFormatter creates a confidence formatter.
func NewFormatter(registry *intent.Registry) *Formatter {
	if registry == nil {
		registry = intent.DefaultRegistry()
	}
	return &Formatter{registry: registry}
}

// Estimate combines the classifier's own confidence with the tier it
// resolved at and whether context was actually retrieved.
func (f *Formatter) Estimate(res *routing.Result) float32 {
	if res == nil || res.Unresolved {
		return 0
	}

	confidence := res.Confidence

	// Higher tiers resolved on weaker signal than their raw score suggests.
	tierPenalty := [4]float32{0, 0.03, 0.08, 0.12}
	tier := res.Tier
	if tier < 0 {
		tier = 0
	}
	if tier > 3 {
		tier = 3
	}
	confidence -= tierPenalty[tier]

	// Answering a data-fetch intent without its data is guesswork.
	if def, ok := f.registry.Get(res.Intent); ok {
		if def.NeedsContext() && !res.ContextUsed {
			confidence -= 0.2
		}
	}

	if confidence < 0 {
		return 0
	}
	return confidence
}

// Level maps a confidence estimate to a qualifier level.
func Level(confidence float32) QualifierLevel {
	switch {
	case confidence >= noQualifierFloor:
		return QualifierNone
	case confidence >= softQualifierFloor:
		return QualifierSoft
	case confidence >= hedgeFloor:
		return QualifierHedge
	default:
		return QualifierAdmission
	}
}

// Apply rewords a drafted response for the given confidence estimate. Below
// the hedge floor the assertion is replaced outright with an admission of
// limitation.
func (f *Formatter) Apply(draft string, confidence float32) string {
	switch Level(confidence) {
	case QualifierNone:
		return draft
	case QualifierSoft:
		return softQualifierPrefix + lowerFirst(draft)
	case QualifierHedge:
		return hedgePrefix + lowerFirst(draft)
	default:
		return admissionText
	}
}

// lowerFirst lowercases the first letter so a prefixed sentence reads
// naturally. Acronyms and non-letters are left alone.
func lowerFirst(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return trimmed
	}
	runes := []rune(trimmed)
	if !unicode.IsUpper(runes[0]) {
		return trimmed
	}
	if len(runes) > 1 && unicode.IsUpper(runes[1]) {
		// Starts with an acronym ("TV is off"), keep it.
		return trimmed
	}
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}
