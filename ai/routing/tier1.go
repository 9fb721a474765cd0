package routing

import (
	"strings"

	"github.com/kestrelhq/kestrel/ai/intent"
)

// keywordSet is a curated, weighted vocabulary for one intent. The score is
// the matched weight normalized by reference: a full-strength signal for the
// set, so different set sizes remain comparable.
type keywordSet struct {
	intent    intent.Intent
	keywords  map[string]int
	reference int
}

// KeywordScorer implements tier 1: weighted keyword scoring. It catches
// paraphrases the tier 0 grammar misses ("could you kill the lights") at a
// target latency under 15ms.
type KeywordScorer struct {
	sets []keywordSet
}

// KeywordMatch is a successful tier 1 match.
type KeywordMatch struct {
	Intent     intent.Intent
	Confidence float32
}

// NewKeywordScorer creates a scorer with the built-in vocabularies.
func NewKeywordScorer() *KeywordScorer {
	return &KeywordScorer{sets: builtinKeywordSets()}
}

func builtinKeywordSets() []keywordSet {
	return []keywordSet{
		{
			intent: intent.IntentDeviceControl,
			keywords: map[string]int{
				"turn": 2, "switch": 2, "kill": 1, "dim": 2, "brighten": 2,
				"light": 3, "lights": 3, "lamp": 3, "fan": 3, "heater": 3,
				"thermostat": 3, "tv": 2, "speaker": 2, "blinds": 3,
			},
			reference: 5,
		},
		{
			intent: intent.IntentWeatherQuery,
			keywords: map[string]int{
				"weather": 4, "forecast": 4, "rain": 3, "raining": 3,
				"snow": 3, "sunny": 2, "temperature": 2, "degrees": 2,
				"umbrella": 3,
			},
			reference: 5,
		},
		{
			intent: intent.IntentCalendarQuery,
			keywords: map[string]int{
				"calendar": 4, "agenda": 4, "schedule": 2, "appointments": 3,
				"meetings": 2, "busy": 2, "free": 1, "planned": 2,
			},
			reference: 5,
		},
		{
			intent: intent.IntentCalendarCreate,
			keywords: map[string]int{
				"schedule": 3, "remind": 3, "reminder": 3, "appointment": 3,
				"meeting": 2, "book": 2, "invite": 2, "tomorrow": 1, "at": 1,
			},
			reference: 5,
		},
		{
			intent: intent.IntentListAdd,
			keywords: map[string]int{
				"add": 2, "list": 3, "shopping": 3, "groceries": 3,
				"grocery": 3, "buy": 2, "need": 1,
			},
			reference: 5,
		},
		{
			intent: intent.IntentJournalCreate,
			keywords: map[string]int{
				"journal": 4, "diary": 4, "note": 3, "jot": 3, "write": 2,
			},
			reference: 5,
		},
		{
			intent: intent.IntentSmalltalk,
			keywords: map[string]int{
				"hello": 4, "hi": 3, "hey": 3, "thanks": 4, "thank": 4,
				"goodbye": 4, "bye": 4, "morning": 2, "night": 2,
			},
			reference: 5,
		},
	}
}

// Score returns the best-scoring intent for the input, or nil when nothing
// reaches a usable score. The caller applies the acceptance floor.
func (s *KeywordScorer) Score(input string) *KeywordMatch {
	tokens := tokenize(normalizeInput(input))
	if len(tokens) == 0 {
		return nil
	}

	var best *KeywordMatch
	for i := range s.sets {
		set := &s.sets[i]
		score := 0
		for _, tok := range tokens {
			if w, ok := set.keywords[tok]; ok {
				score += w
			}
		}
		if score == 0 {
			continue
		}
		confidence := float32(score) / float32(set.reference)
		if confidence > 0.85 {
			// Keyword evidence alone never rivals an exact rule match.
			confidence = 0.85
		}
		if best == nil || confidence > best.Confidence {
			best = &KeywordMatch{Intent: set.intent, Confidence: confidence}
		}
	}
	return best
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '?' || r == '!' || r == '\'' || r == '\t'
	})
	return fields
}
