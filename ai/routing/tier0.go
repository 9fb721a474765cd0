package routing

import (
	"regexp"

	"github.com/kestrelhq/kestrel/ai/intent"
)

// rule is a single deterministic pattern. Named capture groups become slots
// on the classification result.
type rule struct {
	id         string
	intent     intent.Intent
	pattern    *regexp.Regexp
	confidence float32
}

// RuleMatcher implements tier 0: exact command matching against a compiled
// rule table. Target latency is under 5ms, so every pattern is compiled once
// at construction.
type RuleMatcher struct {
	rules []rule
}

// RuleMatch is a successful tier 0 match.
type RuleMatch struct {
	Intent     intent.Intent
	RuleID     string
	Confidence float32
	Slots      map[string]string
}

const deviceNames = `light|lights|lamp|fan|heater|tv|television|thermostat|speaker|plug|blinds`

// NewRuleMatcher creates a matcher with the built-in command grammar.
func NewRuleMatcher() *RuleMatcher {
	return &RuleMatcher{rules: builtinRules()}
}

func builtinRules() []rule {
	return []rule{
		{
			id:     "device.toggle",
			intent: intent.IntentDeviceControl,
			pattern: regexp.MustCompile(
				`^(?:please )?(?:turn|switch) (?P<state>on|off) (?:the )?(?:(?P<room>[a-z ]+?) )?(?P<device>` + deviceNames + `)$`),
			confidence: 0.95,
		},
		{
			id:     "device.toggle.suffix",
			intent: intent.IntentDeviceControl,
			pattern: regexp.MustCompile(
				`^(?:please )?(?:turn|switch) (?:the )?(?:(?P<room>[a-z ]+?) )?(?P<device>` + deviceNames + `) (?P<state>on|off)$`),
			confidence: 0.95,
		},
		{
			id:     "device.dim",
			intent: intent.IntentDeviceControl,
			pattern: regexp.MustCompile(
				`^(?:please )?dim (?:the )?(?:(?P<room>[a-z ]+?) )?(?P<device>` + deviceNames + `)$`),
			confidence: 0.92,
		},
		{
			id:         "time.now",
			intent:     intent.IntentTimeQuery,
			pattern:    regexp.MustCompile(`^(?:what time is it|what's the time|what is the time|tell me the time)$`),
			confidence: 0.95,
		},
		{
			id:     "weather.now",
			intent: intent.IntentWeatherQuery,
			pattern: regexp.MustCompile(
				`^(?:what's|what is|how's|how is) the weather(?: like)?(?: (?P<when>today|tomorrow|this week|this weekend))?$`),
			confidence: 0.93,
		},
		{
			id:     "calendar.query",
			intent: intent.IntentCalendarQuery,
			pattern: regexp.MustCompile(
				`^(?:what's|what is) (?:on )?my (?:calendar|schedule|agenda)(?: (?:for |like )?(?P<when>today|tomorrow|this week|monday|tuesday|wednesday|thursday|friday|saturday|sunday))?$`),
			confidence: 0.93,
		},
		{
			id:     "calendar.create",
			intent: intent.IntentCalendarCreate,
			pattern: regexp.MustCompile(
				`^(?:add|schedule|create|book) (?:an? )?(?:event|meeting|appointment)(?: (?P<details>.+))?$`),
			confidence: 0.9,
		},
		{
			id:     "list.add",
			intent: intent.IntentListAdd,
			pattern: regexp.MustCompile(
				`^(?:add|put) (?P<item>.+?) (?:on|to) (?:my |the )?(?P<list>[a-z ]+?) list$`),
			confidence: 0.9,
		},
		{
			id:     "list.query",
			intent: intent.IntentListQuery,
			pattern: regexp.MustCompile(
				`^what(?:'s| is) on (?:my |the )?(?P<list>[a-z ]+?) list$`),
			confidence: 0.92,
		},
		{
			id:     "journal.create",
			intent: intent.IntentJournalCreate,
			pattern: regexp.MustCompile(
				`^(?:journal|note down|write down) (?:that )?(?P<entry>.+)$`),
			confidence: 0.9,
		},
	}
}

// Match runs the rule table over a normalized input. It succeeds only when
// every matching rule agrees on a single intent; conflicting matches fall
// through to the next tier rather than guessing.
func (m *RuleMatcher) Match(input string) *RuleMatch {
	normalized := normalizeInput(input)

	var best *RuleMatch
	for i := range m.rules {
		r := &m.rules[i]
		groups := r.pattern.FindStringSubmatch(normalized)
		if groups == nil {
			continue
		}
		if best != nil && best.Intent != r.intent {
			// Two rules, two intents: ambiguous, not a tier 0 case.
			return nil
		}
		if best != nil && best.Confidence >= r.confidence {
			continue
		}
		best = &RuleMatch{
			Intent:     r.intent,
			RuleID:     r.id,
			Confidence: r.confidence,
			Slots:      extractSlots(r.pattern, groups),
		}
	}
	return best
}

func extractSlots(pattern *regexp.Regexp, groups []string) map[string]string {
	slots := make(map[string]string)
	for i, name := range pattern.SubexpNames() {
		if name == "" || i >= len(groups) || groups[i] == "" {
			continue
		}
		slots[name] = groups[i]
	}
	return slots
}
