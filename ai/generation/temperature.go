// Package generation maps classification outcomes to generation behavior:
// sampling temperature for the model call, and confidence wording for the
// final response.
package generation

import (
	"github.com/kestrelhq/kestrel/ai/intent"
)

// Per-tier default temperatures, used when no semantic tag constrains the
// intent further.
var tierDefaults = [4]float32{0.0, 0.3, 0.5, 0.7}

// Temperatures selects a sampling temperature for a resolved intent.
// The semantic tag takes precedence over the raw tier when they disagree.
type Temperatures struct {
	registry  *intent.Registry
	overrides map[intent.Intent]float32
}

// NewTemperatures creates a temperature manager. overrides pins specific
// intents to a fixed temperature regardless of tags (platform configuration).
func NewTemperatures(registry *intent.Registry, overrides map[intent.Intent]float32) *Temperatures {
	if registry == nil {
		registry = intent.DefaultRegistry()
	}
	return &Temperatures{registry: registry, overrides: overrides}
}

// For returns the sampling temperature for an intent resolved at the given
// tier. Deterministic resolutions sample at zero; tags adjust from there.
func (t *Temperatures) For(it intent.Intent, tier int) float32 {
	if temp, ok := t.overrides[it]; ok {
		return temp
	}

	if tier < 0 {
		tier = 0
	}
	if tier > 3 {
		tier = 3
	}
	temp := tierDefaults[tier]

	def, ok := t.registry.Get(it)
	if !ok {
		return temp
	}

	// Tag constraints, most permissive last so a conversational tag wins
	// over the tier default it disagrees with.
	if def.HasTag(intent.TagFactual) && temp > 0.3 {
		temp = 0.3
	}
	if def.HasTag(intent.TagToolInvocation) {
		if temp > 0.5 {
			temp = 0.5
		}
		if tier == 0 {
			temp = 0.0
		}
	}
	if def.HasTag(intent.TagConversational) && temp < 0.6 {
		temp = 0.6
	}

	if tier == 0 && !def.HasTag(intent.TagConversational) {
		// A deterministic rule match leaves nothing to sample.
		temp = 0.0
	}
	return temp
}
