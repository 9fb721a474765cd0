package routing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kestrelhq/kestrel/ai/intent"
	"github.com/kestrelhq/kestrel/ai/llm"
)

// LLMClassifier implements tier 3: delegation to the language model when no
// deterministic signal exists. Its confidence is capped at a configured
// ceiling, and any error or timeout degrades to no-match rather than
// propagating.
type LLMClassifier struct {
	service  llm.Service
	registry *intent.Registry
	ceiling  float32
	timeout  time.Duration
}

// LLMMatch is a successful tier 3 classification.
type LLMMatch struct {
	Intent     intent.Intent
	Confidence float32
}

type llmVerdict struct {
	Intent     string  `json:"intent"`
	Confidence float32 `json:"confidence"`
}

// NewLLMClassifier creates a tier 3 classifier. service may be nil when the
// platform runs without an LLM; Classify then always returns nil.
func NewLLMClassifier(service llm.Service, registry *intent.Registry, ceiling float32, timeout time.Duration) *LLMClassifier {
	if ceiling <= 0 || ceiling > 1 {
		ceiling = 0.7
	}
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &LLMClassifier{
		service:  service,
		registry: registry,
		ceiling:  ceiling,
		timeout:  timeout,
	}
}

// Classify asks the model to pick one intent from the registry. Returns nil
// on any failure: tier 3 is the last resort and no-match is its expected
// degradation, never an error.
func (c *LLMClassifier) Classify(ctx context.Context, text string, snap *Snapshot) *LLMMatch {
	if c.service == nil {
		return nil
	}

	messages := []llm.Message{
		llm.SystemPrompt(c.buildPrompt(snap)),
		llm.UserMessage(text),
	}

	var verdict llmVerdict
	err := c.service.CompleteJSON(ctx, messages, llm.Options{
		Temperature:    0.1,
		TemperatureSet: true,
		MaxTokens:      128,
		Timeout:        c.timeout,
	}, &verdict)
	if err != nil {
		slog.Debug("tier 3 classification degraded", "error", err)
		return nil
	}

	resolved := intent.Intent(strings.TrimSpace(verdict.Intent))
	if _, ok := c.registry.Get(resolved); !ok || resolved == intent.IntentUnknown {
		return nil
	}

	confidence := verdict.Confidence
	if confidence <= 0 {
		return nil
	}
	if confidence > c.ceiling {
		confidence = c.ceiling
	}
	return &LLMMatch{Intent: resolved, Confidence: confidence}
}

func (c *LLMClassifier) buildPrompt(snap *Snapshot) string {
	var names []string
	for _, def := range c.registry.Definitions() {
		if def.Intent == intent.IntentUnknown {
			continue
		}
		names = append(names, string(def.Intent))
	}

	var b strings.Builder
	b.WriteString("You classify a user message into exactly one intent.\n")
	b.WriteString("Intents: ")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString("\nRespond with JSON only: {\"intent\": \"<name>\", \"confidence\": <0..1>}\n")
	b.WriteString("Use intent \"unknown\" with confidence 0 when nothing fits.\n")

	if snap != nil && len(snap.Turns) > 0 {
		b.WriteString("\nRecent conversation, newest first:\n")
		limit := len(snap.Turns)
		if limit > 5 {
			limit = 5
		}
		for _, turn := range snap.Turns[:limit] {
			fmt.Fprintf(&b, "- %s: %s\n", turn.Role, truncate(turn.Text, 120))
		}
	}
	return b.String()
}
