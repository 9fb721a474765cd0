// Package grounding checks drafted responses against the context actually
// retrieved this turn, to catch fabricated claims before (fast path) or
// after (thorough path) they reach the user. Grounding is a safety net, not
// a gate: every internal failure fails open and never blocks delivery.
package grounding

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelhq/kestrel/ai/llm"
	"github.com/kestrelhq/kestrel/internal/profile"
)

// Verdict is the outcome of one grounding check. Ephemeral; only failures
// are persisted, as violations for later review.
type Verdict struct {
	Grounded    bool
	Confidence  float32
	Explanation string
	// Flags name the signals the check tripped on, e.g. "citation_language"
	// or "low_overlap".
	Flags []string
}

// Violation is a persisted grounding failure.
type Violation struct {
	ID          string
	UserID      int32
	SessionID   string
	Response    string
	Context     string
	Confidence  float32
	Explanation string
	Timestamp   time.Time
}

// ViolationSink records grounding failures for later review. The store
// implements it.
type ViolationSink interface {
	AppendGroundingViolation(ctx context.Context, v *Violation) error
}

// citationPhrases are citation-style assertions. Unmatched by context they
// are the classic shape of a fabricated claim.
var citationPhrases = []string{
	"studies show",
	"research indicates",
	"according to research",
	"experts say",
	"it is well known",
	"scientists have found",
}

// uncertaintyAdmissions mark responses that already concede their limits;
// there is no claim left to ground.
var uncertaintyAdmissions = []string{
	"i'm not sure",
	"i am not sure",
	"not entirely sure",
	"i don't know",
	"i do not know",
	"i don't have enough information",
	"i can't recall",
	"i couldn't find",
}

const shortResponseWords = 8

// Validator checks drafted responses against retrieved context.
type Validator struct {
	method    string
	threshold float32
	service   llm.Service
	sink      ViolationSink

	// wg tracks thorough-path checks so Close can wait for them.
	wg sync.WaitGroup
}

// Config configures the validator.
type Config struct {
	// Method is profile.GroundingFast or profile.GroundingThorough.
	Method string
	// Threshold is the fast-path similarity floor (default 0.7).
	Threshold float32
	// Service is required for the thorough path; nil degrades it to fast.
	Service llm.Service
	// Sink persists violations; nil disables persistence.
	Sink ViolationSink
}

// NewValidator creates a grounding validator.
func NewValidator(cfg Config) *Validator {
	if cfg.Method == "" {
		cfg.Method = profile.GroundingFast
	}
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = 0.7
	}
	method := cfg.Method
	if method == profile.GroundingThorough && cfg.Service == nil {
		slog.Warn("thorough grounding requested without an LLM service, using fast path")
		method = profile.GroundingFast
	}
	return &Validator{
		method:    method,
		threshold: cfg.Threshold,
		service:   cfg.Service,
		sink:      cfg.Sink,
	}
}

// Check validates a drafted response against the turn's retrieved context.
// Fast path: synchronous similarity check. Thorough path: returns grounded
// immediately and judges asynchronously after delivery, recording violations
// rather than editing an already-sent response.
func (v *Validator) Check(ctx context.Context, response, contextText string, userID int32, sessionID string) Verdict {
	if verdict, done := v.safeDefaults(response); done {
		return verdict
	}

	if v.method == profile.GroundingThorough {
		v.checkThoroughAsync(response, contextText, userID, sessionID)
		return Verdict{Grounded: true, Confidence: 0.5, Explanation: "deferred to async review"}
	}

	verdict := v.checkFast(response, contextText)
	if !verdict.Grounded {
		v.recordViolation(ctx, response, contextText, verdict, userID, sessionID)
	}
	return verdict
}

// Close waits for in-flight thorough checks.
func (v *Validator) Close() {
	v.wg.Wait()
}

// safeDefaults short-circuits responses that need no checking.
func (v *Validator) safeDefaults(response string) (Verdict, bool) {
	lower := strings.ToLower(response)

	for _, phrase := range uncertaintyAdmissions {
		if strings.Contains(lower, phrase) {
			return Verdict{Grounded: true, Confidence: 1, Explanation: "response admits uncertainty"}, true
		}
	}
	if len(strings.Fields(response)) < shortResponseWords {
		return Verdict{Grounded: true, Confidence: 1, Explanation: "response too short to carry claims"}, true
	}
	return Verdict{}, false
}

// checkFast computes a token-overlap similarity between the response and the
// concatenated context.
func (v *Validator) checkFast(response, contextText string) Verdict {
	lower := strings.ToLower(response)
	contextTokens := tokenSet(contextText)

	// Citation-style claims must be backed by the context that supposedly
	// contains them.
	for _, phrase := range citationPhrases {
		if strings.Contains(lower, phrase) && !strings.Contains(strings.ToLower(contextText), phrase) {
			return Verdict{
				Grounded:    false,
				Confidence:  0.2,
				Explanation: "citation-style claim with no contextual support: " + phrase,
				Flags:       []string{"citation_language"},
			}
		}
	}

	if len(contextTokens) == 0 {
		// Nothing was retrieved; nothing to contradict.
		return Verdict{Grounded: true, Confidence: 0.5, Explanation: "no context retrieved"}
	}

	responseTokens := contentTokens(response)
	if len(responseTokens) == 0 {
		return Verdict{Grounded: true, Confidence: 1, Explanation: "no content tokens"}
	}

	matched := 0
	for _, tok := range responseTokens {
		if contextTokens[tok] {
			matched++
		}
	}
	similarity := float32(matched) / float32(len(responseTokens))

	if similarity < v.threshold {
		return Verdict{
			Grounded:    false,
			Confidence:  similarity,
			Explanation: "response overlaps retrieved context below threshold",
			Flags:       []string{"low_overlap"},
		}
	}
	return Verdict{Grounded: true, Confidence: similarity, Explanation: "supported by retrieved context"}
}

// checkThoroughAsync runs an LLM judgment after the response has been
// delivered. Violations are recorded for review; errors fail open silently.
func (v *Validator) checkThoroughAsync(response, contextText string, userID int32, sessionID string) {
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		verdict, err := v.judge(ctx, response, contextText)
		if err != nil {
			slog.Debug("thorough grounding check failed open", "error", err)
			return
		}
		if !verdict.Grounded {
			v.recordViolation(ctx, response, contextText, verdict, userID, sessionID)
		}
	}()
}

type judgeVerdict struct {
	Supported  bool    `json:"supported"`
	Confidence float32 `json:"confidence"`
	Reason     string  `json:"reason"`
}

func (v *Validator) judge(ctx context.Context, response, contextText string) (Verdict, error) {
	messages := []llm.Message{
		llm.SystemPrompt("You verify whether a response's factual claims are supported by the " +
			"given context. Respond with JSON only: " +
			`{"supported": true|false, "confidence": <0..1>, "reason": "<short>"}`),
		llm.UserMessage("Context:\n" + contextText + "\n\nResponse:\n" + response),
	}

	var jv judgeVerdict
	if err := v.service.CompleteJSON(ctx, messages, llm.Options{
		Temperature:    0,
		TemperatureSet: true,
		MaxTokens:      256,
	}, &jv); err != nil {
		return Verdict{}, err
	}
	verdict := Verdict{Grounded: jv.Supported, Confidence: jv.Confidence, Explanation: jv.Reason}
	if !jv.Supported {
		verdict.Flags = []string{"judged_unsupported"}
	}
	return verdict, nil
}

func (v *Validator) recordViolation(ctx context.Context, response, contextText string, verdict Verdict, userID int32, sessionID string) {
	if v.sink == nil {
		return
	}
	violation := &Violation{
		ID:          uuid.NewString(),
		UserID:      userID,
		SessionID:   sessionID,
		Response:    response,
		Context:     contextText,
		Confidence:  verdict.Confidence,
		Explanation: verdict.Explanation,
		Timestamp:   time.Now(),
	}
	if err := v.sink.AppendGroundingViolation(ctx, violation); err != nil {
		slog.Warn("failed to persist grounding violation", "error", err)
	}
}

// stopwords excluded from similarity scoring; they match everything and
// mean nothing.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"to": true, "of": true, "in": true, "on": true, "at": true, "for": true,
	"with": true, "it": true, "its": true, "this": true, "that": true,
	"you": true, "your": true, "i": true, "my": true, "me": true, "we": true,
	"have": true, "has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "can": true, "could": true, "about": true,
	"there": true, "their": true, "they": true, "them": true, "so": true,
	"as": true, "by": true, "from": true, "not": true, "no": true, "yes": true,
}

func contentTokens(s string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,!?;:'\"()")
		if tok == "" || stopwords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range contentTokens(s) {
		set[tok] = true
	}
	return set
}
