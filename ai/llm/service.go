// Package llm provides the language model collaborator: an OpenAI-compatible
// client used for tier 3 classification, response generation, and the
// thorough grounding path.
package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/kestrelhq/kestrel/internal/profile"
)

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// SystemPrompt creates a system message.
func SystemPrompt(content string) Message {
	return Message{Role: openai.ChatMessageRoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: openai.ChatMessageRoleUser, Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: openai.ChatMessageRoleAssistant, Content: content}
}

// CallStats represents token usage and timing for a single call.
type CallStats struct {
	PromptTokens     int   `json:"prompt_tokens"`
	CompletionTokens int   `json:"completion_tokens"`
	TotalTokens      int   `json:"total_tokens"`
	TotalDurationMs  int64 `json:"total_duration_ms"`
}

// StatsObserver receives per-call usage, typically the Prometheus exporter.
type StatsObserver interface {
	RecordLLMLatency(model, provider string, latency time.Duration)
	RecordLLMTokens(model, tokenType string, count int)
}

// Options override per-call sampling parameters. Zero values fall back to the
// service defaults.
type Options struct {
	Temperature float32
	// TemperatureSet distinguishes an explicit 0.0 from "use default".
	// Tier 0 and tool-invocation intents pin the temperature to exactly 0.
	TemperatureSet bool
	MaxTokens      int
	Timeout        time.Duration
}

// Service is the language model service interface.
type Service interface {
	// Complete performs a single chat completion.
	Complete(ctx context.Context, messages []Message, opts Options) (string, *CallStats, error)

	// CompleteWithRetry behaves like Complete but retries once with a halved
	// timeout when the transport fails, then surfaces the error.
	CompleteWithRetry(ctx context.Context, messages []Message, opts Options) (string, *CallStats, error)

	// CompleteJSON performs a completion and decodes the response body as
	// strict JSON into v. Code fences around the payload are tolerated.
	CompleteJSON(ctx context.Context, messages []Message, opts Options, v any) error
}

// Config represents LLM service configuration.
type Config struct {
	Provider    string // deepseek, openai, siliconflow, ollama
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int     // default: 2048
	Temperature float32 // default: 0.7
	Timeout     int     // request timeout in seconds (default: 120)
	// RateLimit caps outbound calls per second. Zero disables limiting.
	RateLimit float64
	// Observer, when set, is notified of every call's latency and tokens.
	Observer StatsObserver
}

// NewConfigFromProfile builds an LLM config from the platform profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	return &Config{
		Provider:  p.LLMProvider,
		Model:     p.LLMModel,
		APIKey:    p.LLMAPIKey,
		BaseURL:   p.LLMBaseURL,
		MaxTokens: 2048,
		Timeout:   p.LLMTimeout,
	}
}

type service struct {
	client      *openai.Client
	model       string
	provider    string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	limiter     *rate.Limiter
	observer    StatsObserver
}

// NewService creates a new LLM Service.
func NewService(cfg *Config) (Service, error) {
	if cfg.APIKey == "" && cfg.Provider != "ollama" {
		return nil, errors.New("llm: api key required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = newHTTPClient()

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.7
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &service{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		provider:    cfg.Provider,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     timeout,
		limiter:     limiter,
		observer:    cfg.Observer,
	}, nil
}

func (s *service) Complete(ctx context.Context, messages []Message, opts Options) (string, *CallStats, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", nil, errors.Wrap(err, "llm: rate limit wait")
		}
	}

	temperature := s.temperature
	if opts.TemperatureSet {
		temperature = opts.Temperature
	}
	maxTokens := s.maxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}

	start := time.Now()
	req := openai.ChatCompletionRequest{
		Model:       s.model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages:    convertMessages(messages),
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", nil, errors.Wrap(err, "llm: chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", nil, errors.New("llm: empty response")
	}

	stats := &CallStats{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		TotalDurationMs:  time.Since(start).Milliseconds(),
	}
	slog.Debug("llm completion",
		"model", s.model,
		"total_tokens", stats.TotalTokens,
		"duration_ms", stats.TotalDurationMs)

	if s.observer != nil {
		s.observer.RecordLLMLatency(s.model, s.provider, time.Since(start))
		s.observer.RecordLLMTokens(s.model, "prompt", stats.PromptTokens)
		s.observer.RecordLLMTokens(s.model, "completion", stats.CompletionTokens)
	}

	return resp.Choices[0].Message.Content, stats, nil
}

func (s *service) CompleteWithRetry(ctx context.Context, messages []Message, opts Options) (string, *CallStats, error) {
	content, stats, err := s.Complete(ctx, messages, opts)
	if err == nil || !isRetryable(err) || ctx.Err() != nil {
		return content, stats, err
	}

	retryOpts := opts
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.timeout
	}
	retryOpts.Timeout = timeout / 2
	slog.Warn("llm completion failed, retrying with shorter timeout",
		"error", err, "retry_timeout", retryOpts.Timeout)

	return s.Complete(ctx, messages, retryOpts)
}

func (s *service) CompleteJSON(ctx context.Context, messages []Message, opts Options, v any) error {
	content, _, err := s.Complete(ctx, messages, opts)
	if err != nil {
		return err
	}
	payload := stripCodeFence(content)
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return errors.Wrapf(err, "llm: malformed JSON response %q", truncate(payload, 120))
	}
	return nil
}

// isRetryable reports whether an error is a transient transport failure worth
// one retry. Context cancellation is never retried.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500 || apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

// stripCodeFence removes a surrounding markdown code fence, which some models
// insist on wrapping JSON responses in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
