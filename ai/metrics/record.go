// Package metrics collects per-turn resolution records and exports
// Prometheus metrics for the assistant's routing and trust layers.
package metrics

import (
	"context"
	"time"

	"github.com/kestrelhq/kestrel/ai/intent"
)

// Record captures one fully processed turn for analytics.
type Record struct {
	ID         string        `json:"id"`
	UserID     int32         `json:"user_id"`
	SessionID  string        `json:"session_id"`
	Input      string        `json:"input"`
	Intent     intent.Intent `json:"intent"`
	Tier       int           `json:"tier"`
	Confidence float32       `json:"confidence"`
	LatencyMs  int64         `json:"latency_ms"`
	TrustMode  string        `json:"trust_mode"`
	Executed   bool          `json:"executed"`
	Success    bool          `json:"success"`
	Grounded   bool          `json:"grounded"`
	Error      string        `json:"error,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// RecordSink persists resolution records and serves them back for
// windowed analytics. The store implements it.
type RecordSink interface {
	AppendResolutionRecord(ctx context.Context, rec *Record) error
	ResolutionRecordsSince(ctx context.Context, since time.Time) ([]*Record, error)
}
