package store

// ResolutionRecord captures one processed turn for analytics.
type ResolutionRecord struct {
	ID         string  `json:"id"`
	UserID     int32   `json:"user_id"`
	SessionID  string  `json:"session_id"`
	Input      string  `json:"input"`
	Intent     string  `json:"intent"`
	Tier       int     `json:"tier"`
	Confidence float64 `json:"confidence"`
	LatencyMs  int64   `json:"latency_ms"`
	TrustMode  string  `json:"trust_mode"`
	Executed   bool    `json:"executed"`
	Success    bool    `json:"success"`
	Grounded   bool    `json:"grounded"`
	Error      string  `json:"error"`
	Timestamp  int64   `json:"timestamp"`
}

// FindResolutionRecord specifies conditions for listing resolution records.
type FindResolutionRecord struct {
	UserID    *int32
	StartTime *int64
	Limit     int
}
