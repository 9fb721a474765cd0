package store

// GroundingViolation records a response whose claims the grounding check
// could not support from retrieved context.
type GroundingViolation struct {
	ID          string  `json:"id"`
	UserID      int32   `json:"user_id"`
	SessionID   string  `json:"session_id"`
	Response    string  `json:"response"`
	Context     string  `json:"context"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
	Timestamp   int64   `json:"timestamp"`
}

// FindGroundingViolation specifies conditions for listing violations.
type FindGroundingViolation struct {
	UserID    *int32
	StartTime *int64
	Limit     int
}
