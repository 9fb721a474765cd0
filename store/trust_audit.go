package store

// TrustDecision is one append-only trust gate evaluation.
type TrustDecision struct {
	ID              string   `json:"id"`
	UserID          int32    `json:"user_id"`
	Mode            string   `json:"mode"` // "act" or "read"
	Allowed         bool     `json:"allowed"`
	SourceType      string   `json:"source_type"`
	SourceValue     string   `json:"source_value"`
	Channel         string   `json:"channel"`
	Permissions     []string `json:"permissions"`
	Label           string   `json:"label"`
	Reason          string   `json:"reason"`
	ContentSummary  string   `json:"content_summary"`
	ActionRequested string   `json:"action_requested"`
	Timestamp       int64    `json:"timestamp"`
}

// FindTrustDecision specifies conditions for listing trust decisions.
type FindTrustDecision struct {
	UserID    *int32
	Mode      *string
	StartTime *int64
	Limit     int
}
