package store

// ConversationTurn is one message in a session's history. The classifier
// chain reads recent turns for tier 2 disambiguation.
type ConversationTurn struct {
	ID        int64  `json:"id"`
	UserID    int32  `json:"user_id"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"` // "user" or "assistant"
	Text      string `json:"text"`
	Intent    string `json:"intent"`
	CreatedTs int64  `json:"created_ts"`
}

// CreateConversationTurn specifies data for appending a turn.
type CreateConversationTurn struct {
	UserID    int32
	SessionID string
	Role      string
	Text      string
	Intent    string
}

// FindConversationTurn specifies conditions for listing turns.
type FindConversationTurn struct {
	UserID    *int32
	SessionID *string
	Limit     int
}

// KnownEntity is a named thing the user has mentioned, tracked per session
// for reference resolution.
type KnownEntity struct {
	ID         int64  `json:"id"`
	UserID     int32  `json:"user_id"`
	SessionID  string `json:"session_id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"` // "device", "room", "project", "person"
	LastSeenTs int64  `json:"last_seen_ts"`
}

// UpsertKnownEntity specifies data for recording an entity mention.
type UpsertKnownEntity struct {
	UserID    int32
	SessionID string
	Name      string
	Kind      string
}

// FindKnownEntity specifies conditions for listing known entities.
type FindKnownEntity struct {
	UserID    *int32
	SessionID *string
	Limit     int
}
