package store

// AllowlistEntry grants a third-party contact limited action permissions on
// a user's behalf.
type AllowlistEntry struct {
	ID           int32    `json:"id"`
	UserID       int32    `json:"user_id"`
	ContactType  string   `json:"contact_type"`  // "email", "telegram", "sms"
	ContactValue string   `json:"contact_value"` // address or platform user ID
	Permissions  []string `json:"permissions"`
	Label        string   `json:"label"`
	// Condition is an optional CEL expression; empty means unconditional.
	Condition string `json:"condition"`
	CreatedTs int64  `json:"created_ts"`
	UpdatedTs int64  `json:"updated_ts"`
}

// FindAllowlistEntry specifies conditions for finding allowlist entries.
type FindAllowlistEntry struct {
	ID           *int32
	UserID       *int32
	ContactType  *string
	ContactValue *string
}

// UpsertAllowlistEntry specifies data for creating or updating an entry.
type UpsertAllowlistEntry struct {
	UserID       int32
	ContactType  string
	ContactValue string
	Permissions  []string
	Label        string
	Condition    string
}

// DeleteAllowlistEntry specifies the entry to delete.
type DeleteAllowlistEntry struct {
	ID     int32
	UserID int32
}
