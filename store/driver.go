package store

import "context"

// Driver is an interface for database drivers.
type Driver interface {
	// Migrate creates or upgrades the schema.
	Migrate(ctx context.Context) error
	Close() error

	// Allowlist
	GetAllowlistEntry(ctx context.Context, find *FindAllowlistEntry) (*AllowlistEntry, error)
	ListAllowlistEntries(ctx context.Context, find *FindAllowlistEntry) ([]*AllowlistEntry, error)
	UpsertAllowlistEntry(ctx context.Context, upsert *UpsertAllowlistEntry) (*AllowlistEntry, error)
	DeleteAllowlistEntry(ctx context.Context, delete *DeleteAllowlistEntry) error

	// Trust audit
	CreateTrustDecision(ctx context.Context, create *TrustDecision) error
	ListTrustDecisions(ctx context.Context, find *FindTrustDecision) ([]*TrustDecision, error)

	// Resolution records
	CreateResolutionRecord(ctx context.Context, create *ResolutionRecord) error
	ListResolutionRecords(ctx context.Context, find *FindResolutionRecord) ([]*ResolutionRecord, error)

	// Conversation history
	CreateConversationTurn(ctx context.Context, create *CreateConversationTurn) (*ConversationTurn, error)
	ListConversationTurns(ctx context.Context, find *FindConversationTurn) ([]*ConversationTurn, error)
	UpsertKnownEntity(ctx context.Context, upsert *UpsertKnownEntity) (*KnownEntity, error)
	ListKnownEntities(ctx context.Context, find *FindKnownEntity) ([]*KnownEntity, error)

	// Grounding violations
	CreateGroundingViolation(ctx context.Context, create *GroundingViolation) error
	ListGroundingViolations(ctx context.Context, find *FindGroundingViolation) ([]*GroundingViolation, error)
}
