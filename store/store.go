// Package store provides database access to all raw objects.
package store

import (
	"context"

	"github.com/kestrelhq/kestrel/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) GetAllowlistEntry(ctx context.Context, find *FindAllowlistEntry) (*AllowlistEntry, error) {
	return s.driver.GetAllowlistEntry(ctx, find)
}

func (s *Store) ListAllowlistEntries(ctx context.Context, find *FindAllowlistEntry) ([]*AllowlistEntry, error) {
	return s.driver.ListAllowlistEntries(ctx, find)
}

func (s *Store) UpsertAllowlistEntry(ctx context.Context, upsert *UpsertAllowlistEntry) (*AllowlistEntry, error) {
	return s.driver.UpsertAllowlistEntry(ctx, upsert)
}

func (s *Store) DeleteAllowlistEntry(ctx context.Context, delete *DeleteAllowlistEntry) error {
	return s.driver.DeleteAllowlistEntry(ctx, delete)
}

func (s *Store) CreateTrustDecision(ctx context.Context, create *TrustDecision) error {
	return s.driver.CreateTrustDecision(ctx, create)
}

func (s *Store) ListTrustDecisions(ctx context.Context, find *FindTrustDecision) ([]*TrustDecision, error) {
	return s.driver.ListTrustDecisions(ctx, find)
}

func (s *Store) CreateResolutionRecord(ctx context.Context, create *ResolutionRecord) error {
	return s.driver.CreateResolutionRecord(ctx, create)
}

func (s *Store) ListResolutionRecords(ctx context.Context, find *FindResolutionRecord) ([]*ResolutionRecord, error) {
	return s.driver.ListResolutionRecords(ctx, find)
}

func (s *Store) CreateConversationTurn(ctx context.Context, create *CreateConversationTurn) (*ConversationTurn, error) {
	return s.driver.CreateConversationTurn(ctx, create)
}

func (s *Store) ListConversationTurns(ctx context.Context, find *FindConversationTurn) ([]*ConversationTurn, error) {
	return s.driver.ListConversationTurns(ctx, find)
}

func (s *Store) UpsertKnownEntity(ctx context.Context, upsert *UpsertKnownEntity) (*KnownEntity, error) {
	return s.driver.UpsertKnownEntity(ctx, upsert)
}

func (s *Store) ListKnownEntities(ctx context.Context, find *FindKnownEntity) ([]*KnownEntity, error) {
	return s.driver.ListKnownEntities(ctx, find)
}

func (s *Store) CreateGroundingViolation(ctx context.Context, create *GroundingViolation) error {
	return s.driver.CreateGroundingViolation(ctx, create)
}

func (s *Store) ListGroundingViolations(ctx context.Context, find *FindGroundingViolation) ([]*GroundingViolation, error) {
	return s.driver.ListGroundingViolations(ctx, find)
}
