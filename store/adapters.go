package store

import (
	"context"
	"time"

	"github.com/kestrelhq/kestrel/ai/grounding"
	"github.com/kestrelhq/kestrel/ai/intent"
	"github.com/kestrelhq/kestrel/ai/metrics"
	"github.com/kestrelhq/kestrel/ai/routing"
	"github.com/kestrelhq/kestrel/ai/trust"
)

// Adapters bridge the ai packages' narrow consumer interfaces onto the
// store. Each ai package defines the interface it needs; the store satisfies
// them here without the ai packages depending on this package.

// AllowlistAdapter exposes allowlist lookups to the trust gate.
type AllowlistAdapter struct {
	store *Store
}

var _ trust.AllowlistStore = (*AllowlistAdapter)(nil)

func (s *Store) Allowlist() *AllowlistAdapter {
	return &AllowlistAdapter{store: s}
}

func (a *AllowlistAdapter) FindAllowlistEntry(ctx context.Context, userID int32, contactType, contactValue string) (*trust.AllowlistEntry, error) {
	entry, err := a.store.GetAllowlistEntry(ctx, &FindAllowlistEntry{
		UserID:       &userID,
		ContactType:  &contactType,
		ContactValue: &contactValue,
	})
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	return &trust.AllowlistEntry{
		UserID:       entry.UserID,
		ContactType:  entry.ContactType,
		ContactValue: entry.ContactValue,
		Permissions:  entry.Permissions,
		Label:        entry.Label,
		Condition:    entry.Condition,
	}, nil
}

// AuditAdapter persists trust decisions from the audit writer.
type AuditAdapter struct {
	store *Store
}

var _ trust.AuditSink = (*AuditAdapter)(nil)

func (s *Store) TrustAudit() *AuditAdapter {
	return &AuditAdapter{store: s}
}

func (a *AuditAdapter) AppendTrustDecision(ctx context.Context, decision *trust.Decision) error {
	return a.store.CreateTrustDecision(ctx, &TrustDecision{
		ID:              decision.ID,
		UserID:          decision.UserID,
		Mode:            string(decision.Mode),
		Allowed:         decision.Allowed,
		SourceType:      decision.SourceType,
		SourceValue:     decision.SourceValue,
		Channel:         decision.Channel,
		Permissions:     decision.Permissions,
		Label:           decision.Label,
		Reason:          decision.Reason,
		ContentSummary:  decision.ContentSummary,
		ActionRequested: decision.ActionRequested,
		Timestamp:       decision.Timestamp.Unix(),
	})
}

// MetricsAdapter persists and serves resolution records for the collector.
type MetricsAdapter struct {
	store *Store
}

var _ metrics.RecordSink = (*MetricsAdapter)(nil)

func (s *Store) Metrics() *MetricsAdapter {
	return &MetricsAdapter{store: s}
}

func (a *MetricsAdapter) AppendResolutionRecord(ctx context.Context, rec *metrics.Record) error {
	return a.store.CreateResolutionRecord(ctx, &ResolutionRecord{
		ID:         rec.ID,
		UserID:     rec.UserID,
		SessionID:  rec.SessionID,
		Input:      rec.Input,
		Intent:     string(rec.Intent),
		Tier:       rec.Tier,
		Confidence: float64(rec.Confidence),
		LatencyMs:  rec.LatencyMs,
		TrustMode:  rec.TrustMode,
		Executed:   rec.Executed,
		Success:    rec.Success,
		Grounded:   rec.Grounded,
		Error:      rec.Error,
		Timestamp:  rec.Timestamp.Unix(),
	})
}

func (a *MetricsAdapter) ResolutionRecordsSince(ctx context.Context, since time.Time) ([]*metrics.Record, error) {
	start := since.Unix()
	rows, err := a.store.ListResolutionRecords(ctx, &FindResolutionRecord{StartTime: &start})
	if err != nil {
		return nil, err
	}
	records := make([]*metrics.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, &metrics.Record{
			ID:         row.ID,
			UserID:     row.UserID,
			SessionID:  row.SessionID,
			Input:      row.Input,
			Intent:     intent.Intent(row.Intent),
			Tier:       row.Tier,
			Confidence: float32(row.Confidence),
			LatencyMs:  row.LatencyMs,
			TrustMode:  row.TrustMode,
			Executed:   row.Executed,
			Success:    row.Success,
			Grounded:   row.Grounded,
			Error:      row.Error,
			Timestamp:  time.Unix(row.Timestamp, 0),
		})
	}
	return records, nil
}

// GroundingAdapter persists grounding violations.
type GroundingAdapter struct {
	store *Store
}

var _ grounding.ViolationSink = (*GroundingAdapter)(nil)

func (s *Store) Grounding() *GroundingAdapter {
	return &GroundingAdapter{store: s}
}

func (a *GroundingAdapter) AppendGroundingViolation(ctx context.Context, v *grounding.Violation) error {
	return a.store.CreateGroundingViolation(ctx, &GroundingViolation{
		ID:          v.ID,
		UserID:      v.UserID,
		SessionID:   v.SessionID,
		Response:    v.Response,
		Context:     v.Context,
		Confidence:  float64(v.Confidence),
		Explanation: v.Explanation,
		Timestamp:   v.Timestamp.Unix(),
	})
}

// ContextAdapter serves conversation history to the classifier chain.
type ContextAdapter struct {
	store *Store
}

var _ routing.ContextProvider = (*ContextAdapter)(nil)

func (s *Store) ConversationContext() *ContextAdapter {
	return &ContextAdapter{store: s}
}

func (a *ContextAdapter) RecentTurns(ctx context.Context, sessionID string, limit int) ([]routing.Turn, error) {
	rows, err := a.store.ListConversationTurns(ctx, &FindConversationTurn{
		SessionID: &sessionID,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}
	turns := make([]routing.Turn, 0, len(rows))
	for _, row := range rows {
		turns = append(turns, routing.Turn{
			Role:      row.Role,
			Text:      row.Text,
			Intent:    intent.Intent(row.Intent),
			CreatedAt: time.Unix(row.CreatedTs, 0),
		})
	}
	return turns, nil
}

func (a *ContextAdapter) KnownEntities(ctx context.Context, sessionID string) ([]routing.Entity, error) {
	rows, err := a.store.ListKnownEntities(ctx, &FindKnownEntity{SessionID: &sessionID})
	if err != nil {
		return nil, err
	}
	entities := make([]routing.Entity, 0, len(rows))
	for _, row := range rows {
		entities = append(entities, routing.Entity{
			Name:     row.Name,
			Kind:     row.Kind,
			LastSeen: time.Unix(row.LastSeenTs, 0),
		})
	}
	return entities, nil
}
