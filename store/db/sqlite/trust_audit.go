package sqlite

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/kestrelhq/kestrel/store"
)

func (d *DB) CreateTrustDecision(ctx context.Context, create *store.TrustDecision) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO trust_decision (id, user_id, mode, allowed, source_type, source_value, channel, permissions, label, reason, content_summary, action_requested, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		create.ID, create.UserID, create.Mode, create.Allowed,
		create.SourceType, create.SourceValue, create.Channel,
		joinList(create.Permissions), create.Label, create.Reason,
		create.ContentSummary, create.ActionRequested, create.Timestamp)
	return errors.Wrap(err, "create trust decision")
}

func (d *DB) ListTrustDecisions(ctx context.Context, find *store.FindTrustDecision) ([]*store.TrustDecision, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = ?"), append(args, *v)
	}
	if v := find.Mode; v != nil {
		where, args = append(where, "mode = ?"), append(args, *v)
	}
	if v := find.StartTime; v != nil {
		where, args = append(where, "timestamp >= ?"), append(args, *v)
	}

	query := `
		SELECT id, user_id, mode, allowed, source_type, source_value, channel, permissions, label, reason, content_summary, action_requested, timestamp
		FROM trust_decision
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY timestamp DESC`
	if find.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list trust decisions")
	}
	defer rows.Close()

	var decisions []*store.TrustDecision
	for rows.Next() {
		decision := &store.TrustDecision{}
		var permissions string
		if err := rows.Scan(
			&decision.ID,
			&decision.UserID,
			&decision.Mode,
			&decision.Allowed,
			&decision.SourceType,
			&decision.SourceValue,
			&decision.Channel,
			&permissions,
			&decision.Label,
			&decision.Reason,
			&decision.ContentSummary,
			&decision.ActionRequested,
			&decision.Timestamp,
		); err != nil {
			return nil, errors.Wrap(err, "scan trust decision")
		}
		decision.Permissions = splitList(permissions)
		decisions = append(decisions, decision)
	}
	return decisions, rows.Err()
}
