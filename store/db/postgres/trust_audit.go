package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/kestrelhq/kestrel/store"
)

func (d *DB) CreateTrustDecision(ctx context.Context, create *store.TrustDecision) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO trust_decision (id, user_id, mode, allowed, source_type, source_value, channel, permissions, label, reason, content_summary, action_requested, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		create.ID, create.UserID, create.Mode, create.Allowed,
		create.SourceType, create.SourceValue, create.Channel,
		joinList(create.Permissions), create.Label, create.Reason,
		create.ContentSummary, create.ActionRequested, create.Timestamp)
	return errors.Wrap(err, "create trust decision")
}

func (d *DB) ListTrustDecisions(ctx context.Context, find *store.FindTrustDecision) ([]*store.TrustDecision, error) {
	where, args := []string{"TRUE"}, []any{}
	if v := find.UserID; v != nil {
		args = append(args, *v)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if v := find.Mode; v != nil {
		args = append(args, *v)
		where = append(where, fmt.Sprintf("mode = $%d", len(args)))
	}
	if v := find.StartTime; v != nil {
		args = append(args, *v)
		where = append(where, fmt.Sprintf("timestamp >= $%d", len(args)))
	}

	query := `
		SELECT id, user_id, mode, allowed, source_type, source_value, channel, permissions, label, reason, content_summary, action_requested, timestamp
		FROM trust_decision
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY timestamp DESC`
	if find.Limit > 0 {
		args = append(args, find.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
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
