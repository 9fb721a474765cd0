package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/kestrelhq/kestrel/store"
)

func (d *DB) CreateGroundingViolation(ctx context.Context, create *store.GroundingViolation) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO grounding_violation (id, user_id, session_id, response, context, confidence, explanation, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		create.ID, create.UserID, create.SessionID, create.Response,
		create.Context, create.Confidence, create.Explanation, create.Timestamp)
	return errors.Wrap(err, "create grounding violation")
}

func (d *DB) ListGroundingViolations(ctx context.Context, find *store.FindGroundingViolation) ([]*store.GroundingViolation, error) {
	where, args := []string{"TRUE"}, []any{}
	if v := find.UserID; v != nil {
		args = append(args, *v)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if v := find.StartTime; v != nil {
		args = append(args, *v)
		where = append(where, fmt.Sprintf("timestamp >= $%d", len(args)))
	}

	query := `
		SELECT id, user_id, session_id, response, context, confidence, explanation, timestamp
		FROM grounding_violation
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY timestamp DESC`
	if find.Limit > 0 {
		args = append(args, find.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list grounding violations")
	}
	defer rows.Close()

	var violations []*store.GroundingViolation
	for rows.Next() {
		v := &store.GroundingViolation{}
		if err := rows.Scan(
			&v.ID,
			&v.UserID,
			&v.SessionID,
			&v.Response,
			&v.Context,
			&v.Confidence,
			&v.Explanation,
			&v.Timestamp,
		); err != nil {
			return nil, errors.Wrap(err, "scan grounding violation")
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}
