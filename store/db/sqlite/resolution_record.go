package sqlite

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/kestrelhq/kestrel/store"
)

func (d *DB) CreateResolutionRecord(ctx context.Context, create *store.ResolutionRecord) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO resolution_record (id, user_id, session_id, input, intent, tier, confidence, latency_ms, trust_mode, executed, success, grounded, error, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		create.ID, create.UserID, create.SessionID, create.Input, create.Intent,
		create.Tier, create.Confidence, create.LatencyMs, create.TrustMode,
		create.Executed, create.Success, create.Grounded, create.Error, create.Timestamp)
	return errors.Wrap(err, "create resolution record")
}

func (d *DB) ListResolutionRecords(ctx context.Context, find *store.FindResolutionRecord) ([]*store.ResolutionRecord, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = ?"), append(args, *v)
	}
	if v := find.StartTime; v != nil {
		where, args = append(where, "timestamp >= ?"), append(args, *v)
	}

	query := `
		SELECT id, user_id, session_id, input, intent, tier, confidence, latency_ms, trust_mode, executed, success, grounded, error, timestamp
		FROM resolution_record
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY timestamp DESC`
	if find.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list resolution records")
	}
	defer rows.Close()

	var records []*store.ResolutionRecord
	for rows.Next() {
		rec := &store.ResolutionRecord{}
		if err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.SessionID,
			&rec.Input,
			&rec.Intent,
			&rec.Tier,
			&rec.Confidence,
			&rec.LatencyMs,
			&rec.TrustMode,
			&rec.Executed,
			&rec.Success,
			&rec.Grounded,
			&rec.Error,
			&rec.Timestamp,
		); err != nil {
			return nil, errors.Wrap(err, "scan resolution record")
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
