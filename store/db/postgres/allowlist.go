package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/kestrelhq/kestrel/store"
)

func (d *DB) GetAllowlistEntry(ctx context.Context, find *store.FindAllowlistEntry) (*store.AllowlistEntry, error) {
	entries, err := d.ListAllowlistEntries(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

func (d *DB) ListAllowlistEntries(ctx context.Context, find *store.FindAllowlistEntry) ([]*store.AllowlistEntry, error) {
	where, args := []string{"TRUE"}, []any{}
	if v := find.ID; v != nil {
		args = append(args, *v)
		where = append(where, fmt.Sprintf("id = $%d", len(args)))
	}
	if v := find.UserID; v != nil {
		args = append(args, *v)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if v := find.ContactType; v != nil {
		args = append(args, *v)
		where = append(where, fmt.Sprintf("contact_type = $%d", len(args)))
	}
	if v := find.ContactValue; v != nil {
		args = append(args, *v)
		where = append(where, fmt.Sprintf("contact_value = $%d", len(args)))
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, user_id, contact_type, contact_value, permissions, label, condition, created_ts, updated_ts
		FROM allowlist_entry
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY id`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list allowlist entries")
	}
	defer rows.Close()

	var entries []*store.AllowlistEntry
	for rows.Next() {
		entry := &store.AllowlistEntry{}
		var permissions string
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.ContactType,
			&entry.ContactValue,
			&permissions,
			&entry.Label,
			&entry.Condition,
			&entry.CreatedTs,
			&entry.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "scan allowlist entry")
		}
		entry.Permissions = splitList(permissions)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (d *DB) UpsertAllowlistEntry(ctx context.Context, upsert *store.UpsertAllowlistEntry) (*store.AllowlistEntry, error) {
	now := time.Now().Unix()
	entry := &store.AllowlistEntry{
		UserID:       upsert.UserID,
		ContactType:  upsert.ContactType,
		ContactValue: upsert.ContactValue,
		Permissions:  upsert.Permissions,
		Label:        upsert.Label,
		Condition:    upsert.Condition,
		UpdatedTs:    now,
	}
	err := d.db.QueryRowContext(ctx, `
		INSERT INTO allowlist_entry (user_id, contact_type, contact_value, permissions, label, condition, created_ts, updated_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, contact_type, contact_value) DO UPDATE SET
			permissions = EXCLUDED.permissions,
			label = EXCLUDED.label,
			condition = EXCLUDED.condition,
			updated_ts = EXCLUDED.updated_ts
		RETURNING id, created_ts`,
		upsert.UserID, upsert.ContactType, upsert.ContactValue,
		joinList(upsert.Permissions), upsert.Label, upsert.Condition, now, now,
	).Scan(&entry.ID, &entry.CreatedTs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("upsert allowlist entry returned no row")
		}
		return nil, errors.Wrap(err, "upsert allowlist entry")
	}
	return entry, nil
}

func (d *DB) DeleteAllowlistEntry(ctx context.Context, delete *store.DeleteAllowlistEntry) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM allowlist_entry WHERE id = $1 AND user_id = $2`,
		delete.ID, delete.UserID)
	return errors.Wrap(err, "delete allowlist entry")
}
