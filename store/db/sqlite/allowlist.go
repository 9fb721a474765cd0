package sqlite

import (
	"context"
	"database/sql"
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
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "id = ?"), append(args, *v)
	}
	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = ?"), append(args, *v)
	}
	if v := find.ContactType; v != nil {
		where, args = append(where, "contact_type = ?"), append(args, *v)
	}
	if v := find.ContactValue; v != nil {
		where, args = append(where, "contact_value = ?"), append(args, *v)
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
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO allowlist_entry (user_id, contact_type, contact_value, permissions, label, condition, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, contact_type, contact_value) DO UPDATE SET
			permissions = excluded.permissions,
			label = excluded.label,
			condition = excluded.condition,
			updated_ts = excluded.updated_ts`,
		upsert.UserID, upsert.ContactType, upsert.ContactValue,
		joinList(upsert.Permissions), upsert.Label, upsert.Condition, now, now)
	if err != nil {
		return nil, errors.Wrap(err, "upsert allowlist entry")
	}

	entry, err := d.GetAllowlistEntry(ctx, &store.FindAllowlistEntry{
		UserID:       &upsert.UserID,
		ContactType:  &upsert.ContactType,
		ContactValue: &upsert.ContactValue,
	})
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, sql.ErrNoRows
	}
	return entry, nil
}

func (d *DB) DeleteAllowlistEntry(ctx context.Context, delete *store.DeleteAllowlistEntry) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM allowlist_entry WHERE id = ? AND user_id = ?`,
		delete.ID, delete.UserID)
	return errors.Wrap(err, "delete allowlist entry")
}
