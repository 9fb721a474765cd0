package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/kestrelhq/kestrel/store"
)

func (d *DB) CreateConversationTurn(ctx context.Context, create *store.CreateConversationTurn) (*store.ConversationTurn, error) {
	now := time.Now().Unix()
	result, err := d.db.ExecContext(ctx, `
		INSERT INTO conversation_turn (user_id, session_id, role, text, intent, created_ts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		create.UserID, create.SessionID, create.Role, create.Text, create.Intent, now)
	if err != nil {
		return nil, errors.Wrap(err, "create conversation turn")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "get turn id")
	}
	return &store.ConversationTurn{
		ID:        id,
		UserID:    create.UserID,
		SessionID: create.SessionID,
		Role:      create.Role,
		Text:      create.Text,
		Intent:    create.Intent,
		CreatedTs: now,
	}, nil
}

func (d *DB) ListConversationTurns(ctx context.Context, find *store.FindConversationTurn) ([]*store.ConversationTurn, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = ?"), append(args, *v)
	}
	if v := find.SessionID; v != nil {
		where, args = append(where, "session_id = ?"), append(args, *v)
	}

	// Newest first, to match how the classifier consumes history.
	query := `
		SELECT id, user_id, session_id, role, text, intent, created_ts
		FROM conversation_turn
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC, id DESC`
	if find.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list conversation turns")
	}
	defer rows.Close()

	var turns []*store.ConversationTurn
	for rows.Next() {
		turn := &store.ConversationTurn{}
		if err := rows.Scan(
			&turn.ID,
			&turn.UserID,
			&turn.SessionID,
			&turn.Role,
			&turn.Text,
			&turn.Intent,
			&turn.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "scan conversation turn")
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

func (d *DB) UpsertKnownEntity(ctx context.Context, upsert *store.UpsertKnownEntity) (*store.KnownEntity, error) {
	now := time.Now().Unix()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO known_entity (user_id, session_id, name, kind, last_seen_ts)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, name) DO UPDATE SET
			kind = excluded.kind,
			last_seen_ts = excluded.last_seen_ts`,
		upsert.UserID, upsert.SessionID, upsert.Name, upsert.Kind, now)
	if err != nil {
		return nil, errors.Wrap(err, "upsert known entity")
	}
	return &store.KnownEntity{
		UserID:     upsert.UserID,
		SessionID:  upsert.SessionID,
		Name:       upsert.Name,
		Kind:       upsert.Kind,
		LastSeenTs: now,
	}, nil
}

func (d *DB) ListKnownEntities(ctx context.Context, find *store.FindKnownEntity) ([]*store.KnownEntity, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = ?"), append(args, *v)
	}
	if v := find.SessionID; v != nil {
		where, args = append(where, "session_id = ?"), append(args, *v)
	}

	query := `
		SELECT id, user_id, session_id, name, kind, last_seen_ts
		FROM known_entity
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY last_seen_ts DESC`
	if find.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list known entities")
	}
	defer rows.Close()

	var entities []*store.KnownEntity
	for rows.Next() {
		entity := &store.KnownEntity{}
		if err := rows.Scan(
			&entity.ID,
			&entity.UserID,
			&entity.SessionID,
			&entity.Name,
			&entity.Kind,
			&entity.LastSeenTs,
		); err != nil {
			return nil, errors.Wrap(err, "scan known entity")
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}
