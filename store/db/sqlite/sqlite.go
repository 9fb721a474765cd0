package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/kestrelhq/kestrel/internal/profile"
	"github.com/kestrelhq/kestrel/store"
)

// SQLite is supported for development and single-user deployments. Writes
// go through a single connection; concurrent write throughput is not a goal.

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite database named by the profile DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// WAL journal mode avoids reader/writer locking; busy_timeout covers the
	// rare contention that remains. Each pragma must be prefixed with
	// `_pragma=` for the modernc.org/sqlite driver.
	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	// A single connection is optimal for SQLite with WAL.
	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	return &DB{db: sqliteDB, profile: profile}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS allowlist_entry (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		contact_type TEXT NOT NULL,
		contact_value TEXT NOT NULL,
		permissions TEXT NOT NULL DEFAULT '',
		label TEXT NOT NULL DEFAULT '',
		condition TEXT NOT NULL DEFAULT '',
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL,
		UNIQUE(user_id, contact_type, contact_value)
	)`,
	`CREATE TABLE IF NOT EXISTS trust_decision (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		mode TEXT NOT NULL,
		allowed INTEGER NOT NULL DEFAULT 0,
		source_type TEXT NOT NULL DEFAULT '',
		source_value TEXT NOT NULL DEFAULT '',
		channel TEXT NOT NULL DEFAULT '',
		permissions TEXT NOT NULL DEFAULT '',
		label TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		content_summary TEXT NOT NULL DEFAULT '',
		action_requested TEXT NOT NULL DEFAULT '',
		timestamp BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trust_decision_user_ts ON trust_decision(user_id, timestamp)`,
	`CREATE TABLE IF NOT EXISTS resolution_record (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		session_id TEXT NOT NULL DEFAULT '',
		input TEXT NOT NULL DEFAULT '',
		intent TEXT NOT NULL DEFAULT '',
		tier INTEGER NOT NULL DEFAULT 0,
		confidence REAL NOT NULL DEFAULT 0,
		latency_ms BIGINT NOT NULL DEFAULT 0,
		trust_mode TEXT NOT NULL DEFAULT '',
		executed INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL DEFAULT 0,
		grounded INTEGER NOT NULL DEFAULT 1,
		error TEXT NOT NULL DEFAULT '',
		timestamp BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_resolution_record_ts ON resolution_record(timestamp)`,
	`CREATE TABLE IF NOT EXISTS conversation_turn (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		intent TEXT NOT NULL DEFAULT '',
		created_ts BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversation_turn_session ON conversation_turn(session_id, created_ts)`,
	`CREATE TABLE IF NOT EXISTS known_entity (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		session_id TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT '',
		last_seen_ts BIGINT NOT NULL,
		UNIQUE(session_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS grounding_violation (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		session_id TEXT NOT NULL DEFAULT '',
		response TEXT NOT NULL DEFAULT '',
		context TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		explanation TEXT NOT NULL DEFAULT '',
		timestamp BIGINT NOT NULL
	)`,
}

func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "apply migration")
		}
	}
	return nil
}

// Permission lists are stored comma-joined; none of the permission names
// contain commas.
func joinList(list []string) string {
	return strings.Join(list, ",")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
