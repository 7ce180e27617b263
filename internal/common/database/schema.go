// internal/common/database/schema.go
package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations must stay ordered, versions sequential from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS owner_notifications (
	id               BIGSERIAL PRIMARY KEY,
	message          TEXT NOT NULL,
	type             TEXT NOT NULL,
	resource         TEXT NOT NULL,
	resource_id      TEXT NOT NULL,
	owner_email      TEXT NOT NULL,
	is_read          BOOLEAN NOT NULL DEFAULT FALSE,
	is_email_sent    BOOLEAN NOT NULL DEFAULT FALSE,
	is_bulk          BOOLEAN NOT NULL DEFAULT FALSE,
	count            INTEGER NULL,
	first_created_at TIMESTAMPTZ NULL,
	created_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_owner_notifications_owner
	ON owner_notifications (lower(owner_email), created_at);
CREATE INDEX IF NOT EXISTS idx_owner_notifications_unread
	ON owner_notifications (lower(owner_email)) WHERE is_read = FALSE;
CREATE INDEX IF NOT EXISTS idx_owner_notifications_bulk
	ON owner_notifications (lower(owner_email), type, resource) WHERE is_bulk = TRUE;

CREATE TABLE IF NOT EXISTS group_notifications (
	id            BIGSERIAL PRIMARY KEY,
	message       TEXT NOT NULL,
	type          TEXT NOT NULL,
	resource      TEXT NOT NULL,
	resource_id   TEXT NOT NULL,
	group_id      TEXT NOT NULL,
	member_email  TEXT NOT NULL,
	owner_email   TEXT NULL,
	is_read       BOOLEAN NOT NULL DEFAULT FALSE,
	is_email_sent BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_group_notifications_member
	ON group_notifications (lower(member_email), group_id);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS notification_bursts (
	owner_email      TEXT NOT NULL,
	type             TEXT NOT NULL,
	resource         TEXT NOT NULL,
	state            TEXT NOT NULL DEFAULT 'empty',
	head_id          BIGINT NULL,
	count            INTEGER NOT NULL DEFAULT 0,
	first_created_at TIMESTAMPTZ NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (owner_email, type, resource),
	CHECK (state IN ('empty', 'single', 'aggregated')),
	CHECK (owner_email = lower(owner_email))
);
`,
	},
	{
		version: 3,
		sql: `
CREATE TABLE IF NOT EXISTS groups (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	owner_email TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
	group_id     TEXT NOT NULL REFERENCES groups (id) ON DELETE CASCADE,
	member_email TEXT NOT NULL,
	PRIMARY KEY (group_id, member_email)
);
`,
	},
}

// Migrate applies any outstanding migrations, each in its own transaction.
// Concurrent workers starting together serialize on an advisory lock.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	for _, m := range migrations {
		if err := applyMigration(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

const migrationLockKey = 7_201_004

func applyMigration(ctx context.Context, db *sqlx.DB, m migration) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration v%d: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("locking migration v%d: %w", m.version, err)
	}

	var applied bool
	if err := tx.GetContext(ctx, &applied,
		`SELECT EXISTS (SELECT 1 FROM schema_version WHERE version = $1)`, m.version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if applied {
		return nil
	}

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("applying migration v%d: %w", m.version, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, m.version); err != nil {
		return fmt.Errorf("recording migration v%d: %w", m.version, err)
	}

	return tx.Commit()
}
