// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"notification-workers/internal/common/config"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sqlx.DB
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sqlx.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// NewPostgresFromDB wraps an already opened *sql.DB (tests hand in sqlmock here).
func NewPostgresFromDB(db *sql.DB) *PostgresClient {
	return &PostgresClient{DB: sqlx.NewDb(db, "postgres")}
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// TxOptions controls WithTx.
type TxOptions struct {
	Isolation  sql.IsolationLevel
	MaxRetries int
	BaseDelay  time.Duration
	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error)
}

// IsolationFromString maps the configured isolation level name.
func IsolationFromString(level string) sql.IsolationLevel {
	if level == "serializable" {
		return sql.LevelSerializable
	}
	return sql.LevelReadCommitted
}

// WithTx runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back otherwise. Serialization failures and deadlocks
// roll back and rerun fn from scratch, up to opts.MaxRetries more times.
func WithTx(ctx context.Context, db *sqlx.DB, opts TxOptions, fn func(tx *sqlx.Tx) error) error {
	delay := opts.BaseDelay
	var err error

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		err = runTx(ctx, db, opts.Isolation, fn)
		if err == nil || !IsRetryable(err) || attempt == opts.MaxRetries {
			return err
		}

		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, err)
		}

		select {
		case <-time.After(delay):
			delay *= 2
		case <-ctx.Done():
			return fmt.Errorf("transaction cancelled after %d attempts: %w", attempt+1, ctx.Err())
		}
	}

	return err
}

func runTx(ctx context.Context, db *sqlx.DB, isolation sql.IsolationLevel, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Postgres SQLSTATE codes worth rerunning a transaction for.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// IsRetryable reports whether err is a serialization failure or deadlock.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == sqlStateSerializationFailure || pqErr.Code == sqlStateDeadlockDetected
	}
	return false
}
