package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"orderflow/pkg/platform/sentinel"
)

// PostgresStore persists idempotency records in PostgreSQL. This is the
// production store for multi-instance deployments where a retried request may
// land on a different node than the original.
type PostgresStore struct {
	db        *sql.DB
	retention time.Duration
}

// PostgresStoreOption configures a PostgresStore.
type PostgresStoreOption func(*PostgresStore)

// WithPostgresRetention overrides DefaultRetention.
func WithPostgresRetention(d time.Duration) PostgresStoreOption {
	return func(s *PostgresStore) { s.retention = d }
}

// NewPostgres constructs a PostgreSQL-backed idempotency store.
func NewPostgres(db *sql.DB, opts ...PostgresStoreOption) *PostgresStore {
	store := &PostgresStore{db: db, retention: DefaultRetention}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// Migrate creates the backing table when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS idempotency_records (
			key        TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			response   BYTEA,
			status     INT NOT NULL DEFAULT 0
		)`)
	if err != nil {
		return fmt.Errorf("migrate idempotency store: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByKey(ctx context.Context, key string) (*Record, error) {
	var record Record
	var response []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT key, created_at, response, status
		FROM idempotency_records
		WHERE key = $1 AND created_at > $2`,
		key, time.Now().Add(-s.retention),
	).Scan(&record.Key, &record.CreatedAt, &response, &record.Status)
	if errors.Is(err, sql.ErrNoRows) {
		// Drop an expired row opportunistically so the key is reusable.
		_, _ = s.db.ExecContext(ctx, `
			DELETE FROM idempotency_records
			WHERE key = $1 AND created_at <= $2`,
			key, time.Now().Add(-s.retention))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	record.Response = response
	return &record, nil
}

func (s *PostgresStore) Add(ctx context.Context, record Record) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO idempotency_records (key, created_at, response, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO NOTHING`,
		record.Key, record.CreatedAt, record.Response, record.Status)
	if err != nil {
		return fmt.Errorf("add idempotency record: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("add idempotency record: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("idempotency key %q: %w", record.Key, sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, record Record) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE idempotency_records
		SET response = $2, status = $3
		WHERE key = $1`,
		record.Key, record.Response, record.Status)
	if err != nil {
		return fmt.Errorf("update idempotency record: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update idempotency record: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("idempotency key %q: %w", record.Key, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM idempotency_records WHERE key = $1`, key); err != nil {
		return fmt.Errorf("remove idempotency record: %w", err)
	}
	return nil
}
