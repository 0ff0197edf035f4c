package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/alfanzaky/txqueue/internal/domain"
	"github.com/alfanzaky/txqueue/pkg/logger"
)

const schema = `
	CREATE TABLE IF NOT EXISTS queue_store (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

type storeRepository struct {
	db  *sqlx.DB
	key string
}

var _ domain.QueueStore = (*storeRepository)(nil)

// NewStoreRepository creates a queue store holding one row of queue_store
func NewStoreRepository(db *sqlx.DB, key string) *storeRepository {
	return &storeRepository{db: db, key: key}
}

// EnsureSchema creates the queue_store table if it does not exist
func (r *storeRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		logger.Error("Failed to create queue_store table", logger.ErrorField(err))
		return fmt.Errorf("failed to ensure queue_store schema: %w", err)
	}
	return nil
}

// Load returns the stored document, or nil when no row exists for the key
func (r *storeRepository) Load(ctx context.Context) ([]byte, error) {
	query := `SELECT value FROM queue_store WHERE key = $1`

	var value string
	err := r.db.GetContext(ctx, &value, query, r.key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read queue store %s: %w", r.key, err)
	}
	return []byte(value), nil
}

// Save upserts the document under the key
func (r *storeRepository) Save(ctx context.Context, data []byte) error {
	query := `
		INSERT INTO queue_store (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, r.key, string(data)); err != nil {
		return fmt.Errorf("failed to write queue store %s: %w", r.key, err)
	}
	return nil
}

// Ping checks the database connection, used by readiness probes
func (r *storeRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
