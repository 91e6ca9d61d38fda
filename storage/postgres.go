package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"agmark-sync/models"
	"agmark-sync/utils"
)

// PostgresStore keeps the document hierarchy in a single PostgreSQL table
// keyed by (path, push_id).
type PostgresStore struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresStore opens a connection to PostgreSQL, pings it under the given
// retry policy, runs schema migrations and returns a ready-to-use store.
func NewPostgresStore(ctx context.Context, dsn string, retry *utils.RetryConfig, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	err = retry.Do(ctx, "postgres-ping", func(ctx context.Context) error {
		return db.PingContext(ctx)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	ps := &PostgresStore{db: db, logger: logger}
	if err := ps.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS store_nodes (
			id         BIGSERIAL   PRIMARY KEY,
			path       TEXT        NOT NULL,
			push_id    TEXT        NOT NULL,
			payload    JSONB       NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (path, push_id)
		);

		CREATE INDEX IF NOT EXISTS idx_store_nodes_path ON store_nodes(path, push_id);
	`)
	return err
}

// Collection validates path; any valid path is an implicit collection.
func (ps *PostgresStore) Collection(_ context.Context, path string) (Collection, error) {
	clean, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	return &pgCollection{store: ps, path: clean}, nil
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

// Count returns the number of documents stored directly under path.
func (ps *PostgresStore) Count(ctx context.Context, path string) (int, error) {
	clean, err := CleanPath(path)
	if err != nil {
		return 0, err
	}
	var n int
	err = ps.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM store_nodes WHERE path = $1`, clean).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count %s: %w", clean, err)
	}
	return n, nil
}

type pgCollection struct {
	store *PostgresStore
	path  string
}

func (c *pgCollection) Path() string {
	return c.path
}

// Push inserts doc with a time-ordered UUIDv7 key.
func (c *pgCollection) Push(ctx context.Context, doc models.Document) (string, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", &StoreError{Op: "push", Path: c.path, Err: fmt.Errorf("encode payload: %w", err)}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", &StoreError{Op: "push", Path: c.path, Err: err}
	}
	key := id.String()

	_, err = c.store.db.ExecContext(ctx,
		`INSERT INTO store_nodes (path, push_id, payload) VALUES ($1, $2, $3)`,
		c.path, key, payload)
	if err != nil {
		return "", &StoreError{Op: "push", Path: c.path, Err: err}
	}
	return key, nil
}
