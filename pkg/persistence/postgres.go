package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/platinummonkey/clinicaccess/pkg/rbac"
)

const createSnapshotsTable = `CREATE TABLE IF NOT EXISTS access_snapshots (
	id BIGSERIAL PRIMARY KEY,
	taken_at TIMESTAMPTZ NOT NULL,
	version INTEGER NOT NULL,
	payload JSONB NOT NULL
)`

// PostgresSnapshotter appends snapshots to the access_snapshots table
type PostgresSnapshotter struct {
	db *sql.DB
}

// NewPostgresSnapshotter wraps an open database handle
func NewPostgresSnapshotter(db *sql.DB) *PostgresSnapshotter {
	return &PostgresSnapshotter{db: db}
}

// OpenPostgres connects to url, checks the connection and creates the schema
func OpenPostgres(ctx context.Context, url string) (*PostgresSnapshotter, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := NewPostgresSnapshotter(db)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the snapshot table when missing
func (s *PostgresSnapshotter) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createSnapshotsTable); err != nil {
		return fmt.Errorf("failed to create access_snapshots table: %w", err)
	}
	return nil
}

// Save inserts snap as a new row
func (s *PostgresSnapshotter) Save(ctx context.Context, snap rbac.Snapshot) error {
	payload, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO access_snapshots (taken_at, version, payload) VALUES ($1, $2, $3)`,
		snap.TakenAt, snap.Version, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// Load reads the newest row
func (s *PostgresSnapshotter) Load(ctx context.Context) (*rbac.Snapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM access_snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}
	return decodeSnapshot(payload)
}

// Ping checks database connectivity
func (s *PostgresSnapshotter) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Backend returns "postgres"
func (s *PostgresSnapshotter) Backend() string { return "postgres" }

// Close closes the database handle
func (s *PostgresSnapshotter) Close() error {
	return s.db.Close()
}
