// Package postgres implements a ledger backed by a Postgres table.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultTable is used when no table name is configured.
const DefaultTable = "processed_advisories"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for ledger rows.
type Config struct {
	DSN      string
	Table    string
	MaxConns int32
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Ledger records processed entries as rows keyed by the advisory key.
type Ledger struct {
	pool  pool
	table string
	now   func() time.Time
}

// New creates a Postgres-backed Ledger and makes sure its table exists.
func New(ctx context.Context, cfg Config) (*Ledger, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("ledger.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	l, err := NewWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := l.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return l, nil
}

// NewWithPool constructs a Ledger from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*Ledger, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Ledger{pool: p, table: table, now: func() time.Time { return time.Now().UTC() }}, nil
}

// EnsureSchema creates the ledger table if it does not exist.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	advisory_key TEXT PRIMARY KEY,
	processed_at TIMESTAMPTZ NOT NULL
)`, l.table)
	if _, err := l.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create ledger table: %w", err)
	}
	return nil
}

// Seen reports whether a row exists for key.
func (l *Ledger) Seen(ctx context.Context, key string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE advisory_key = $1)`, l.table)
	var exists bool
	if err := l.pool.QueryRow(ctx, query, key).Scan(&exists); err != nil {
		return false, fmt.Errorf("query ledger: %w", err)
	}
	return exists, nil
}

// Mark inserts a row for key; marking twice keeps the first timestamp.
func (l *Ledger) Mark(ctx context.Context, key string) error {
	query := fmt.Sprintf(`
INSERT INTO %s (advisory_key, processed_at) VALUES ($1, $2)
ON CONFLICT (advisory_key) DO NOTHING`, l.table)
	if _, err := l.pool.Exec(ctx, query, key, l.now()); err != nil {
		return fmt.Errorf("insert ledger row: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (l *Ledger) Close() {
	if l == nil || l.pool == nil {
		return
	}
	l.pool.Close()
}
