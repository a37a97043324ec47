// Package postgres provides a Postgres-backed scan job store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/stringfinder/internal/scan"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "scan_jobs"

// JobStoreConfig controls the Postgres connection pool used for job rows.
type JobStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// JobStore keeps each job as one JSONB row keyed by id. Status, position
// and total are also stored as plain columns for ad-hoc queries.
type JobStore struct {
	pool  pool
	table string
}

// NewJobStore connects to Postgres using the provided config.
func NewJobStore(ctx context.Context, cfg JobStoreConfig) (*JobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &JobStore{pool: p, table: table}, nil
}

// NewJobStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewJobStoreWithPool(p pool, table string) (*JobStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &JobStore{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// EnsureSchema creates the jobs table when it does not exist.
func (s *JobStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	position   INTEGER NOT NULL,
	total      INTEGER NOT NULL,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Get loads a job by id.
func (s *JobStore) Get(ctx context.Context, jobID string) (scan.Job, error) {
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE id = $1`, s.table)
	var payload []byte
	if err := s.pool.QueryRow(ctx, query, jobID).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scan.Job{}, scan.ErrJobNotFound
		}
		return scan.Job{}, fmt.Errorf("select job: %w", err)
	}
	var job scan.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return scan.Job{}, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	return job, nil
}

// Put upserts the job row.
func (s *JobStore) Put(ctx context.Context, job scan.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, status, position, total, payload, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	position = EXCLUDED.position,
	total = EXCLUDED.total,
	payload = EXCLUDED.payload,
	updated_at = EXCLUDED.updated_at`, s.table)

	args := []any{
		job.ID,
		string(job.Status),
		job.Position,
		job.Total,
		payload,
		job.Updated,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}
