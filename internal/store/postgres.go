package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// schema is applied by Migrate. It is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS analysis_runs (
	id               TEXT PRIMARY KEY,
	file_name        TEXT NOT NULL,
	status           TEXT NOT NULL,
	error            TEXT NOT NULL DEFAULT '',
	total_rows       INTEGER NOT NULL DEFAULT 0,
	duplicate_groups INTEGER NOT NULL DEFAULT 0,
	exposure         NUMERIC NOT NULL DEFAULT 0,
	mapping          JSONB NOT NULL,
	options          JSONB NOT NULL,
	raw_headers      TEXT[] NOT NULL DEFAULT '{}',
	report           JSONB,
	duration_ms      BIGINT NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS analysis_runs_created_at_idx ON analysis_runs (created_at DESC);
`

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// Connect opens and pings a pool for url.
func Connect(ctx context.Context, url string, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the runs table if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate analysis_runs: %w", err)
	}
	return nil
}

func (p *Postgres) Save(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	mapping, err := json.Marshal(rec.Mapping)
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	options, err := json.Marshal(rec.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}

	var report []byte
	if rec.Report != nil {
		if report, err = json.Marshal(rec.Report); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	}

	sum := rec.Summary()
	exposure, err := toNumeric(sum.Exposure)
	if err != nil {
		return err
	}

	headers := rec.RawHeaders
	if headers == nil {
		headers = []string{}
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO analysis_runs
			(id, file_name, status, error, total_rows, duplicate_groups, exposure,
			 mapping, options, raw_headers, report, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			total_rows = EXCLUDED.total_rows,
			duplicate_groups = EXCLUDED.duplicate_groups,
			exposure = EXCLUDED.exposure,
			report = EXCLUDED.report,
			duration_ms = EXCLUDED.duration_ms`,
		rec.ID, rec.FileName, string(rec.Status), rec.Error,
		sum.TotalRows, sum.DuplicateGroups, exposure,
		mapping, options, headers, report, rec.DurationMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save analysis run: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, id string) (*Record, error) {
	var (
		rec              Record
		status           string
		mapping, options []byte
		report           []byte
	)

	err := p.pool.QueryRow(ctx, `
		SELECT id, file_name, status, error, mapping, options, raw_headers,
		       report, duration_ms, created_at
		FROM analysis_runs WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.FileName, &status, &rec.Error, &mapping, &options,
		&rec.RawHeaders, &report, &rec.DurationMs, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis run: %w", err)
	}

	rec.Status = Status(status)
	if err := json.Unmarshal(mapping, &rec.Mapping); err != nil {
		return nil, fmt.Errorf("decode mapping: %w", err)
	}
	if err := json.Unmarshal(options, &rec.Options); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	if len(report) > 0 {
		if err := json.Unmarshal(report, &rec.Report); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
	}
	return &rec, nil
}

func (p *Postgres) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, file_name, status, total_rows, duplicate_groups, exposure::text, created_at
		FROM analysis_runs
		ORDER BY created_at DESC, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list analysis runs: %w", err)
	}
	defer rows.Close()

	out := []RunSummary{}
	for rows.Next() {
		var (
			s        RunSummary
			status   string
			exposure string
		)
		if err := rows.Scan(&s.ID, &s.FileName, &status, &s.TotalRows,
			&s.DuplicateGroups, &exposure, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis run: %w", err)
		}
		s.Status = Status(status)
		if s.Exposure, err = decimal.NewFromString(exposure); err != nil {
			return nil, fmt.Errorf("parse exposure %q: %w", exposure, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list analysis runs: %w", err)
	}
	return out, nil
}

func (p *Postgres) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM analysis_runs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge analysis runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// toNumeric converts an exact decimal to pgtype.Numeric without going
// through float64.
func toNumeric(d decimal.Decimal) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return pgtype.Numeric{}, fmt.Errorf("convert %s to numeric: %w", d, err)
	}
	return n, nil
}
