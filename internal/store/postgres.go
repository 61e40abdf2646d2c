package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/motolens/internal/db"
	"github.com/sells-group/motolens/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"get_prediction": `SELECT cache_key, fields, created_at FROM enrichment_cache WHERE cache_key = $1 AND created_at >= $2`,
	"put_prediction": `INSERT INTO enrichment_cache (cache_key, fields, created_at) VALUES ($1, $2, $3) ON CONFLICT (cache_key) DO UPDATE SET fields = $2, created_at = $3`,
	"insert_lookup":  `INSERT INTO lookups (id, vin, provider, score, error_code, attempts, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS enrichment_cache (
	cache_key  TEXT PRIMARY KEY,
	fields     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS lookups (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	vin        TEXT NOT NULL,
	provider   TEXT NOT NULL DEFAULT '',
	score      INTEGER NOT NULL DEFAULT 0,
	error_code TEXT NOT NULL DEFAULT '',
	attempts   JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_enrichment_cache_created_at ON enrichment_cache(created_at);
CREATE INDEX IF NOT EXISTS idx_lookups_vin_created ON lookups(vin, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_lookups_created_at ON lookups(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetPrediction(ctx context.Context, key string, notBefore time.Time) (*model.EnrichmentCacheEntry, error) {
	var (
		e      model.EnrichmentCacheEntry
		fields []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT cache_key, fields, created_at FROM enrichment_cache
		 WHERE cache_key = $1 AND created_at >= $2`,
		key, notBefore.UTC(),
	).Scan(&e.Key, &fields, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get prediction")
	}
	if e.Fields, err = unmarshalFields(fields); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) PutPrediction(ctx context.Context, entry *model.EnrichmentCacheEntry) error {
	fields, err := marshalFields(entry.Fields)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO enrichment_cache (cache_key, fields, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (cache_key) DO UPDATE SET fields = $2, created_at = $3`,
		entry.Key, fields, entry.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: put prediction")
}

func (s *PostgresStore) DeleteExpiredPredictions(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM enrichment_cache WHERE created_at < $1`,
		before.UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired predictions")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) RecordLookup(ctx context.Context, rec *model.LookupRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	attempts, err := marshalAttempts(rec.Attempts)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO lookups (id, vin, provider, score, error_code, attempts, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.VIN, rec.Provider, rec.Score, rec.ErrorCode, attempts, rec.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert lookup")
}

func (s *PostgresStore) ListLookups(ctx context.Context, filter LookupFilter) ([]model.LookupRecord, error) {
	query := `SELECT id, vin, provider, score, error_code, attempts, created_at FROM lookups WHERE 1=1`
	var args []any
	argN := 1

	if filter.VIN != "" {
		query += fmt.Sprintf(` AND vin = $%d`, argN)
		args = append(args, filter.VIN)
		argN++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argN)
	args = append(args, limitOf(filter))
	argN++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list lookups")
	}
	defer rows.Close()

	var out []model.LookupRecord
	for rows.Next() {
		var (
			r        model.LookupRecord
			attempts []byte
		)
		if err := rows.Scan(&r.ID, &r.VIN, &r.Provider, &r.Score, &r.ErrorCode, &attempts, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lookup")
		}
		if r.Attempts, err = unmarshalAttempts(attempts); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list lookups iterate")
}
