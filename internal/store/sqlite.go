package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/motolens/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Timestamps are
// stored as unix nanoseconds so range predicates compare numerically.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS enrichment_cache (
	cache_key  TEXT PRIMARY KEY,
	fields     TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS lookups (
	id         TEXT PRIMARY KEY,
	vin        TEXT NOT NULL,
	provider   TEXT NOT NULL DEFAULT '',
	score      INTEGER NOT NULL DEFAULT 0,
	error_code TEXT NOT NULL DEFAULT '',
	attempts   TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_enrichment_cache_created_at ON enrichment_cache(created_at);
CREATE INDEX IF NOT EXISTS idx_lookups_vin ON lookups(vin);
CREATE INDEX IF NOT EXISTS idx_lookups_created_at ON lookups(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetPrediction(ctx context.Context, key string, notBefore time.Time) (*model.EnrichmentCacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT cache_key, fields, created_at FROM enrichment_cache
		 WHERE cache_key = ? AND created_at >= ?`,
		key, notBefore.UnixNano(),
	)

	var (
		e      model.EnrichmentCacheEntry
		fields string
		nanos  int64
	)
	err := row.Scan(&e.Key, &fields, &nanos)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get prediction")
	}
	if e.Fields, err = unmarshalFields([]byte(fields)); err != nil {
		return nil, err
	}
	e.CreatedAt = time.Unix(0, nanos).UTC()
	return &e, nil
}

func (s *SQLiteStore) PutPrediction(ctx context.Context, entry *model.EnrichmentCacheEntry) error {
	fields, err := marshalFields(entry.Fields)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO enrichment_cache (cache_key, fields, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (cache_key) DO UPDATE SET fields = excluded.fields, created_at = excluded.created_at`,
		entry.Key, string(fields), entry.CreatedAt.UnixNano(),
	)
	return eris.Wrap(err, "sqlite: put prediction")
}

func (s *SQLiteStore) DeleteExpiredPredictions(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM enrichment_cache WHERE created_at < ?`,
		before.UnixNano(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired predictions")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) RecordLookup(ctx context.Context, rec *model.LookupRecord) error {
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
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO lookups (id, vin, provider, score, error_code, attempts, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.VIN, rec.Provider, rec.Score, rec.ErrorCode, string(attempts), rec.CreatedAt.UnixNano(),
	)
	return eris.Wrap(err, "sqlite: insert lookup")
}

func (s *SQLiteStore) ListLookups(ctx context.Context, filter LookupFilter) ([]model.LookupRecord, error) {
	query := `SELECT id, vin, provider, score, error_code, attempts, created_at FROM lookups WHERE 1=1`
	var args []any

	if filter.VIN != "" {
		query += ` AND vin = ?`
		args = append(args, filter.VIN)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limitOf(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list lookups")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.LookupRecord
	for rows.Next() {
		var (
			r        model.LookupRecord
			attempts string
			nanos    int64
		)
		if err := rows.Scan(&r.ID, &r.VIN, &r.Provider, &r.Score, &r.ErrorCode, &attempts, &nanos); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lookup")
		}
		if r.Attempts, err = unmarshalAttempts([]byte(attempts)); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(0, nanos).UTC()
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list lookups iterate")
}
