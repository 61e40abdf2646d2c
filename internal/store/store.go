// Package store persists the durable enrichment cache tier and the lookup
// audit log.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/motolens/internal/model"
)

// LookupFilter specifies criteria for listing lookups.
type LookupFilter struct {
	VIN    string `json:"vin,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// DefaultListLimit applies when a filter leaves Limit unset.
const DefaultListLimit = 100

// Store defines the persistence interface for motolens.
type Store interface {
	// Enrichment cache
	GetPrediction(ctx context.Context, key string, notBefore time.Time) (*model.EnrichmentCacheEntry, error)
	PutPrediction(ctx context.Context, entry *model.EnrichmentCacheEntry) error
	DeleteExpiredPredictions(ctx context.Context, before time.Time) (int, error)

	// Lookup log
	RecordLookup(ctx context.Context, rec *model.LookupRecord) error
	ListLookups(ctx context.Context, filter LookupFilter) ([]model.LookupRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the named driver. An empty driver returns (nil, nil):
// the store is optional.
func Open(ctx context.Context, driver, databaseURL string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		if databaseURL == "" {
			databaseURL = "motolens.db"
		}
		st, err := NewSQLite(databaseURL)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := NewPostgres(ctx, databaseURL, poolCfg)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("store: unsupported driver: %s", driver)
	}
}

func limitOf(f LookupFilter) int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

func marshalFields(fields map[string]any) ([]byte, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	b, err := json.Marshal(fields)
	return b, eris.Wrap(err, "store: marshal fields")
}

func unmarshalFields(b []byte) (map[string]any, error) {
	fields := map[string]any{}
	if len(b) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal fields")
	}
	return fields, nil
}

func marshalAttempts(a []string) ([]byte, error) {
	if a == nil {
		a = []string{}
	}
	b, err := json.Marshal(a)
	return b, eris.Wrap(err, "store: marshal attempts")
}

func unmarshalAttempts(b []byte) ([]string, error) {
	var a []string
	if len(b) == 0 {
		return []string{}, nil
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal attempts")
	}
	return a, nil
}
