package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/motolens/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

var baseTime = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

// --- Enrichment cache ---

func TestSQLite_Prediction_PutAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.PutPrediction(ctx, &model.EnrichmentCacheEntry{
		Key:       "1HGCM82633A004352",
		Fields:    map[string]any{"trim": "EX", "doors": 4},
		CreatedAt: baseTime,
	})
	require.NoError(t, err)

	got, err := st.GetPrediction(ctx, "1HGCM82633A004352", baseTime.Add(-time.Hour))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "EX", got.Fields["trim"])
	assert.Equal(t, float64(4), got.Fields["doors"])
	assert.True(t, baseTime.Equal(got.CreatedAt))
}

func TestSQLite_Prediction_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetPrediction(context.Background(), "nope", baseTime)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_Prediction_Stale(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutPrediction(ctx, &model.EnrichmentCacheEntry{Key: "k", Fields: map[string]any{}, CreatedAt: baseTime}))

	got, err := st.GetPrediction(ctx, "k", baseTime.Add(time.Second))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_Prediction_Upsert(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutPrediction(ctx, &model.EnrichmentCacheEntry{Key: "k", Fields: map[string]any{"trim": "LX"}, CreatedAt: baseTime}))
	require.NoError(t, st.PutPrediction(ctx, &model.EnrichmentCacheEntry{Key: "k", Fields: map[string]any{"trim": "EX"}, CreatedAt: baseTime.Add(time.Minute)}))

	got, err := st.GetPrediction(ctx, "k", baseTime)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "EX", got.Fields["trim"])
}

func TestSQLite_DeleteExpiredPredictions(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutPrediction(ctx, &model.EnrichmentCacheEntry{Key: "old", CreatedAt: baseTime.Add(-24 * time.Hour)}))
	require.NoError(t, st.PutPrediction(ctx, &model.EnrichmentCacheEntry{Key: "new", CreatedAt: baseTime}))

	n, err := st.DeleteExpiredPredictions(ctx, baseTime.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.GetPrediction(ctx, "new", baseTime.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got.Fields)
}

// --- Lookup log ---

func TestSQLite_Lookups_RecordAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for i, v := range []string{"1HGCM82633A004352", "5YJ3E1EA7KF317000", "1HGCM82633A004352"} {
		require.NoError(t, st.RecordLookup(ctx, &model.LookupRecord{
			VIN:       v,
			Provider:  "nhtsa",
			Score:     70 + i,
			Attempts:  []string{"autodev=CREDENTIALS_MISSING", "nhtsa=" + string(rune('0'+i))},
			CreatedAt: baseTime.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := st.ListLookups(ctx, LookupFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 72, all[0].Score, "newest first")
	assert.NotEmpty(t, all[0].ID)
	assert.Len(t, all[0].Attempts, 2)

	honda, err := st.ListLookups(ctx, LookupFilter{VIN: "1HGCM82633A004352"})
	require.NoError(t, err)
	assert.Len(t, honda, 2)

	page, err := st.ListLookups(ctx, LookupFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 71, page[0].Score)
}

func TestSQLite_RecordLookup_Defaults(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := &model.LookupRecord{VIN: "1HGCM82633A004352", ErrorCode: "ALL_PROVIDERS_FAILED"}
	require.NoError(t, st.RecordLookup(ctx, rec))
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := st.ListLookups(ctx, LookupFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ALL_PROVIDERS_FAILED", got[0].ErrorCode)
	assert.Empty(t, got[0].Attempts)
}

func TestOpen(t *testing.T) {
	st, err := Open(context.Background(), "", "", nil)
	require.NoError(t, err)
	assert.Nil(t, st)

	st, err = Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "x.db"), nil)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.NoError(t, st.Close())

	_, err = Open(context.Background(), "mysql", "", nil)
	assert.Error(t, err)
}
