//go:build !integration

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/motolens/internal/model"
	"github.com/sells-group/motolens/internal/store"
)

func TestRootCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"decode", "batch", "serve", "history", "cache"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

// runRoot executes the CLI with a sqlite store at dbPath.
func runRoot(t *testing.T, dbPath string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("MOTOLENS_STORE_DRIVER", "sqlite")
	t.Setenv("MOTOLENS_STORE_DATABASE_URL", dbPath)
	t.Setenv("MOTOLENS_LOG_LEVEL", "error")

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func seedStore(t *testing.T, dbPath string) {
	t.Helper()
	ctx := context.Background()
	st, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	require.NoError(t, st.RecordLookup(ctx, &model.LookupRecord{
		VIN:      hondaVIN,
		Provider: "nhtsa",
		Score:    75,
		Attempts: []string{"autodev=CREDENTIALS_MISSING", "nhtsa=75"},
	}))
	require.NoError(t, st.PutPrediction(ctx, &model.EnrichmentCacheEntry{
		Key:       hondaVIN,
		Fields:    map[string]any{"trim": "EX"},
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}))
	require.NoError(t, st.PutPrediction(ctx, &model.EnrichmentCacheEntry{
		Key:       "2019|tesla|model 3",
		Fields:    map[string]any{"drivetrain": "RWD"},
		CreatedAt: time.Now(),
	}))
}

func TestHistoryCmd(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "motolens.db")
	seedStore(t, dbPath)

	out, _, err := runRoot(t, dbPath, "history", "--vin", hondaVIN)
	require.NoError(t, err)
	assert.Contains(t, out, "PROVIDER")
	assert.Contains(t, out, hondaVIN)
	assert.Contains(t, out, "autodev=CREDENTIALS_MISSING,nhtsa=75")
}

func TestHistoryCmd_Empty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "motolens.db")

	out, errOut, err := runRoot(t, dbPath, "history", "--vin", "5YJ3E1EA7KF317000")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "No lookups found.")
}

func TestCachePruneCmd(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "motolens.db")
	seedStore(t, dbPath)

	out, _, err := runRoot(t, dbPath, "cache", "prune")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1 expired predictions.")
}
