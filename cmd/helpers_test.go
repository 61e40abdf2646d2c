//go:build !integration

package main

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/sells-group/motolens/internal/config"
	"github.com/sells-group/motolens/internal/enrich"
	"github.com/sells-group/motolens/internal/model"
	"github.com/sells-group/motolens/internal/pipeline"
	"github.com/sells-group/motolens/internal/resolve"
	"github.com/sells-group/motolens/pkg/vindecode"
)

const hondaVIN = "1HGCM82633A004352"

// stubProvider is a decoding provider with a fixed outcome.
type stubProvider struct {
	name    string
	vehicle *model.Vehicle
	err     error
	calls   atomic.Int32
}

func (s *stubProvider) Name() string    { return s.name }
func (s *stubProvider) Available() bool { return true }

func (s *stubProvider) Decode(_ context.Context, _ string) (*model.Vehicle, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.vehicle.Clone(), nil
}

// stubPredictor answers every prompt with a fixed reply or error.
type stubPredictor struct {
	reply string
	err   error
}

func (s *stubPredictor) Name() string { return "stub" }

func (s *stubPredictor) Predict(_ context.Context, _ enrich.Prompt) (string, error) {
	return s.reply, s.err
}

func hondaAccord() *model.Vehicle {
	return &model.Vehicle{
		VINValid:       true,
		Make:           "Honda",
		Model:          "Accord",
		Year:           2003,
		BodyType:       "Sedan",
		Engine:         "2.4L I4",
		SourceProvider: "nhtsa",
	}
}

// newTestService wires a real resolver over the given providers.
func newTestService(e pipeline.Enricher, providers ...vindecode.Provider) *pipeline.Service {
	return pipeline.New(resolve.New(providers), e)
}

// testConfig returns a configuration that passes Validate for every mode
// except the store-backed ones.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Log:    config.LogConfig{Level: "error", Format: "json"},
		Server: config.ServerConfig{Port: 8080},
		Resolve: config.ResolveConfig{
			Order:               []string{"nhtsa", "carapi"},
			AcceptanceThreshold: 70,
			RetryAttempts:       1,
		},
		Enrich: config.EnrichConfig{
			Enabled:             true,
			Backend:             config.BackendAnthropic,
			CacheTTLHours:       12,
			CacheSize:           100,
			BreakerThreshold:    3,
			BreakerCooldownSecs: 300,
			BreakerWindowSecs:   600,
		},
		Batch: config.BatchConfig{Concurrency: 2},
	}
}

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	c := testConfig(t)
	c.Store = config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "motolens.db")}
	return c
}
