package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/motolens/internal/apierr"
	"github.com/sells-group/motolens/internal/model"
	"github.com/sells-group/motolens/internal/resilience"
)

// --- Predictor Mock ---

type mockPredictor struct {
	mock.Mock
}

func (m *mockPredictor) Name() string { return "mock" }

func (m *mockPredictor) Predict(ctx context.Context, p Prompt) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

// --- Durable cache fake ---

type memDurable struct {
	mu      sync.Mutex
	entries map[string]*model.EnrichmentCacheEntry
	gets    int
	puts    int
}

func newMemDurable() *memDurable {
	return &memDurable{entries: make(map[string]*model.EnrichmentCacheEntry)}
}

func (d *memDurable) GetPrediction(_ context.Context, key string, notBefore time.Time) (*model.EnrichmentCacheEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gets++
	e, ok := d.entries[key]
	if !ok || e.CreatedAt.Before(notBefore) {
		return nil, nil
	}
	return e, nil
}

func (d *memDurable) PutPrediction(_ context.Context, e *model.EnrichmentCacheEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.puts++
	d.entries[e.Key] = e
	return nil
}

// --- helpers ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const hondaVIN = "1HGCM82633A004352"

// sparseHonda has two core fields, so it is eligible for enrichment.
func sparseHonda() *model.Vehicle {
	return &model.Vehicle{
		VIN:            hondaVIN,
		VINValid:       true,
		WMI:            "1HG",
		Make:           "Honda",
		Year:           2003,
		Trim:           "EX",
		SourceProvider: "nhtsa",
	}
}

func rateLimitErr() error {
	return &apierr.Error{Kind: apierr.RateLimited, Provider: "mock", Status: 429}
}

// newTestEnricher disables spacing and uses an isolated breaker.
func newTestEnricher(p Predictor, clock *fakeClock, opts ...Option) *Enricher {
	cb := NewBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 3,
		Cooldown:         5 * time.Minute,
	}).WithClock(clock.Now)
	base := []Option{
		WithGate(resilience.NewGate(0)),
		WithBreaker(cb),
		WithCache(NewCache(100, time.Hour, WithCacheClock(clock.Now))),
	}
	return New(p, append(base, opts...)...)
}
