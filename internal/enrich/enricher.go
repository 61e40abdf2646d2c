// Package enrich fills fields left absent after decoding with predictions
// from a generative backend, behind a TTL cache, a call-spacing gate and a
// rate-limit circuit breaker.
package enrich

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/motolens/internal/apierr"
	"github.com/sells-group/motolens/internal/model"
	"github.com/sells-group/motolens/internal/resilience"
)

// DefaultTimeout bounds a single generative call.
const DefaultTimeout = 30 * time.Second

// DefaultMinInterval is the process-wide spacing between generative calls.
const DefaultMinInterval = time.Second

// minCoreFields is how many of the core identity fields must be present for
// a record to skip enrichment.
const minCoreFields = 3

// Enricher is the enrichment stage. One instance owns its cache, breaker and
// gate; share it across requests.
type Enricher struct {
	predictor Predictor
	cache     *Cache
	breaker   *resilience.CircuitBreaker
	gate      *resilience.Gate
	timeout   time.Duration
	group     singleflight.Group
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithCache replaces the default in-memory cache.
func WithCache(c *Cache) Option {
	return func(e *Enricher) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(e *Enricher) {
		if cb != nil {
			e.breaker = cb
		}
	}
}

// WithGate replaces the default call-spacing gate.
func WithGate(g *resilience.Gate) Option {
	return func(e *Enricher) {
		if g != nil {
			e.gate = g
		}
	}
}

// WithTimeout bounds each generative call.
func WithTimeout(d time.Duration) Option {
	return func(e *Enricher) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewBreaker builds a breaker that trips on rate limits and logs transitions.
func NewBreaker(cfg resilience.CircuitBreakerConfig) *resilience.CircuitBreaker {
	if cfg.ShouldTrip == nil {
		cfg.ShouldTrip = resilience.IsRateLimited
	}
	if cfg.OnStateChange == nil {
		cfg.OnStateChange = func(from, to resilience.CircuitState) {
			zap.L().Warn("enrich: circuit breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
	}
	return resilience.NewCircuitBreaker(cfg)
}

// New creates an Enricher. A nil predictor disables generative calls; cached
// predictions are still applied.
func New(p Predictor, opts ...Option) *Enricher {
	e := &Enricher{
		predictor: p,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = NewCache(DefaultCacheSize, DefaultCacheTTL)
	}
	if e.breaker == nil {
		e.breaker = NewBreaker(resilience.FromCircuitConfig(0, 0, 0))
	}
	if e.gate == nil {
		e.gate = resilience.NewGate(DefaultMinInterval)
	}
	return e
}

// BreakerSnapshot reports the breaker state.
func (e *Enricher) BreakerSnapshot() resilience.CircuitSnapshot {
	snap := e.breaker.Snapshot()
	// Snapshot does not apply an elapsed cooldown; State does.
	if snap.IsOpen && e.breaker.State() == resilience.CircuitClosed {
		snap.State = resilience.CircuitClosed
		snap.StateName = snap.State.String()
		snap.IsOpen = false
		snap.OpenedAt = nil
	}
	return snap
}

// Cache returns the enricher's prediction cache.
func (e *Enricher) Cache() *Cache { return e.cache }

// ResetBreaker closes the breaker and clears its failure streak.
func (e *Enricher) ResetBreaker() resilience.CircuitSnapshot {
	e.breaker.Reset()
	zap.L().Info("enrich: breaker reset")
	return e.BreakerSnapshot()
}

// PurgeCache drops the in-memory predictions and returns how many were held.
func (e *Enricher) PurgeCache() int {
	n := e.cache.Purge()
	zap.L().Info("enrich: cache purged", zap.Int("entries", n))
	return n
}

// Enrich returns a copy of v with absent fields filled from predictions. It
// never fails; the outcome is recorded in the copy's Enrichment info.
func (e *Enricher) Enrich(ctx context.Context, v *model.Vehicle) *model.Vehicle {
	if v == nil {
		return nil
	}
	out := v.Clone()

	if coreFieldCount(out) >= minCoreFields {
		out.Enrichment = model.EnrichmentInfo{Status: model.EnrichmentNone, Reason: "sufficient"}
		return out
	}
	missing := out.MissingFields()
	if len(missing) == 0 {
		out.Enrichment = model.EnrichmentInfo{Status: model.EnrichmentNone, Reason: "complete"}
		return out
	}

	key := CacheKey(out)
	if entry, ok := e.cache.Get(ctx, key); ok {
		applied := merge(out, entry.Fields)
		out.Enrichment = model.EnrichmentInfo{Status: model.EnrichmentCached, Fields: applied}
		zap.L().Debug("enrich: cache hit", zap.String("vin", out.VIN), zap.String("key", key), zap.Strings("fields", applied))
		return out
	}

	if e.predictor == nil {
		out.Enrichment = model.EnrichmentInfo{Status: model.EnrichmentNone, Reason: "disabled"}
		return out
	}
	if err := e.breaker.Allow(); err != nil {
		out.Enrichment = model.EnrichmentInfo{Status: model.EnrichmentSkipped, Reason: "circuit open"}
		zap.L().Info("enrich: skipped, circuit open", zap.String("vin", out.VIN))
		return out
	}

	fields, err := e.predict(ctx, key, out, missing)
	if err != nil {
		code := apierr.KindOf(err).Code()
		out.Enrichment = model.EnrichmentInfo{Status: model.EnrichmentFailed, Reason: code}
		zap.L().Warn("enrich: prediction failed",
			zap.String("provider", e.predictor.Name()),
			zap.String("vin", out.VIN),
			zap.String("error_code", code),
			zap.Error(err),
		)
		return out
	}

	applied := merge(out, fields)
	out.Enrichment = model.EnrichmentInfo{Status: model.EnrichmentApplied, Fields: applied}
	zap.L().Info("enrich: prediction applied",
		zap.String("provider", e.predictor.Name()),
		zap.String("vin", out.VIN),
		zap.Strings("fields", applied),
	)
	return out
}

// predict performs one generative call per distinct (key, missing) pair in
// flight and caches the accepted fields.
func (e *Enricher) predict(ctx context.Context, key string, v *model.Vehicle, missing []string) (map[string]any, error) {
	flightKey := key + "#" + strings.Join(missing, ",")
	if key == "" {
		flightKey = ""
	}

	call := func() (any, error) {
		// A call that finished between our cache miss and here has already
		// stored its result.
		if entry, ok := e.cache.Get(ctx, key); ok {
			return entry.Fields, nil
		}
		if err := e.gate.Wait(ctx); err != nil {
			return nil, apierr.FromTransport(e.predictor.Name(), err)
		}

		cctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		text, err := e.predictor.Predict(cctx, BuildPrompt(v, missing))
		e.breaker.Record(err)
		if err != nil {
			return nil, err
		}
		zap.L().Debug("enrich: raw reply", zap.String("vin", v.VIN), zap.String("text", text))

		fields, err := ParsePrediction(e.predictor.Name(), text, missing)
		if err != nil {
			return nil, err
		}
		e.cache.Put(ctx, key, fields)
		return fields, nil
	}

	if flightKey == "" {
		res, err := call()
		if err != nil {
			return nil, err
		}
		return res.(map[string]any), nil
	}

	res, err, _ := e.group.Do(flightKey, call)
	if err != nil {
		return nil, err
	}
	return res.(map[string]any), nil
}

// merge writes fields into absent slots of v in canonical order and returns
// the names written.
func merge(v *model.Vehicle, fields map[string]any) []string {
	var applied []string
	for _, f := range model.EnrichableFields {
		val, ok := fields[f]
		if !ok || !v.IsAbsent(f) {
			continue
		}
		if v.SetField(f, val) {
			applied = append(applied, f)
		}
	}
	return applied
}

func coreFieldCount(v *model.Vehicle) int {
	n := 0
	for _, s := range []string{v.Make, v.Model, v.Engine, v.BodyType} {
		if !model.IsSentinel(s) {
			n++
		}
	}
	if v.Year > 0 {
		n++
	}
	return n
}
