package enrich

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/sells-group/motolens/internal/model"
	"github.com/sells-group/motolens/internal/vin"
)

// DefaultCacheTTL is how long accepted predictions are reused.
const DefaultCacheTTL = 12 * time.Hour

// DefaultCacheSize bounds the in-memory tier.
const DefaultCacheSize = 10_000

// DurableCache is an optional second tier behind the in-memory LRU.
type DurableCache interface {
	GetPrediction(ctx context.Context, key string, notBefore time.Time) (*model.EnrichmentCacheEntry, error)
	PutPrediction(ctx context.Context, entry *model.EnrichmentCacheEntry) error
}

// CacheKey returns the identity key of v: the upper-cased VIN when it is
// well formed, else "year|make|model" lower-cased. It returns "" when v
// carries no identity at all.
func CacheKey(v *model.Vehicle) string {
	if v == nil {
		return ""
	}
	if vin.Valid(v.VIN) {
		return vin.Normalize(v.VIN)
	}
	mk, md := model.Clean(v.Make), model.Clean(v.Model)
	if v.Year <= 0 && mk == "" && md == "" {
		return ""
	}
	year := ""
	if v.Year > 0 {
		year = strconv.Itoa(v.Year)
	}
	return strings.ToLower(year + "|" + mk + "|" + md)
}

// Cache holds accepted prediction sets by identity key. Expired entries are
// evicted lazily on read and by the LRU's background sweep.
type Cache struct {
	lru     *expirable.LRU[string, *model.EnrichmentCacheEntry]
	durable DurableCache
	ttl     time.Duration
	now     func() time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithDurable adds a persistent tier consulted on in-memory misses.
func WithDurable(d DurableCache) CacheOption {
	return func(c *Cache) {
		c.durable = d
	}
}

// WithCacheClock sets the time source used for entry timestamps.
func WithCacheClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCache creates a cache with the given capacity and TTL. Non-positive
// values select the defaults.
func NewCache(size int, ttl time.Duration, opts ...CacheOption) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &Cache{
		lru: expirable.NewLRU[string, *model.EnrichmentCacheEntry](size, nil, ttl),
		ttl: ttl,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Len returns the number of in-memory entries.
func (c *Cache) Len() int { return c.lru.Len() }

// Get returns a fresh entry for key. Durable hits are promoted to memory.
func (c *Cache) Get(ctx context.Context, key string) (*model.EnrichmentCacheEntry, bool) {
	if key == "" {
		return nil, false
	}
	if e, ok := c.lru.Get(key); ok {
		if c.now().Sub(e.CreatedAt) < c.ttl {
			return e, true
		}
		c.lru.Remove(key)
	}
	if c.durable == nil {
		return nil, false
	}

	e, err := c.durable.GetPrediction(ctx, key, c.now().Add(-c.ttl))
	if err != nil {
		zap.L().Warn("enrich: durable cache read", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if e == nil {
		return nil, false
	}
	// Stored values round-trip through JSON; restore field types.
	fields := make(map[string]any, len(e.Fields))
	for k, v := range e.Fields {
		if val, ok := model.Coerce(k, v); ok {
			fields[k] = val
		}
	}
	e = &model.EnrichmentCacheEntry{Key: key, Fields: fields, CreatedAt: e.CreatedAt}
	c.lru.Add(key, e)
	return e, true
}

// Put stores fields under key, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, key string, fields map[string]any) *model.EnrichmentCacheEntry {
	e := &model.EnrichmentCacheEntry{Key: key, Fields: fields, CreatedAt: c.now().UTC()}
	if key == "" {
		return e
	}
	c.lru.Add(key, e)
	if c.durable != nil {
		if err := c.durable.PutPrediction(context.WithoutCancel(ctx), e); err != nil {
			zap.L().Warn("enrich: durable cache write", zap.String("key", key), zap.Error(err))
		}
	}
	return e
}

// Purge drops every in-memory entry and returns how many were dropped. The
// durable tier is untouched.
func (c *Cache) Purge() int {
	n := c.lru.Len()
	c.lru.Purge()
	return n
}
