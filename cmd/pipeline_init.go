package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/motolens/internal/config"
	"github.com/sells-group/motolens/internal/enrich"
	"github.com/sells-group/motolens/internal/pipeline"
	"github.com/sells-group/motolens/internal/resilience"
	"github.com/sells-group/motolens/internal/resolve"
	"github.com/sells-group/motolens/internal/store"
	anthropicpkg "github.com/sells-group/motolens/pkg/anthropic"
	"github.com/sells-group/motolens/pkg/gemini"
	"github.com/sells-group/motolens/pkg/vindecode"
)

// pipelineEnv holds the store, stages and service needed by the decode, batch
// and serve commands.
type pipelineEnv struct {
	Store    store.Store     // may be nil
	Resolver *resolve.Resolver
	Enricher *enrich.Enricher // nil when enrichment is disabled
	Service  *pipeline.Service
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates cfg for mode, opens the optional store and wires the
// resolver and enricher. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	var opts []resolve.Option
	opts = append(opts,
		resolve.WithThreshold(cfg.Resolve.AcceptanceThreshold),
		resolve.WithRetry(resilience.FromRetryConfig(cfg.Resolve.RetryAttempts, cfg.Resolve.RetryBackoffMs, 0)),
	)
	if st != nil {
		opts = append(opts, resolve.WithRecorder(st))
	}
	resolver := resolve.New(buildProviders(cfg), opts...)

	enricher, err := buildEnricher(ctx, cfg, st)
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return nil, err
	}

	// A nil *enrich.Enricher must not reach the service as a non-nil interface.
	svc := pipeline.New(resolver, nil)
	if enricher != nil {
		svc = pipeline.New(resolver, enricher)
	}

	zap.L().Info("pipeline ready",
		zap.Strings("providers", resolver.Providers()),
		zap.Int("threshold", resolver.Threshold()),
		zap.Bool("enrichment", enricher != nil),
		zap.String("store", cfg.Store.Driver),
	)

	return &pipelineEnv{
		Store:    st,
		Resolver: resolver,
		Enricher: enricher,
		Service:  svc,
	}, nil
}

// initStore opens and migrates the configured store. It returns (nil, nil)
// when no driver is configured.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, &store.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if st == nil {
		return nil, nil
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// buildProviders returns the decoding providers in resolve.order.
func buildProviders(c *config.Config) []vindecode.Provider {
	providers := make([]vindecode.Provider, 0, len(c.Resolve.Order))
	for _, name := range c.Resolve.Order {
		switch name {
		case "autodev":
			p := c.Providers.AutoDev
			providers = append(providers, vindecode.NewAutoDev(p.Key, providerOpts(p)...))
		case "nhtsa":
			providers = append(providers, vindecode.NewNHTSA(providerOpts(c.Providers.NHTSA)...))
		case "vindecodereu":
			p := c.Providers.VinDecoderEU
			providers = append(providers, vindecode.NewVinDecoderEU(p.Key, p.Secret, providerOpts(p)...))
		case "carapi":
			p := c.Providers.CarAPI
			providers = append(providers, vindecode.NewCarAPI(p.Key, providerOpts(p)...))
		default:
			zap.L().Warn("unknown provider in resolve.order", zap.String("provider", name))
		}
	}
	return providers
}

func providerOpts(p config.ProviderConfig) []vindecode.Option {
	var opts []vindecode.Option
	if p.BaseURL != "" {
		opts = append(opts, vindecode.WithBaseURL(p.BaseURL))
	}
	if p.TimeoutSecs > 0 {
		opts = append(opts, vindecode.WithTimeout(time.Duration(p.TimeoutSecs)*time.Second))
	}
	return opts
}

// buildPredictor returns the configured generative backend, or nil when its
// key is not set.
func buildPredictor(ctx context.Context, c *config.Config) (enrich.Predictor, error) {
	if c.BackendKey() == "" {
		zap.L().Debug("enrichment backend key not set, generative calls disabled",
			zap.String("backend", c.Enrich.Backend),
		)
		return nil, nil
	}

	switch c.Enrich.Backend {
	case config.BackendGemini:
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:  c.Gemini.Key,
			BaseURL: c.Gemini.BaseURL,
		})
		if err != nil {
			return nil, eris.Wrap(err, "init gemini")
		}
		return enrich.NewGeminiPredictor(client, c.Gemini.Model), nil
	default:
		client := anthropicpkg.NewClient(c.Anthropic.Key, anthropicpkg.WithBaseURL(c.Anthropic.BaseURL))
		return enrich.NewAnthropicPredictor(client, c.Anthropic.Model), nil
	}
}

// buildEnricher wires the enrichment stage. It returns nil when enrichment is
// disabled. The store, when present, backs the cache's durable tier.
func buildEnricher(ctx context.Context, c *config.Config, st store.Store) (*enrich.Enricher, error) {
	if !c.Enrich.Enabled {
		return nil, nil
	}

	predictor, err := buildPredictor(ctx, c)
	if err != nil {
		return nil, err
	}

	var cacheOpts []enrich.CacheOption
	if st != nil {
		cacheOpts = append(cacheOpts, enrich.WithDurable(st))
	}
	cache := enrich.NewCache(c.Enrich.CacheSize, time.Duration(c.Enrich.CacheTTLHours)*time.Hour, cacheOpts...)

	breaker := enrich.NewBreaker(resilience.FromCircuitConfig(
		c.Enrich.BreakerThreshold,
		c.Enrich.BreakerCooldownSecs,
		c.Enrich.BreakerWindowSecs,
	))

	opts := []enrich.Option{
		enrich.WithCache(cache),
		enrich.WithBreaker(breaker),
		enrich.WithGate(resilience.NewGate(time.Duration(c.Enrich.MinIntervalMs) * time.Millisecond)),
	}
	if c.Enrich.TimeoutSecs > 0 {
		opts = append(opts, enrich.WithTimeout(time.Duration(c.Enrich.TimeoutSecs)*time.Second))
	}
	return enrich.New(predictor, opts...), nil
}
