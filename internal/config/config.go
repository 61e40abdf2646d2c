package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	Resolve   ResolveConfig   `yaml:"resolve" mapstructure:"resolve"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// StoreConfig configures the optional database backend. An empty driver
// disables persistence.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ProviderConfig holds one decoding vendor's credentials and endpoint.
type ProviderConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Secret      string `yaml:"secret" mapstructure:"secret"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ProvidersConfig groups the decoding vendors.
type ProvidersConfig struct {
	AutoDev      ProviderConfig `yaml:"autodev" mapstructure:"autodev"`
	NHTSA        ProviderConfig `yaml:"nhtsa" mapstructure:"nhtsa"`
	VinDecoderEU ProviderConfig `yaml:"vindecodereu" mapstructure:"vindecodereu"`
	CarAPI       ProviderConfig `yaml:"carapi" mapstructure:"carapi"`
}

// ResolveConfig configures the provider cascade.
type ResolveConfig struct {
	Order               []string `yaml:"order" mapstructure:"order"`
	AcceptanceThreshold int      `yaml:"acceptance_threshold" mapstructure:"acceptance_threshold"`
	RetryAttempts       int      `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs      int      `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// EnrichConfig configures the generative enrichment stage.
type EnrichConfig struct {
	Enabled             bool   `yaml:"enabled" mapstructure:"enabled"`
	Backend             string `yaml:"backend" mapstructure:"backend"`
	CacheTTLHours       int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	CacheSize           int    `yaml:"cache_size" mapstructure:"cache_size"`
	BreakerThreshold    int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int    `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
	BreakerWindowSecs   int    `yaml:"breaker_window_secs" mapstructure:"breaker_window_secs"`
	MinIntervalMs       int    `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	TimeoutSecs         int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// BatchConfig configures batch decoding.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ProviderNames lists the decoding providers Resolve.Order may name.
var ProviderNames = []string{"autodev", "nhtsa", "vindecodereu", "carapi"}

// Enrichment backends.
const (
	BackendAnthropic = "anthropic"
	BackendGemini    = "gemini"
)

// Load reads configuration from .env, config.yaml and MOTOLENS_* environment
// variables, in increasing precedence.
func Load() (*Config, error) {
	// .env is optional and never overrides variables already set.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MOTOLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("store.driver", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("providers.autodev.key", "")
	v.SetDefault("providers.autodev.base_url", "https://auto.dev/api/vin")
	v.SetDefault("providers.autodev.timeout_secs", 15)
	v.SetDefault("providers.nhtsa.base_url", "https://vpic.nhtsa.dot.gov/api/vehicles")
	v.SetDefault("providers.nhtsa.timeout_secs", 30)
	v.SetDefault("providers.vindecodereu.key", "")
	v.SetDefault("providers.vindecodereu.secret", "")
	v.SetDefault("providers.vindecodereu.base_url", "https://api.vindecoder.eu/3.2")
	v.SetDefault("providers.vindecodereu.timeout_secs", 20)
	v.SetDefault("providers.carapi.key", "")
	v.SetDefault("providers.carapi.base_url", "https://carapi.app/api/vin")
	v.SetDefault("providers.carapi.timeout_secs", 15)
	v.SetDefault("resolve.order", ProviderNames)
	v.SetDefault("resolve.acceptance_threshold", 70)
	v.SetDefault("resolve.retry_attempts", 1)
	v.SetDefault("resolve.retry_backoff_ms", 250)
	v.SetDefault("enrich.enabled", true)
	v.SetDefault("enrich.backend", BackendAnthropic)
	v.SetDefault("enrich.cache_ttl_hours", 12)
	v.SetDefault("enrich.cache_size", 10000)
	v.SetDefault("enrich.breaker_threshold", 3)
	v.SetDefault("enrich.breaker_cooldown_secs", 300)
	v.SetDefault("enrich.breaker_window_secs", 600)
	v.SetDefault("enrich.min_interval_ms", 1000)
	v.SetDefault("enrich.timeout_secs", 30)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("batch.concurrency", 4)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks ranges and names for the given command mode: "decode",
// "batch", "serve", "history" or "cache".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "decode":
	case "batch":
		if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 32 {
			errs = append(errs, "batch.concurrency must be between 1 and 32")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	case "history", "cache":
		if c.Store.Driver == "" || c.Store.Driver == "none" {
			errs = append(errs, "store.driver is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "", "none", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}

	errs = append(errs, c.validateResolve()...)
	errs = append(errs, c.validateEnrich()...)

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateResolve() []string {
	var errs []string
	if len(c.Resolve.Order) == 0 {
		errs = append(errs, "resolve.order must name at least one provider")
	}
	seen := make(map[string]bool, len(c.Resolve.Order))
	for _, name := range c.Resolve.Order {
		if !knownProvider(name) {
			errs = append(errs, fmt.Sprintf("resolve.order: unknown provider %q", name))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Sprintf("resolve.order: duplicate provider %q", name))
		}
		seen[name] = true
	}
	if c.Resolve.AcceptanceThreshold < 1 || c.Resolve.AcceptanceThreshold > 100 {
		errs = append(errs, "resolve.acceptance_threshold must be between 1 and 100")
	}
	if c.Resolve.RetryAttempts < 1 || c.Resolve.RetryAttempts > 5 {
		errs = append(errs, "resolve.retry_attempts must be between 1 and 5")
	}
	return errs
}

func (c *Config) validateEnrich() []string {
	var errs []string
	switch c.Enrich.Backend {
	case BackendAnthropic, BackendGemini:
	default:
		errs = append(errs, fmt.Sprintf("enrich.backend %q must be anthropic or gemini", c.Enrich.Backend))
	}
	if c.Enrich.CacheTTLHours < 1 || c.Enrich.CacheTTLHours > 168 {
		errs = append(errs, "enrich.cache_ttl_hours must be between 1 and 168")
	}
	if c.Enrich.CacheSize < 1 {
		errs = append(errs, "enrich.cache_size must be >= 1")
	}
	if c.Enrich.BreakerThreshold < 1 {
		errs = append(errs, "enrich.breaker_threshold must be >= 1")
	}
	if c.Enrich.BreakerCooldownSecs < 1 {
		errs = append(errs, "enrich.breaker_cooldown_secs must be >= 1")
	}
	if c.Enrich.BreakerWindowSecs < 0 {
		errs = append(errs, "enrich.breaker_window_secs must be >= 0")
	}
	if c.Enrich.MinIntervalMs < 0 {
		errs = append(errs, "enrich.min_interval_ms must be >= 0")
	}
	return errs
}

// BackendKey returns the API key of the configured enrichment backend.
func (c *Config) BackendKey() string {
	if c.Enrich.Backend == BackendGemini {
		return c.Gemini.Key
	}
	return c.Anthropic.Key
}

func knownProvider(name string) bool {
	for _, n := range ProviderNames {
		if n == name {
			return true
		}
	}
	return false
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
