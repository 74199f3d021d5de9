package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/advisor-scrape/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver         string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL    string `yaml:"database_url" mapstructure:"database_url"`
	ConnectRetries int    `yaml:"connect_retries" mapstructure:"connect_retries"`
	MaxConns       int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns       int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// FirecrawlConfig holds Firecrawl API settings (fallback only).
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ScrapeConfig configures the provider chain and the local fetcher.
type ScrapeConfig struct {
	Providers    []string    `yaml:"providers" mapstructure:"providers"`
	TimeoutSecs  int         `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	VerifyTLS    bool        `yaml:"verify_tls" mapstructure:"verify_tls"`
	MaxBodyBytes int64       `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	ExcludePaths []string    `yaml:"exclude_paths" mapstructure:"exclude_paths"`
	Retry        RetryConfig `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig configures transport-level HTTP retries.
type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffMs   int      `yaml:"backoff_ms" mapstructure:"backoff_ms"`
	StatusCodes []int    `yaml:"status_codes" mapstructure:"status_codes"`
	Methods     []string `yaml:"methods" mapstructure:"methods"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ServerConfig configures the HTTP tool endpoint.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures failure-rate alerting over stored pages.
type MonitoringConfig struct {
	WebhookURL            string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold  float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	FallbackRateThreshold float64 `yaml:"fallback_rate_threshold" mapstructure:"fallback_rate_threshold"` // 0 disables
	CostThresholdUSD      float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`           // 0 disables
	MinSamples            int     `yaml:"min_samples" mapstructure:"min_samples"`
	CheckIntervalSecs     int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours   int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// PricingConfig holds hosted provider pricing used for cost estimates.
type PricingConfig struct {
	Jina      JinaPricing      `yaml:"jina" mapstructure:"jina"`
	Firecrawl FirecrawlPricing `yaml:"firecrawl" mapstructure:"firecrawl"`
}

// JinaPricing holds Jina Reader pricing.
type JinaPricing struct {
	PerMTok float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// FirecrawlPricing holds Firecrawl pricing.
type FirecrawlPricing struct {
	PlanMonthly     float64 `yaml:"plan_monthly" mapstructure:"plan_monthly"`
	CreditsIncluded float64 `yaml:"credits_included" mapstructure:"credits_included"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Timeout returns the per-attempt fetch timeout.
func (s ScrapeConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSecs) * time.Second
}

// Policy converts the retry settings to a RetryPolicy.
func (r RetryConfig) Policy() resilience.RetryPolicy {
	return resilience.FromPolicyConfig(r.MaxAttempts, r.BackoffMs, r.StatusCodes, r.Methods)
}

var knownProviders = map[string]bool{
	"local_http": true,
	"jina":       true,
	"firecrawl":  true,
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ADVISOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "advisor-scrape.db")
	v.SetDefault("store.connect_retries", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("batch.max_concurrent", 5)
	v.SetDefault("scrape.providers", []string{"local_http", "jina", "firecrawl"})
	v.SetDefault("scrape.timeout_secs", 15)
	v.SetDefault("scrape.verify_tls", true)
	v.SetDefault("scrape.max_body_bytes", 2<<20)
	v.SetDefault("scrape.exclude_paths", []string{})
	v.SetDefault("scrape.retry.max_attempts", 3)
	v.SetDefault("scrape.retry.backoff_ms", 100)
	v.SetDefault("scrape.retry.status_codes", []int{500, 502, 503, 504})
	v.SetDefault("scrape.retry.methods", []string{"HEAD", "GET", "OPTIONS"})
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_samples", 5)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("pricing.jina.per_mtok", 0.02)
	v.SetDefault("pricing.firecrawl.plan_monthly", 19.00)
	v.SetDefault("pricing.firecrawl.credits_included", 3000)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are
// "scrape", "batch", "serve" and "pages".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "scrape":
		errs = append(errs, c.validateScrape()...)
	case "batch":
		errs = append(errs, c.validateScrape()...)
		if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 50 {
			errs = append(errs, fmt.Sprintf("batch.max_concurrent must be between 1 and 50, got %d", c.Batch.MaxConcurrent))
		}
	case "serve":
		errs = append(errs, c.validateScrape()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server.port must be > 0 and <= 65535, got %d", c.Server.Port))
		}
		m := c.Monitoring
		if m.FailureRateThreshold < 0 || m.FailureRateThreshold > 1 {
			errs = append(errs, "monitoring.failure_rate_threshold must be between 0 and 1")
		}
		if m.FallbackRateThreshold < 0 || m.FallbackRateThreshold > 1 {
			errs = append(errs, "monitoring.fallback_rate_threshold must be between 0 and 1")
		}
		if m.CostThresholdUSD < 0 {
			errs = append(errs, "monitoring.cost_threshold_usd must be >= 0")
		}
		if m.WebhookURL != "" && m.LookbackWindowHours <= 0 {
			errs = append(errs, "monitoring.lookback_window_hours must be > 0 when webhook_url is set")
		}
	case "pages":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateScrape() []string {
	var errs []string

	if len(c.Scrape.Providers) == 0 {
		errs = append(errs, "scrape.providers must not be empty")
	}
	seen := make(map[string]bool, len(c.Scrape.Providers))
	for _, p := range c.Scrape.Providers {
		if !knownProviders[p] {
			errs = append(errs, fmt.Sprintf("scrape.providers: unknown provider %q", p))
		}
		if seen[p] {
			errs = append(errs, fmt.Sprintf("scrape.providers: duplicate provider %q", p))
		}
		seen[p] = true
	}

	if c.Scrape.TimeoutSecs <= 0 {
		errs = append(errs, "scrape.timeout_secs must be > 0")
	}
	if c.Scrape.MaxBodyBytes <= 0 {
		errs = append(errs, "scrape.max_body_bytes must be > 0")
	}
	if err := c.Scrape.Retry.rawPolicy().Validate(); err != nil {
		errs = append(errs, "scrape.retry: "+err.Error())
	}
	return errs
}

// rawPolicy is the configured policy before defaults are applied.
func (r RetryConfig) rawPolicy() resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts:   r.MaxAttempts,
		BackoffBase:   time.Duration(r.BackoffMs) * time.Millisecond,
		RetryStatuses: r.StatusCodes,
		RetryMethods:  r.Methods,
	}
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
