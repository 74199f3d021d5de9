package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/advisor-scrape/internal/resilience"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func writeConfig(t *testing.T, dir string, doc map[string]any) {
	t.Helper()
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644))
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "advisor-scrape.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 3, cfg.Store.ConnectRetries)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 5, cfg.Batch.MaxConcurrent)
	assert.Equal(t, []string{"local_http", "jina", "firecrawl"}, cfg.Scrape.Providers)
	assert.Equal(t, 15, cfg.Scrape.TimeoutSecs)
	assert.True(t, cfg.Scrape.VerifyTLS)
	assert.Equal(t, int64(2097152), cfg.Scrape.MaxBodyBytes)
	assert.Empty(t, cfg.Scrape.ExcludePaths)
	assert.Equal(t, 3, cfg.Scrape.Retry.MaxAttempts)
	assert.Equal(t, 100, cfg.Scrape.Retry.BackoffMs)
	assert.Equal(t, []int{500, 502, 503, 504}, cfg.Scrape.Retry.StatusCodes)
	assert.Equal(t, []string{"HEAD", "GET", "OPTIONS"}, cfg.Scrape.Retry.Methods)
	assert.Equal(t, "https://r.jina.ai", cfg.Jina.BaseURL)
	assert.Equal(t, "https://api.firecrawl.dev/v1", cfg.Firecrawl.BaseURL)
	assert.Empty(t, cfg.Jina.Key)
	assert.Empty(t, cfg.Firecrawl.Key)
	assert.Empty(t, cfg.Monitoring.WebhookURL)
	assert.InDelta(t, 0.25, cfg.Monitoring.FailureRateThreshold, 0.001)
	assert.Zero(t, cfg.Monitoring.FallbackRateThreshold)
	assert.Equal(t, 5, cfg.Monitoring.MinSamples)
	assert.Equal(t, 300, cfg.Monitoring.CheckIntervalSecs)
	assert.Equal(t, 24, cfg.Monitoring.LookbackWindowHours)
	assert.Zero(t, cfg.Monitoring.CostThresholdUSD)
	assert.InDelta(t, 0.02, cfg.Pricing.Jina.PerMTok, 0.001)
	assert.InDelta(t, 19.0, cfg.Pricing.Firecrawl.PlanMonthly, 0.001)
	assert.InDelta(t, 3000, cfg.Pricing.Firecrawl.CreditsIncluded, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)
	writeConfig(t, dir, map[string]any{
		"store": map[string]any{"driver": "postgres", "database_url": "postgres://localhost/test"},
		"log":   map[string]any{"level": "debug", "format": "console"},
		"scrape": map[string]any{
			"providers":     []string{"jina", "local_http"},
			"timeout_secs":  5,
			"verify_tls":    false,
			"exclude_paths": []string{"/login", "/cart/*"},
			"retry":         map[string]any{"max_attempts": 5, "backoff_ms": 250},
		},
		"batch": map[string]any{"max_concurrent": 10},
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/test", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, []string{"jina", "local_http"}, cfg.Scrape.Providers)
	assert.Equal(t, 5, cfg.Scrape.TimeoutSecs)
	assert.False(t, cfg.Scrape.VerifyTLS)
	assert.Equal(t, []string{"/login", "/cart/*"}, cfg.Scrape.ExcludePaths)
	assert.Equal(t, 5, cfg.Scrape.Retry.MaxAttempts)
	assert.Equal(t, 250, cfg.Scrape.Retry.BackoffMs)
	assert.Equal(t, 10, cfg.Batch.MaxConcurrent)
	// Defaults still apply for unset values
	assert.Equal(t, []int{500, 502, 503, 504}, cfg.Scrape.Retry.StatusCodes)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	writeConfig(t, dir, map[string]any{
		"store": map[string]any{"driver": "sqlite"},
		"log":   map[string]any{"level": "debug"},
	})

	t.Setenv("ADVISOR_STORE_DRIVER", "postgres")
	t.Setenv("ADVISOR_LOG_LEVEL", "warn")
	t.Setenv("ADVISOR_JINA_KEY", "jina-key")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "jina-key", cfg.Jina.Key)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("ADVISOR_SERVER_PORT", "3000")
	t.Setenv("ADVISOR_SCRAPE_TIMEOUT_SECS", "30")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Scrape.TimeoutSecs)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func TestScrapeTimeout(t *testing.T) {
	assert.Equal(t, 15*time.Second, ScrapeConfig{TimeoutSecs: 15}.Timeout())
}

func TestRetryPolicy(t *testing.T) {
	p := RetryConfig{MaxAttempts: 4, BackoffMs: 50, StatusCodes: []int{429}, Methods: []string{"GET"}}.Policy()
	assert.Equal(t, 4, p.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, p.BackoffBase)
	assert.Equal(t, []int{429}, p.RetryStatuses)
	assert.Equal(t, []string{"GET"}, p.RetryMethods)

	// Zero values fall back to the default policy.
	assert.Equal(t, resilience.DefaultRetryPolicy(), RetryConfig{}.Policy())
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "advisor-scrape.db"
	cfg.Scrape.Providers = []string{"local_http", "jina", "firecrawl"}
	cfg.Scrape.TimeoutSecs = 15
	cfg.Scrape.MaxBodyBytes = 2 << 20
	cfg.Scrape.Retry = RetryConfig{MaxAttempts: 3, BackoffMs: 100, StatusCodes: []int{500, 502, 503, 504}}
	cfg.Batch.MaxConcurrent = 5
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateScrape_Defaults(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("scrape"))
}

func TestValidateScrape_Providers(t *testing.T) {
	cfg := validDefaults()
	cfg.Scrape.Providers = nil
	err := cfg.Validate("scrape")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scrape.providers must not be empty")

	cfg.Scrape.Providers = []string{"local_http", "curl"}
	err = cfg.Validate("scrape")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "curl"`)

	cfg.Scrape.Providers = []string{"jina", "jina"}
	err = cfg.Validate("scrape")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate provider "jina"`)
}

func TestValidateScrape_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Scrape.TimeoutSecs = 0
	cfg.Scrape.MaxBodyBytes = 0
	cfg.Scrape.Retry.MaxAttempts = 0
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("scrape")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scrape.timeout_secs must be > 0")
	assert.Contains(t, err.Error(), "scrape.max_body_bytes must be > 0")
	assert.Contains(t, err.Error(), "scrape.retry: retry policy: max attempts must be between 1 and 10")
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateScrape_InvalidStatusCode(t *testing.T) {
	cfg := validDefaults()
	cfg.Scrape.Retry.StatusCodes = []int{503, 999}

	err := cfg.Validate("scrape")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status code 999")
}

func TestValidateStoreDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("pages")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver must be sqlite or postgres, got "mysql"`)
}

func TestValidatePages_IgnoresScrapeSettings(t *testing.T) {
	cfg := validDefaults()
	cfg.Scrape.Providers = nil
	cfg.Server.Port = 0

	assert.NoError(t, cfg.Validate("pages"))
}

func TestValidateServe_ValidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 9090

	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate("serve"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.MaxConcurrent = 0
	err := cfg.Validate("batch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch.max_concurrent must be between 1 and 50")

	cfg.Batch.MaxConcurrent = 51
	err = cfg.Validate("batch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch.max_concurrent must be between 1 and 50")

	cfg.Batch.MaxConcurrent = 50
	assert.NoError(t, cfg.Validate("batch"))

	// Only batch mode checks concurrency.
	cfg.Batch.MaxConcurrent = 0
	assert.NoError(t, cfg.Validate("scrape"))
}

func TestValidateServe_MonitoringThresholds(t *testing.T) {
	cfg := validDefaults()

	cfg.Monitoring.FailureRateThreshold = 1.5
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring.failure_rate_threshold")

	cfg.Monitoring.FailureRateThreshold = 0.25
	cfg.Monitoring.FallbackRateThreshold = -0.1
	err = cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring.fallback_rate_threshold")

	cfg.Monitoring.FallbackRateThreshold = 0
	cfg.Monitoring.CostThresholdUSD = -1
	err = cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring.cost_threshold_usd must be >= 0")

	cfg.Monitoring.CostThresholdUSD = 0
	cfg.Monitoring.WebhookURL = "https://hooks.example.com/alerts"
	err = cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring.lookback_window_hours must be > 0")

	cfg.Monitoring.LookbackWindowHours = 24
	assert.NoError(t, cfg.Validate("serve"))
}
