package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/advisor-scrape/internal/config"
	"github.com/sells-group/advisor-scrape/internal/scrape"
)

// testConfig returns a valid local-only config backed by a temp SQLite file.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "test.db")
	c.Scrape.Providers = []string{scrape.ProviderLocal}
	c.Scrape.TimeoutSecs = 5
	c.Scrape.VerifyTLS = true
	c.Scrape.MaxBodyBytes = 2 << 20
	c.Scrape.Retry = config.RetryConfig{
		MaxAttempts: 3,
		BackoffMs:   1,
		StatusCodes: []int{500, 502, 503, 504},
		Methods:     []string{"HEAD", "GET", "OPTIONS"},
	}
	c.Batch.MaxConcurrent = 2
	c.Server.Port = 8080
	c.Jina.BaseURL = "https://r.jina.ai"
	c.Firecrawl.BaseURL = "https://api.firecrawl.dev/v1"
	return c
}

// withConfig swaps the package-level cfg for the duration of the test.
func withConfig(t *testing.T, c *config.Config) {
	t.Helper()
	old := cfg
	cfg = c
	t.Cleanup(func() { cfg = old })
}

func testChain(t *testing.T, c *config.Config) *scrape.Chain {
	t.Helper()
	chain, err := buildChain(c)
	require.NoError(t, err)
	return chain
}

// pageServer serves a fixed HTML page at / and 503 at /down.
func pageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><script>var x;</script></head><body><h1>Acme</h1>
<p>Wealth   management</p></body></html>`))
	}))
	t.Cleanup(srv.Close)
	return srv
}
