package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/advisor-scrape/internal/config"
	"github.com/sells-group/advisor-scrape/internal/fetch"
	"github.com/sells-group/advisor-scrape/internal/scrape"
	"github.com/sells-group/advisor-scrape/internal/store"
	"github.com/sells-group/advisor-scrape/pkg/firecrawl"
	"github.com/sells-group/advisor-scrape/pkg/jina"
)

// buildChain assembles the provider chain in configured order. Hosted
// providers without an API key are skipped.
func buildChain(c *config.Config) (*scrape.Chain, error) {
	reqOpts := []fetch.RequestOption{
		fetch.WithTimeout(c.Scrape.Timeout()),
		fetch.WithVerifyTLS(c.Scrape.VerifyTLS),
	}

	var providers []scrape.Provider
	for _, name := range c.Scrape.Providers {
		switch name {
		case scrape.ProviderLocal:
			exec := fetch.NewExecutor(
				fetch.WithRetryPolicy(c.Scrape.Retry.Policy()),
				fetch.WithMaxBodyBytes(c.Scrape.MaxBodyBytes),
			)
			providers = append(providers, scrape.NewLocalProvider(exec, reqOpts...))
		case scrape.ProviderJina:
			if c.Jina.Key == "" {
				zap.L().Debug("ADVISOR_JINA_KEY not set, jina provider disabled")
				continue
			}
			client := jina.NewClient(c.Jina.Key, jina.WithBaseURL(c.Jina.BaseURL))
			providers = append(providers, scrape.NewJinaProvider(client, reqOpts...))
		case scrape.ProviderFirecrawl:
			if c.Firecrawl.Key == "" {
				zap.L().Debug("ADVISOR_FIRECRAWL_KEY not set, firecrawl provider disabled")
				continue
			}
			client := firecrawl.NewClient(c.Firecrawl.Key, firecrawl.WithBaseURL(c.Firecrawl.BaseURL))
			providers = append(providers, scrape.NewFirecrawlProvider(client, reqOpts...))
		default:
			return nil, eris.Errorf("unknown provider %q", name)
		}
	}

	chain, err := scrape.NewChain(scrape.NewPathMatcher(c.Scrape.ExcludePaths), providers...)
	if err != nil {
		return nil, eris.Wrap(err, "build chain")
	}

	zap.L().Debug("scrape chain ready", zap.Strings("providers", chain.Names()))
	return chain, nil
}

// openStore connects to the configured store and applies migrations.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	sc := store.Config{
		Driver:         c.Store.Driver,
		DatabaseURL:    c.Store.DatabaseURL,
		ConnectRetries: c.Store.ConnectRetries,
	}
	if c.Store.MaxConns > 0 || c.Store.MinConns > 0 {
		sc.Pool = &store.PoolConfig{MaxConns: c.Store.MaxConns, MinConns: c.Store.MinConns}
	}

	st, err := store.Open(ctx, sc)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}
