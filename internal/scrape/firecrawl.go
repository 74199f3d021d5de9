package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/advisor-scrape/internal/fetch"
	"github.com/sells-group/advisor-scrape/internal/resilience"
	"github.com/sells-group/advisor-scrape/pkg/firecrawl"
)

// FirecrawlProvider fetches pages through Firecrawl's scrape API. It is the
// most expensive provider and usually sits last in the chain.
type FirecrawlProvider struct {
	client firecrawl.Client
	opts   []fetch.RequestOption
}

// NewFirecrawlProvider creates a FirecrawlProvider from a Firecrawl client.
func NewFirecrawlProvider(client firecrawl.Client, opts ...fetch.RequestOption) *FirecrawlProvider {
	return &FirecrawlProvider{client: client, opts: opts}
}

// Name implements Provider.
func (f *FirecrawlProvider) Name() string { return ProviderFirecrawl }

// NewRequest implements Provider.
func (f *FirecrawlProvider) NewRequest(targetURL string) (fetch.Request, error) {
	return fetch.NewRequest(targetURL, f.opts...)
}

// Fetch scrapes a single URL via Firecrawl.
func (f *FirecrawlProvider) Fetch(ctx context.Context, req fetch.Request) fetch.Outcome {
	ctx, stats := resilience.WithAttemptStats(ctx)
	ctx = resilience.WithAttemptTimeout(ctx, req.Timeout())

	resp, err := f.client.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:             req.URL(),
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
		Timeout:         int(req.Timeout().Milliseconds()),
	})
	if err != nil {
		return providerFailure(ProviderFirecrawl, req, stats, err)
	}
	if resp == nil || !resp.Success {
		err := eris.New("firecrawl: scrape not successful")
		if resp != nil && resp.Error != "" {
			err = eris.Errorf("firecrawl: scrape not successful: %s", resp.Error)
		}
		return providerFailure(ProviderFirecrawl, req, stats, err)
	}

	return fetch.Success{
		Content:    fetch.Normalize(resp.Data.Markdown),
		StatusCode: resp.Data.StatusCode,
		Attempts:   attemptCount(stats),
	}
}
