// Package scrape tries content providers in order until one of them returns
// text for a URL.
package scrape

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/advisor-scrape/internal/fetch"
)

// Chain tries providers in a fixed order, returning the first success.
// A Chain holds no per-call state and is safe for concurrent use.
type Chain struct {
	matcher   *PathMatcher
	providers []Provider
}

// NewChain creates a Chain with the given path matcher (nil disables
// filtering) and providers. Providers are tried in the order given. Provider
// names must be unique.
func NewChain(matcher *PathMatcher, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, eris.New("scrape: at least one provider is required")
	}

	seen := make(map[string]struct{}, len(providers))
	for i, p := range providers {
		if p == nil {
			return nil, eris.Errorf("scrape: provider %d is nil", i)
		}
		name := p.Name()
		if _, dup := seen[name]; dup {
			return nil, eris.Errorf("scrape: duplicate provider %q", name)
		}
		seen[name] = struct{}{}
	}

	return &Chain{
		matcher:   matcher,
		providers: append([]Provider(nil), providers...),
	}, nil
}

// Names returns the provider names in chain order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Scrape returns the content of targetURL, or the aggregate failure message
// when every provider failed.
func (c *Chain) Scrape(ctx context.Context, targetURL string) string {
	return c.Run(ctx, targetURL).Text()
}

// Run tries each provider in order for a single URL. The first success ends
// the run; later providers are not called.
func (c *Chain) Run(ctx context.Context, targetURL string) Result {
	res := Result{URL: targetURL}

	if pattern, excluded := c.matcher.Match(targetURL); excluded {
		res.Excluded = true
		zap.L().Warn("scrape: url excluded",
			zap.String("url", targetURL),
			zap.String("pattern", pattern),
		)
		return res
	}

	for _, p := range c.providers {
		switch o := c.try(ctx, p, targetURL).(type) {
		case fetch.Success:
			res.OK = true
			res.Provider = p.Name()
			res.Content = o.Content
			return res
		case fetch.Failure:
			res.recordFailure(p.Name(), o.Reason)
		default:
			res.recordFailure(p.Name(), fmt.Sprintf("%s: unknown outcome %T", p.Name(), o))
		}
	}

	zap.L().Warn("scrape: all providers failed",
		zap.String("url", targetURL),
		zap.Strings("reasons", res.Reasons()),
	)
	return res
}

// try runs one provider and turns a construction error, a nil outcome or a
// panic into a Failure.
func (c *Chain) try(ctx context.Context, p Provider, targetURL string) (out fetch.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = fetch.Failure{
				Reason:   fmt.Sprintf("%s panicked: %v", p.Name(), r),
				Attempts: 1,
				Err:      eris.Errorf("scrape: provider %s panicked: %v", p.Name(), r),
			}
		}
	}()

	req, err := p.NewRequest(targetURL)
	if err != nil {
		return fetch.Failure{Reason: err.Error(), Attempts: 1, Err: err}
	}

	out = p.Fetch(ctx, req)
	if out == nil {
		err := eris.Errorf("scrape: provider %s returned no outcome", p.Name())
		return fetch.Failure{Reason: err.Error(), Attempts: 1, Err: err}
	}
	return out
}

// ScrapeAll runs the chain for each URL with at most maxConcurrent runs in
// flight. Results are returned in input order. Providers are still tried
// sequentially within each run.
func (c *Chain) ScrapeAll(ctx context.Context, urls []string, maxConcurrent int) []Result {
	results := make([]Result, len(urls))
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrent)

	for i, u := range urls {
		g.Go(func() error {
			results[i] = c.Run(ctx, u)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (r *Result) recordFailure(provider, reason string) {
	r.Attempts = append(r.Attempts, Attempt{Provider: provider, Reason: reason})
	zap.L().Debug("scrape: provider failed, trying next",
		zap.String("provider", provider),
		zap.String("url", r.URL),
		zap.String("reason", reason),
	)
}
