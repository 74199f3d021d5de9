package scrape

import (
	"context"

	"github.com/sells-group/advisor-scrape/internal/fetch"
)

// LocalProvider fetches pages directly over HTTP with a fetch.Executor. It
// needs no API key and usually sits first in the chain.
type LocalProvider struct {
	exec *fetch.Executor
	opts []fetch.RequestOption
}

// NewLocalProvider creates a LocalProvider. opts are applied to every
// request it builds (timeout, TLS verification, header overrides).
func NewLocalProvider(exec *fetch.Executor, opts ...fetch.RequestOption) *LocalProvider {
	if exec == nil {
		exec = fetch.NewExecutor()
	}
	return &LocalProvider{exec: exec, opts: opts}
}

// Name implements Provider.
func (l *LocalProvider) Name() string { return ProviderLocal }

// NewRequest implements Provider.
func (l *LocalProvider) NewRequest(targetURL string) (fetch.Request, error) {
	return fetch.NewRequest(targetURL, l.opts...)
}

// Fetch implements Provider.
func (l *LocalProvider) Fetch(ctx context.Context, req fetch.Request) fetch.Outcome {
	return l.exec.Fetch(ctx, req)
}
