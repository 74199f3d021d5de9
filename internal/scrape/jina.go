package scrape

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/advisor-scrape/internal/fetch"
	"github.com/sells-group/advisor-scrape/internal/resilience"
	"github.com/sells-group/advisor-scrape/pkg/jina"
)

// minJinaContent is the shortest Jina response treated as real content.
const minJinaContent = 100

// JinaProvider fetches pages through the Jina Reader API. Only the request
// URL and timeout are used; headers and TLS settings are Jina's concern.
type JinaProvider struct {
	client jina.Client
	opts   []fetch.RequestOption
}

// NewJinaProvider creates a JinaProvider from a Jina client.
func NewJinaProvider(client jina.Client, opts ...fetch.RequestOption) *JinaProvider {
	return &JinaProvider{client: client, opts: opts}
}

// Name implements Provider.
func (j *JinaProvider) Name() string { return ProviderJina }

// NewRequest implements Provider.
func (j *JinaProvider) NewRequest(targetURL string) (fetch.Request, error) {
	return fetch.NewRequest(targetURL, j.opts...)
}

// Fetch reads the URL via Jina and validates the response.
func (j *JinaProvider) Fetch(ctx context.Context, req fetch.Request) fetch.Outcome {
	ctx, stats := resilience.WithAttemptStats(ctx)
	ctx = resilience.WithAttemptTimeout(ctx, req.Timeout())

	resp, err := j.client.Read(ctx, req.URL())
	if err != nil {
		return providerFailure(ProviderJina, req, stats, err)
	}

	if reason, fallback := needsFallback(resp); fallback {
		return providerFailure(ProviderJina, req, stats, eris.Errorf("jina: %s", reason))
	}

	return fetch.Success{
		Content:    fetch.Normalize(resp.Data.Content),
		StatusCode: http.StatusOK,
		Attempts:   attemptCount(stats),
	}
}

var challengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"cloudflare",
	"attention required",
}

// needsFallback checks whether a Jina response contains usable content or
// indicates the page is blocked or empty.
func needsFallback(resp *jina.ReadResponse) (string, bool) {
	if resp == nil {
		return "empty response", true
	}

	if resp.Code != 0 && resp.Code != http.StatusOK {
		return fmt.Sprintf("response code %d", resp.Code), true
	}

	content := strings.TrimSpace(resp.Data.Content)
	if len(content) < minJinaContent {
		return fmt.Sprintf("content too short (%d chars)", len(content)), true
	}

	// Long pages may mention these phrases legitimately.
	if len(content) < 1000 {
		lower := strings.ToLower(content)
		for _, sig := range challengeSignatures {
			if strings.Contains(lower, sig) {
				return fmt.Sprintf("challenge page (%q)", sig), true
			}
		}
	}

	return "", false
}

// providerFailure builds the Failure for an API-backed provider and logs it.
func providerFailure(provider string, req fetch.Request, stats *resilience.AttemptStats, err error) fetch.Failure {
	f := fetch.Failure{
		Reason:   fmt.Sprintf("%s %s: %v", provider, req.URL(), err),
		Retried:  stats.Retried(),
		Attempts: attemptCount(stats),
		Err:      err,
	}
	zap.L().Warn("scrape: provider failed",
		zap.String("provider", provider),
		zap.String("url", req.URL()),
		zap.Int("attempts", f.Attempts),
		zap.Bool("retried", f.Retried),
		zap.Error(err),
	)
	return f
}

// attemptCount reports at least one attempt; a mocked or failed-fast client
// may never reach the transport.
func attemptCount(stats *resilience.AttemptStats) int {
	if n := stats.Attempts(); n > 0 {
		return n
	}
	return 1
}
