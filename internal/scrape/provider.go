package scrape

import (
	"context"
	"fmt"

	"github.com/sells-group/advisor-scrape/internal/fetch"
	"github.com/sells-group/advisor-scrape/internal/model"
)

// Provider names used in configuration and results.
const (
	ProviderLocal     = "local_http"
	ProviderJina      = "jina"
	ProviderFirecrawl = "firecrawl"
)

// Provider is one way of fetching a URL. The chain builds a request with the
// provider's own settings and hands it back to Fetch.
type Provider interface {
	Name() string
	NewRequest(targetURL string) (fetch.Request, error)
	Fetch(ctx context.Context, req fetch.Request) fetch.Outcome
}

// Attempt records why one provider failed.
type Attempt struct {
	Provider string
	Reason   string
}

// Result is the outcome of one chain run.
type Result struct {
	URL      string
	Provider string // provider that succeeded, empty on failure
	Content  string
	OK       bool
	Excluded bool // rejected by the path filter before any provider ran
	Attempts []Attempt
}

// Text returns the fetched content, or the aggregate failure message when
// every provider failed.
func (r Result) Text() string {
	if r.OK {
		return r.Content
	}
	return FailureMessage(r.URL)
}

// Reasons returns the per-provider failure reasons in chain order.
func (r Result) Reasons() []string {
	reasons := make([]string, len(r.Attempts))
	for i, a := range r.Attempts {
		reasons[i] = a.Provider + ": " + a.Reason
	}
	return reasons
}

// FailureMessage is the text returned when no provider produced content.
func FailureMessage(targetURL string) string {
	return fmt.Sprintf("Failed to scrape %s: all providers failed", targetURL)
}

// Page converts r to a record for the store. ID and FetchedAt are left for
// the store to assign.
func (r Result) Page() model.ScrapedPage {
	page := model.ScrapedPage{
		URL:      r.URL,
		Provider: r.Provider,
		Content:  r.Content,
		Success:  r.OK,
	}
	if !r.OK {
		page.Error = r.Text()
	}
	return page
}
