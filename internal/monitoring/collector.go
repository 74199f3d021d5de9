// Package monitoring alerts on fetch failure and hosted-fallback rates
// computed from stored pages.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/advisor-scrape/internal/cost"
	"github.com/sells-group/advisor-scrape/internal/scrape"
	"github.com/sells-group/advisor-scrape/internal/store"
)

// MetricsSnapshot holds a point-in-time view of fetch health.
type MetricsSnapshot struct {
	Total     int     `json:"total"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	FailRate  float64 `json:"fail_rate"`

	// FallbackRate is the share of successes served by a hosted provider
	// instead of the local fetcher.
	FallbackRate float64 `json:"fallback_rate"`

	// EstimatedCostUSD is hosted provider spend estimated from content size.
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`

	Providers []store.ProviderStats `json:"providers"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// StatsSource abstracts the store method needed by the collector.
type StatsSource interface {
	PageStats(ctx context.Context, since time.Time) ([]store.ProviderStats, error)
}

// Collector gathers metrics from stored pages.
type Collector struct {
	source StatsSource
	calc   *cost.Calculator
}

// NewCollector creates a new metrics collector. A nil calc uses the default
// rates.
func NewCollector(source StatsSource, calc *cost.Calculator) *Collector {
	if calc == nil {
		calc = cost.NewCalculator(cost.DefaultRates())
	}
	return &Collector{source: source, calc: calc}
}

// Collect gathers a snapshot of fetch metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := time.Now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	stats, err := c.source.PageStats(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: page stats")
	}
	if stats == nil {
		stats = []store.ProviderStats{}
	}
	snap.Providers = stats

	var hosted int
	for _, ps := range stats {
		snap.Succeeded += ps.Success
		snap.Failed += ps.Failed
		if ps.Provider != "" && ps.Provider != scrape.ProviderLocal {
			hosted += ps.Success
		}
		snap.EstimatedCostUSD += c.calc.Provider(ps.Provider, ps.Success, ps.Chars)
	}
	snap.Total = snap.Succeeded + snap.Failed

	if snap.Total > 0 {
		snap.FailRate = float64(snap.Failed) / float64(snap.Total)
	}
	if snap.Succeeded > 0 {
		snap.FallbackRate = float64(hosted) / float64(snap.Succeeded)
	}

	return snap, nil
}
