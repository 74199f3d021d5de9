package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/advisor-scrape/internal/cost"
	"github.com/sells-group/advisor-scrape/internal/store"
)

// mockSource implements StatsSource for testing.
type mockSource struct {
	stats []store.ProviderStats
	err   error
	since time.Time
}

func (m *mockSource) PageStats(_ context.Context, since time.Time) ([]store.ProviderStats, error) {
	m.since = since
	return m.stats, m.err
}

func TestCollector_Collect(t *testing.T) {
	src := &mockSource{stats: []store.ProviderStats{
		{Provider: "", Failed: 2},
		{Provider: "firecrawl", Success: 1, Chars: 500},
		{Provider: "jina", Success: 1, Chars: 4000000},
		{Provider: "local_http", Success: 6, Chars: 9000},
	}}

	snap, err := NewCollector(src, nil).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 10, snap.Total)
	assert.Equal(t, 8, snap.Succeeded)
	assert.Equal(t, 2, snap.Failed)
	assert.InDelta(t, 0.2, snap.FailRate, 0.001)
	assert.InDelta(t, 0.25, snap.FallbackRate, 0.001)
	// 1M jina tokens at $0.02 plus one firecrawl credit.
	assert.InDelta(t, 0.02+19.0/3000, snap.EstimatedCostUSD, 0.0001)
	assert.Len(t, snap.Providers, 4)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.False(t, snap.CollectedAt.IsZero())
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), src.since, time.Minute)
}

func TestCollector_Collect_Empty(t *testing.T) {
	snap, err := NewCollector(&mockSource{}, nil).Collect(context.Background(), 1)
	require.NoError(t, err)

	assert.Zero(t, snap.Total)
	assert.Zero(t, snap.FailRate)
	assert.Zero(t, snap.FallbackRate)
	assert.NotNil(t, snap.Providers)
}

func TestCollector_Collect_AllFailed(t *testing.T) {
	src := &mockSource{stats: []store.ProviderStats{{Provider: "", Failed: 4}}}

	snap, err := NewCollector(src, nil).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, snap.FailRate, 0.001)
	assert.Zero(t, snap.FallbackRate)
}

func TestCollector_Collect_Error(t *testing.T) {
	src := &mockSource{err: errors.New("db down")}

	_, err := NewCollector(src, nil).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: page stats")
}

func TestCollector_Collect_CustomRates(t *testing.T) {
	src := &mockSource{stats: []store.ProviderStats{{Provider: "firecrawl", Success: 10}}}
	calc := cost.NewCalculator(cost.Rates{Firecrawl: cost.FirecrawlRate{PlanMonthly: 100, CreditsIncluded: 100}})

	snap, err := NewCollector(src, calc).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, snap.EstimatedCostUSD, 0.0001)
}
