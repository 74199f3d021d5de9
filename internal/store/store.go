// Package store persists scraped pages for callers of the scrape chain.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/advisor-scrape/internal/model"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const pageStatsQuery = `SELECT provider,
	SUM(CASE WHEN success THEN 1 ELSE 0 END),
	SUM(CASE WHEN success THEN 0 ELSE 1 END),
	COALESCE(SUM(LENGTH(content)), 0)
FROM scraped_pages WHERE fetched_at >= %s GROUP BY provider ORDER BY provider`

// DefaultListLimit caps ListPages when the filter sets no limit.
const DefaultListLimit = 100

// PageFilter specifies criteria for listing pages.
type PageFilter struct {
	URL         string `json:"url,omitempty"`
	Provider    string `json:"provider,omitempty"`
	SuccessOnly bool   `json:"success_only,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

// ProviderStats counts stored fetch results for one provider. Failed
// fetches have no provider and are grouped under "".
type ProviderStats struct {
	Provider string `json:"provider"`
	Success  int    `json:"success"`
	Failed   int    `json:"failed"`
	Chars    int    `json:"chars"` // total content length
}

// Store defines the persistence interface for scraped pages.
type Store interface {
	// SavePage inserts page, assigning ID and FetchedAt when empty.
	SavePage(ctx context.Context, page *model.ScrapedPage) error
	// SavePages inserts pages in one batch.
	SavePages(ctx context.Context, pages []model.ScrapedPage) error
	// LatestPage returns the most recent page for url, or nil when none.
	LatestPage(ctx context.Context, url string) (*model.ScrapedPage, error)
	// ListPages returns pages newest first.
	ListPages(ctx context.Context, filter PageFilter) ([]model.ScrapedPage, error)
	// PageStats counts pages fetched at or after since, per provider.
	PageStats(ctx context.Context, since time.Time) ([]ProviderStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver         string
	DatabaseURL    string
	ConnectRetries int
	Pool           *PoolConfig
}

// Open connects to the configured backend and applies migrations.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case DriverSQLite, "":
		s, err = NewSQLite(cfg.DatabaseURL)
	case DriverPostgres:
		s, err = NewPostgres(ctx, cfg.DatabaseURL, cfg.Pool, cfg.ConnectRetries)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// preparePage fills in the generated fields of a page before insert.
func preparePage(p *model.ScrapedPage) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.FetchedAt.IsZero() {
		p.FetchedAt = time.Now().UTC()
	}
}

func listLimit(filter PageFilter) int {
	if filter.Limit <= 0 {
		return DefaultListLimit
	}
	return filter.Limit
}
