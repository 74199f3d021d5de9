package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/advisor-scrape/internal/db"
	"github.com/sells-group/advisor-scrape/internal/model"
	"github.com/sells-group/advisor-scrape/internal/resilience"
)

const pagesTable = "scraped_pages"

var pageColumns = []string{"id", "url", "provider", "content", "success", "error", "fetched_at"}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool. Transient
// connection failures are retried up to connectRetries attempts.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig, connectRetries int) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := resilience.DoVal(ctx, resilience.ConnectOp("postgres connect", connectRetries), func(ctx context.Context) (*pgxpool.Pool, error) {
		pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: create pool")
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, eris.Wrap(err, "postgres: ping")
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS scraped_pages (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	url        TEXT NOT NULL,
	provider   TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL DEFAULT '',
	success    BOOLEAN NOT NULL DEFAULT false,
	error      TEXT NOT NULL DEFAULT '',
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_scraped_pages_url ON scraped_pages(url, fetched_at DESC);
CREATE INDEX IF NOT EXISTS idx_scraped_pages_fetched_at ON scraped_pages(fetched_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SavePage(ctx context.Context, page *model.ScrapedPage) error {
	if page == nil {
		return eris.New("postgres: save page: nil page")
	}
	preparePage(page)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO scraped_pages (id, url, provider, content, success, error, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		page.ID, page.URL, page.Provider, page.Content, page.Success, page.Error, page.FetchedAt,
	)
	return eris.Wrapf(err, "postgres: insert page %s", page.URL)
}

// SavePages bulk-loads pages with COPY.
func (s *PostgresStore) SavePages(ctx context.Context, pages []model.ScrapedPage) error {
	if len(pages) == 0 {
		return nil
	}

	rows := make([][]any, len(pages))
	for i := range pages {
		p := &pages[i]
		preparePage(p)
		rows[i] = []any{p.ID, p.URL, p.Provider, p.Content, p.Success, p.Error, p.FetchedAt}
	}

	if err := db.CopyAll(ctx, s.pool, pagesTable, pageColumns, rows); err != nil {
		return eris.Wrap(err, "postgres: save pages")
	}
	return nil
}

func (s *PostgresStore) LatestPage(ctx context.Context, url string) (*model.ScrapedPage, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, url, provider, content, success, error, fetched_at FROM scraped_pages
		 WHERE url = $1 ORDER BY fetched_at DESC LIMIT 1`,
		url,
	)

	p, err := scanPage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest page")
	}
	return p, nil
}

func (s *PostgresStore) ListPages(ctx context.Context, filter PageFilter) ([]model.ScrapedPage, error) {
	query := `SELECT id, url, provider, content, success, error, fetched_at FROM scraped_pages WHERE true`
	args := []any{}
	argIdx := 1

	if filter.URL != "" {
		query += fmt.Sprintf(` AND url = $%d`, argIdx)
		args = append(args, filter.URL)
		argIdx++
	}
	if filter.Provider != "" {
		query += fmt.Sprintf(` AND provider = $%d`, argIdx)
		args = append(args, filter.Provider)
		argIdx++
	}
	if filter.SuccessOnly {
		query += ` AND success`
	}
	query += fmt.Sprintf(` ORDER BY fetched_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pages")
	}
	defer rows.Close()

	var pages []model.ScrapedPage
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan page")
		}
		pages = append(pages, *p)
	}
	return pages, eris.Wrap(rows.Err(), "postgres: list pages iterate")
}

func (s *PostgresStore) PageStats(ctx context.Context, since time.Time) ([]ProviderStats, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(pageStatsQuery, "$1"), since.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: page stats")
	}
	defer rows.Close()

	var stats []ProviderStats
	for rows.Next() {
		var ps ProviderStats
		if err := rows.Scan(&ps.Provider, &ps.Success, &ps.Failed, &ps.Chars); err != nil {
			return nil, eris.Wrap(err, "postgres: scan page stats")
		}
		stats = append(stats, ps)
	}
	return stats, eris.Wrap(rows.Err(), "postgres: page stats iterate")
}
