package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/advisor-scrape/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS scraped_pages (
	id         TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	provider   TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL DEFAULT '',
	success    INTEGER NOT NULL DEFAULT 0,
	error      TEXT NOT NULL DEFAULT '',
	fetched_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_scraped_pages_url ON scraped_pages(url, fetched_at DESC);
CREATE INDEX IF NOT EXISTS idx_scraped_pages_fetched_at ON scraped_pages(fetched_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteInsertPage = `INSERT INTO scraped_pages (id, url, provider, content, success, error, fetched_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) SavePage(ctx context.Context, page *model.ScrapedPage) error {
	if page == nil {
		return eris.New("sqlite: save page: nil page")
	}
	preparePage(page)

	_, err := s.db.ExecContext(ctx, sqliteInsertPage,
		page.ID, page.URL, page.Provider, page.Content, page.Success, page.Error, page.FetchedAt,
	)
	return eris.Wrapf(err, "sqlite: insert page %s", page.URL)
}

func (s *SQLiteStore) SavePages(ctx context.Context, pages []model.ScrapedPage) error {
	if len(pages) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsertPage)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert page")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range pages {
		p := &pages[i]
		preparePage(p)
		if _, err := stmt.ExecContext(ctx, p.ID, p.URL, p.Provider, p.Content, p.Success, p.Error, p.FetchedAt); err != nil {
			return eris.Wrapf(err, "sqlite: insert page %s", p.URL)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit pages")
}

func (s *SQLiteStore) LatestPage(ctx context.Context, url string) (*model.ScrapedPage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, provider, content, success, error, fetched_at FROM scraped_pages
		 WHERE url = ? ORDER BY fetched_at DESC LIMIT 1`,
		url,
	)

	p, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest page")
	}
	return p, nil
}

func (s *SQLiteStore) ListPages(ctx context.Context, filter PageFilter) ([]model.ScrapedPage, error) {
	query := `SELECT id, url, provider, content, success, error, fetched_at FROM scraped_pages WHERE 1=1`
	var args []any

	if filter.URL != "" {
		query += ` AND url = ?`
		args = append(args, filter.URL)
	}
	if filter.Provider != "" {
		query += ` AND provider = ?`
		args = append(args, filter.Provider)
	}
	if filter.SuccessOnly {
		query += ` AND success = 1`
	}
	query += ` ORDER BY fetched_at DESC LIMIT ?`
	args = append(args, listLimit(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pages")
	}
	defer rows.Close() //nolint:errcheck

	var pages []model.ScrapedPage
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan page")
		}
		pages = append(pages, *p)
	}
	return pages, eris.Wrap(rows.Err(), "sqlite: list pages iterate")
}

func (s *SQLiteStore) PageStats(ctx context.Context, since time.Time) ([]ProviderStats, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(pageStatsQuery, "?"), since.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: page stats")
	}
	defer rows.Close() //nolint:errcheck

	var stats []ProviderStats
	for rows.Next() {
		var ps ProviderStats
		if err := rows.Scan(&ps.Provider, &ps.Success, &ps.Failed, &ps.Chars); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan page stats")
		}
		stats = append(stats, ps)
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: page stats iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanPage(row scannable) (*model.ScrapedPage, error) {
	var p model.ScrapedPage
	if err := row.Scan(&p.ID, &p.URL, &p.Provider, &p.Content, &p.Success, &p.Error, &p.FetchedAt); err != nil {
		return nil, err
	}
	p.FetchedAt = p.FetchedAt.UTC()
	return &p, nil
}
