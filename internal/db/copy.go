package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyAll streams rows into table over the COPY protocol and fails unless
// every row lands. table may be schema-qualified ("scrape.pages").
func CopyAll(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	n, err := pool.CopyFrom(ctx, Identifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return eris.Wrapf(err, "db: copy into %s", table)
	}
	if n != int64(len(rows)) {
		return eris.Errorf("db: copy into %s: wrote %d of %d rows", table, n, len(rows))
	}
	return nil
}

// Identifier quotes a possibly schema-qualified table name.
func Identifier(table string) pgx.Identifier {
	schema, name, ok := strings.Cut(table, ".")
	if !ok {
		return pgx.Identifier{table}
	}
	return pgx.Identifier{schema, name}
}
