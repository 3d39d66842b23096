package postgres

import (
	"context"
	"database/sql"
	"regexp"
)

// executor is satisfied by both *sql.DB and *sql.Tx so every repository can
// run standalone or inside a transaction.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var placeholderPattern = regexp.MustCompile(`\$\d+`)

// rebind rewrites $N placeholders to ? for the sqlite driver. Queries keep
// their arguments in placeholder order, so positional rewriting is safe.
type rebind func(query string) string

func rebindFor(driver string) rebind {
	if driver == "sqlite" {
		return func(query string) string {
			return placeholderPattern.ReplaceAllString(query, "?")
		}
	}
	return func(query string) string { return query }
}
