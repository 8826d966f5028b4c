package store

import (
	"context"

	"github.com/rotisserie/eris"
)

// Dialect names a storage backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ErrNoRows is returned when a single-row lookup matches nothing. Both
// backends translate their driver sentinel into this one, so callers
// check a single error regardless of dialect.
var ErrNoRows = eris.New("store: no rows")

// Rows is the minimal result-set surface shared by both drivers.
// pgx.Rows satisfies it directly; database/sql rows are wrapped.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Row is a single-row result.
type Row interface {
	Scan(dest ...any) error
}

// DB is the dialect-free capability interface the repositories are
// written against. Queries use ? placeholders; the Postgres backend
// rewrites them to $n. Exec returns the number of affected rows.
// Transaction runs fn atomically and may be nested: inner calls become
// savepoints that commit or roll back independently of the outer
// transaction.
type DB interface {
	Dialect() Dialect
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	Close() error
}

// rebind rewrites ? placeholders to $1..$n for Postgres. Queries here
// never contain literal question marks outside placeholders, so no
// quote tracking is needed.
func rebind(query string) string {
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			out = append(out, query[i])
			continue
		}
		n++
		out = append(out, '$')
		out = appendInt(out, n)
	}
	return string(out)
}

func appendInt(b []byte, n int) []byte {
	if n >= 10 {
		b = appendInt(b, n/10)
	}
	return append(b, byte('0'+n%10))
}
