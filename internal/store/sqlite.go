package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// sqliteDB implements DB over modernc.org/sqlite.
//
// The open transaction travels in the context handed to Transaction
// callbacks, so statements issued concurrently from other goroutines
// go to the pool and never land inside someone else's transaction.
// Nested Transaction calls open savepoints on the same tx.
type sqliteDB struct {
	db *sql.DB
}

type sqliteTxKey struct{}

type sqliteTxState struct {
	tx    *sql.Tx
	depth int
}

func sqliteTx(ctx context.Context) *sqliteTxState {
	st, _ := ctx.Value(sqliteTxKey{}).(*sqliteTxState)
	return st
}

// NewSQLite opens (and creates, including parent directories) a SQLite
// database at path and configures WAL mode.
func NewSQLite(path string) (DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, eris.Wrap(err, "sqlite: create db directory")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single connection keeps savepoint nesting on one session.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &sqliteDB{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS organizations (
	id           INTEGER PRIMARY KEY,
	org_id       TEXT UNIQUE NOT NULL,
	name         TEXT,
	rating       REAL,
	review_count INTEGER,
	address      TEXT,
	categories   TEXT,
	role         TEXT NOT NULL DEFAULT 'tracked',
	service_type TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS org_relations (
	id            INTEGER PRIMARY KEY,
	org_id        TEXT NOT NULL REFERENCES organizations(org_id),
	competitor_id TEXT NOT NULL REFERENCES organizations(org_id),
	priority      INTEGER,
	notes         TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(org_id, competitor_id)
);

CREATE TABLE IF NOT EXISTS reviews (
	id                 INTEGER PRIMARY KEY,
	org_id             TEXT NOT NULL REFERENCES organizations(org_id),
	review_key         TEXT UNIQUE NOT NULL,
	author_name        TEXT,
	author_icon_url    TEXT,
	author_profile_url TEXT,
	date               TEXT,
	text               TEXT,
	stars              REAL NOT NULL,
	likes              INTEGER NOT NULL DEFAULT 0,
	dislikes           INTEGER NOT NULL DEFAULT 0,
	review_url         TEXT,
	business_response  TEXT,
	first_seen_at      DATETIME NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reviews_org_id ON reviews(org_id);
CREATE INDEX IF NOT EXISTS idx_reviews_date ON reviews(date);
CREATE INDEX IF NOT EXISTS idx_reviews_stars ON reviews(stars);

CREATE TABLE IF NOT EXISTS review_embeddings (
	review_id  INTEGER PRIMARY KEY REFERENCES reviews(id),
	model      TEXT NOT NULL,
	vector     BLOB NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS topics (
	id         INTEGER PRIMARY KEY,
	org_id     TEXT NOT NULL REFERENCES organizations(org_id),
	parent_id  INTEGER REFERENCES topics(id),
	name       TEXT NOT NULL,
	vector     BLOB,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_topics_org ON topics(org_id);

CREATE TABLE IF NOT EXISTS review_topics (
	id         INTEGER PRIMARY KEY,
	review_id  INTEGER NOT NULL REFERENCES reviews(id),
	topic_id   INTEGER NOT NULL REFERENCES topics(id),
	similarity REAL NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE(review_id, topic_id)
);

CREATE INDEX IF NOT EXISTS idx_review_topics_review ON review_topics(review_id);
CREATE INDEX IF NOT EXISTS idx_review_topics_topic ON review_topics(topic_id);

CREATE TABLE IF NOT EXISTS org_scores (
	id           INTEGER PRIMARY KEY,
	org_id       TEXT NOT NULL REFERENCES organizations(org_id),
	topic_id     INTEGER NOT NULL REFERENCES topics(id),
	score        REAL NOT NULL,
	review_count INTEGER NOT NULL,
	confidence   TEXT NOT NULL,
	computed_at  DATETIME NOT NULL,
	UNIQUE(org_id, topic_id)
);

CREATE TABLE IF NOT EXISTS sync_log (
	id              INTEGER PRIMARY KEY,
	org_id          TEXT NOT NULL REFERENCES organizations(org_id),
	mode            TEXT NOT NULL,
	reviews_added   INTEGER NOT NULL DEFAULT 0,
	reviews_updated INTEGER NOT NULL DEFAULT 0,
	started_at      DATETIME NOT NULL,
	finished_at     DATETIME,
	status          TEXT NOT NULL,
	error_message   TEXT
);

CREATE INDEX IF NOT EXISTS idx_sync_log_org ON sync_log(org_id, id DESC);
`

func (s *sqliteDB) Dialect() Dialect { return DialectSQLite }

func (s *sqliteDB) Close() error {
	return s.db.Close()
}

func (s *sqliteDB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if st := sqliteTx(ctx); st != nil {
		res, err = st.tx.ExecContext(ctx, query, args...)
	} else {
		res, err = s.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: exec")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func (s *sqliteDB) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if st := sqliteTx(ctx); st != nil {
		rows, err = st.tx.QueryContext(ctx, query, args...)
	} else {
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query")
	}
	return sqliteRows{rows}, nil
}

func (s *sqliteDB) QueryRow(ctx context.Context, query string, args ...any) Row {
	if st := sqliteTx(ctx); st != nil {
		return sqliteRow{st.tx.QueryRowContext(ctx, query, args...)}
	}
	return sqliteRow{s.db.QueryRowContext(ctx, query, args...)}
}

// Transaction runs fn atomically. Outside a transaction it opens a real
// one and hands fn a context that routes statements into it; inside a
// transaction context it opens a savepoint released or rolled back
// independently, so composed operations stay correct when called from a
// context already inside a transaction.
func (s *sqliteDB) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	st := sqliteTx(ctx)
	if st == nil {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return eris.Wrap(err, "sqlite: begin tx")
		}
		txCtx := context.WithValue(ctx, sqliteTxKey{}, &sqliteTxState{tx: tx})
		if err := fn(txCtx); err != nil {
			_ = tx.Rollback()
			return err
		}
		return eris.Wrap(tx.Commit(), "sqlite: commit tx")
	}

	depth := st.depth + 1
	name := fmt.Sprintf("sp_%d", depth)
	if _, err := st.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return eris.Wrapf(err, "sqlite: savepoint %s", name)
	}
	spCtx := context.WithValue(ctx, sqliteTxKey{}, &sqliteTxState{tx: st.tx, depth: depth})
	if err := fn(spCtx); err != nil {
		if _, rbErr := st.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr == nil {
			_, _ = st.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
		}
		return err
	}
	_, err := st.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return eris.Wrapf(err, "sqlite: release savepoint %s", name)
}

type sqliteRows struct{ rows *sql.Rows }

func (r sqliteRows) Next() bool             { return r.rows.Next() }
func (r sqliteRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r sqliteRows) Err() error             { return r.rows.Err() }
func (r sqliteRows) Close()                 { _ = r.rows.Close() }

type sqliteRow struct{ row *sql.Row }

func (r sqliteRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRows
	}
	return err
}
