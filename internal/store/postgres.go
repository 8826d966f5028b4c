package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// PgxPool is the subset of pgxpool.Pool the store needs. pgxmock's pool
// satisfies it, which is how the Postgres paths are unit tested.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// postgresDB implements DB over a pgx connection pool. The open
// transaction travels in the context handed to Transaction callbacks,
// so statements issued concurrently from other goroutines go to the
// pool and never land inside someone else's transaction. Nested
// Transaction calls delegate to pgx, which maps inner Begin calls to
// savepoints on the same connection.
type postgresDB struct {
	pool PgxPool
}

type pgTxKey struct{}

func pgTx(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(pgTxKey{}).(pgx.Tx)
	return tx
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a Postgres-backed DB with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (DB, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
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

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &postgresDB{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests.
func NewPostgresFromPool(pool PgxPool) DB {
	return &postgresDB{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS organizations (
	id           BIGSERIAL PRIMARY KEY,
	org_id       TEXT UNIQUE NOT NULL,
	name         TEXT,
	rating       DOUBLE PRECISION,
	review_count INTEGER,
	address      TEXT,
	categories   TEXT,
	role         TEXT NOT NULL DEFAULT 'tracked',
	service_type TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS org_relations (
	id            BIGSERIAL PRIMARY KEY,
	org_id        TEXT NOT NULL REFERENCES organizations(org_id),
	competitor_id TEXT NOT NULL REFERENCES organizations(org_id),
	priority      INTEGER,
	notes         TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(org_id, competitor_id)
);

CREATE TABLE IF NOT EXISTS reviews (
	id                 BIGSERIAL PRIMARY KEY,
	org_id             TEXT NOT NULL REFERENCES organizations(org_id),
	review_key         TEXT UNIQUE NOT NULL,
	author_name        TEXT,
	author_icon_url    TEXT,
	author_profile_url TEXT,
	date               TEXT,
	text               TEXT,
	stars              DOUBLE PRECISION NOT NULL,
	likes              INTEGER NOT NULL DEFAULT 0,
	dislikes           INTEGER NOT NULL DEFAULT 0,
	review_url         TEXT,
	business_response  TEXT,
	first_seen_at      TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reviews_org_id ON reviews(org_id);
CREATE INDEX IF NOT EXISTS idx_reviews_date ON reviews(date);
CREATE INDEX IF NOT EXISTS idx_reviews_stars ON reviews(stars);

CREATE TABLE IF NOT EXISTS review_embeddings (
	review_id  BIGINT PRIMARY KEY REFERENCES reviews(id),
	model      TEXT NOT NULL,
	vector     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS topics (
	id         BIGSERIAL PRIMARY KEY,
	org_id     TEXT NOT NULL REFERENCES organizations(org_id),
	parent_id  BIGINT REFERENCES topics(id),
	name       TEXT NOT NULL,
	vector     TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_topics_org ON topics(org_id);

CREATE TABLE IF NOT EXISTS review_topics (
	id         BIGSERIAL PRIMARY KEY,
	review_id  BIGINT NOT NULL REFERENCES reviews(id),
	topic_id   BIGINT NOT NULL REFERENCES topics(id),
	similarity DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE(review_id, topic_id)
);

CREATE INDEX IF NOT EXISTS idx_review_topics_review ON review_topics(review_id);
CREATE INDEX IF NOT EXISTS idx_review_topics_topic ON review_topics(topic_id);

CREATE TABLE IF NOT EXISTS org_scores (
	id           BIGSERIAL PRIMARY KEY,
	org_id       TEXT NOT NULL REFERENCES organizations(org_id),
	topic_id     BIGINT NOT NULL REFERENCES topics(id),
	score        DOUBLE PRECISION NOT NULL,
	review_count INTEGER NOT NULL,
	confidence   TEXT NOT NULL,
	computed_at  TIMESTAMPTZ NOT NULL,
	UNIQUE(org_id, topic_id)
);

CREATE TABLE IF NOT EXISTS sync_log (
	id              BIGSERIAL PRIMARY KEY,
	org_id          TEXT NOT NULL REFERENCES organizations(org_id),
	mode            TEXT NOT NULL,
	reviews_added   INTEGER NOT NULL DEFAULT 0,
	reviews_updated INTEGER NOT NULL DEFAULT 0,
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ,
	status          TEXT NOT NULL,
	error_message   TEXT
);

CREATE INDEX IF NOT EXISTS idx_sync_log_org ON sync_log(org_id, id DESC);
`

func (p *postgresDB) Dialect() Dialect { return DialectPostgres }

func (p *postgresDB) Close() error {
	p.pool.Close()
	return nil
}

func (p *postgresDB) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if tx := pgTx(ctx); tx != nil {
		tag, err = tx.Exec(ctx, rebind(query), args...)
	} else {
		tag, err = p.pool.Exec(ctx, rebind(query), args...)
	}
	if err != nil {
		return 0, eris.Wrap(err, "postgres: exec")
	}
	return tag.RowsAffected(), nil
}

func (p *postgresDB) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if tx := pgTx(ctx); tx != nil {
		rows, err = tx.Query(ctx, rebind(query), args...)
	} else {
		rows, err = p.pool.Query(ctx, rebind(query), args...)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query")
	}
	return rows, nil
}

func (p *postgresDB) QueryRow(ctx context.Context, query string, args ...any) Row {
	if tx := pgTx(ctx); tx != nil {
		return postgresRow{tx.QueryRow(ctx, rebind(query), args...)}
	}
	return postgresRow{p.pool.QueryRow(ctx, rebind(query), args...)}
}

// Transaction runs fn atomically with a context that routes statements
// into the transaction. pgx turns a Begin on an open transaction into a
// savepoint, which gives the same compose-from-inside semantics as the
// SQLite backend.
func (p *postgresDB) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	outer := pgTx(ctx)

	var (
		tx  pgx.Tx
		err error
	)
	if outer == nil {
		tx, err = p.pool.Begin(ctx)
	} else {
		tx, err = outer.Begin(ctx)
	}
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}

	txCtx := context.WithValue(ctx, pgTxKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

type postgresRow struct{ row pgx.Row }

func (r postgresRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoRows
	}
	return err
}
