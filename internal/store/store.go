// Package store persists organizations, reviews, embeddings, topics,
// classifications, scores and the sync ledger behind one transactional
// interface with two interchangeable backends (SQLite and Postgres).
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/reviewpulse/reviewpulse/internal/vector"
)

// Store exposes the persistence operations of the pipeline. All methods
// are written against the dialect-free DB interface.
type Store struct {
	db DB
}

// New wraps an already-open DB.
func New(db DB) *Store { return &Store{db: db} }

// Open connects to the configured backend. driver is "sqlite" or
// "postgres"; dsn is a file path for SQLite and a connection string for
// Postgres.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (*Store, error) {
	switch Dialect(driver) {
	case DialectSQLite:
		db, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		return &Store{db: db}, nil
	case DialectPostgres:
		db, err := NewPostgres(ctx, dsn, poolCfg)
		if err != nil {
			return nil, err
		}
		return &Store{db: db}, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

// Migrate creates the schema for the active backend.
func (s *Store) Migrate(ctx context.Context) error {
	migration := sqliteMigration
	if s.db.Dialect() == DialectPostgres {
		migration = postgresMigration
	}
	_, err := s.db.Exec(ctx, migration)
	return eris.Wrap(err, "store: migrate")
}

// Close releases the underlying connection(s).
func (s *Store) Close() error { return s.db.Close() }

// DB returns the capability interface, for callers composing their own
// transactions around store operations.
func (s *Store) DB() DB { return s.db }

// Transaction runs fn inside a transaction (or savepoint when nested).
func (s *Store) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.db.Transaction(ctx, fn)
}

// encodeVector renders a vector in the active backend's storage form.
func (s *Store) encodeVector(vec []float32) any {
	if s.db.Dialect() == DialectPostgres {
		return vector.EncodeText(vec)
	}
	return vector.EncodeBinary(vec)
}

// decodeVector parses a stored vector back to float32s.
func (s *Store) decodeVector(raw []byte) ([]float32, error) {
	if s.db.Dialect() == DialectPostgres {
		return vector.DecodeText(string(raw))
	}
	return vector.DecodeBinary(raw)
}
