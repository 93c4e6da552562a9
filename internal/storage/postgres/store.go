// Package postgres implements storage.Store against PostgreSQL via
// database/sql and github.com/lib/pq, grounded on the teacher's own
// internal/app/storage/postgres package: one Store type embedding *sql.DB,
// one file per entity group, errors normalised to storage.ErrNotFound /
// storage.ErrConflict at the boundary.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/solward/flywheel/internal/storage"
)

// Options configures the pooled connection and migration behavior.
type Options struct {
	MaxOpenConns   int
	MaxIdleConns   int
	MigrateOnStart bool
}

// Store implements storage.Store backed by PostgreSQL.
type Store struct {
	*BaseStore
}

var _ storage.Store = (*Store)(nil)

// Open connects to dsn, optionally applies embedded migrations, and returns
// a ready Store.
func Open(dsn string, opts Options) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if opts.MigrateOnStart {
		if err := runMigrations(db); err != nil {
			return nil, err
		}
	}
	return &Store{BaseStore: NewBaseStore(db, "")}, nil
}

func isNoRows(err error) bool { return err == sql.ErrNoRows }

func (s *Store) q(ctx context.Context) storage.Querier { return s.Querier(ctx) }
