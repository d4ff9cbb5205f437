package sqlcore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/streamtab/internal/identity/store"
)

// Migrator applies the driver's embedded migrations to db.
type Migrator func(db *sql.DB) error

type Store struct {
	db      *sql.DB
	q       *queries
	migrate Migrator
}

var _ store.Store = (*Store)(nil)

// New wraps an open database. migrate may be nil when the schema is
// managed elsewhere.
func New(db *sql.DB, d Dialect, migrate Migrator) *Store {
	return &Store{
		db:      db,
		q:       &queries{db: db, d: d},
		migrate: migrate,
	}
}

// DB exposes the pool for driver level concerns such as migrations.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) ApplyMigrations() error {
	if s.migrate == nil {
		return nil
	}
	return s.migrate(s.db)
}

func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &txStore{tx: tx, q: &queries{db: tx, d: s.q.d}}, nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Users() store.Users                 { return &usersRepo{q: s.q} }
func (s *Store) Subscriptions() store.Subscriptions { return &subscriptionsRepo{q: s.q} }
func (s *Store) Videos() store.Videos               { return &videosRepo{q: s.q} }
func (s *Store) WatchHistory() store.WatchHistory   { return &watchHistoryRepo{q: s.q} }

type txStore struct {
	tx *sql.Tx
	q  *queries
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// The outer store owns the pool.
func (t *txStore) Close() error                   { return nil }
func (t *txStore) Ping(ctx context.Context) error { return nil }
func (t *txStore) ApplyMigrations() error         { return nil }

func (t *txStore) Tx(context.Context) (store.Tx, error) { return nil, sql.ErrTxDone }
func (t *txStore) WithTx(context.Context, func(store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Users() store.Users                 { return &usersRepo{q: t.q} }
func (t *txStore) Subscriptions() store.Subscriptions { return &subscriptionsRepo{q: t.q} }
func (t *txStore) Videos() store.Videos               { return &videosRepo{q: t.q} }
func (t *txStore) WatchHistory() store.WatchHistory   { return &watchHistoryRepo{q: t.q} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func (q *queries) mapWriteErr(err error) error {
	if err != nil && q.d.IsUniqueViolation != nil && q.d.IsUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// expectOne turns a zero row update into ErrNotFound.
func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
