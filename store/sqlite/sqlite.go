/*
Package sqlite provides the SQLite-backed generic.DocumentStore.

PURPOSE:
  Persists the ledger documents (leave_requests, users, holidays, audit) as
  JSON bodies in one table. Update commits every document staged by the
  callback in a single SQL transaction, so a balance deduction and the
  request's applied stamp are never written separately.

KEY TABLES:
  documents: name (PK), body (JSON text), version, updated_at

VERSIONING:
  Every write bumps the document's version. Versions are informational
  here (the store is single-writer) but let operators see how often a
  document changed.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety plus a single pooled connection, so
  updates are serialized and an in-memory database is shared by every call.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := timeoff.NewLedger(store, nil, logger)

SEE ALSO:
  - generic/store.go: DocumentStore contract
  - store/redis: optimistic alternative
  - generic/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/leave-ledger/generic"
)

// Store implements generic.DocumentStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		name TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DOCUMENT STORE
// =============================================================================

// Load returns the stored body, or nil if the document was never written.
func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadBody(ctx, s.db, name)
}

// Update runs fn inside a SQL transaction and writes every staged document
// before committing. Any error rolls everything back.
func (s *Store) Update(ctx context.Context, fn func(tx generic.DocumentTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return generic.Persistence("begin transaction", err)
	}
	defer sqlTx.Rollback()

	view := &txView{ctx: ctx, tx: sqlTx, staged: make(map[string][]byte)}
	if err := fn(view); err != nil {
		return err
	}

	names := make([]string, 0, len(view.staged))
	for name := range view.staged {
		names = append(names, name)
	}
	sort.Strings(names)

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, name := range names {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO documents (name, body, version, updated_at) VALUES (?, ?, 1, ?)
			ON CONFLICT(name) DO UPDATE SET
				body = excluded.body,
				version = documents.version + 1,
				updated_at = excluded.updated_at
		`, name, string(view.staged[name]), now)
		if err != nil {
			return generic.Persistence("write "+name, err)
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return generic.Persistence("commit", err)
	}
	return nil
}

// Version returns how many times a document has been written (0 if never).
func (s *Store) Version(ctx context.Context, name string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM documents WHERE name = ?`, name).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, generic.Persistence("read version of "+name, err)
	}
	return v, nil
}

// Reset clears all documents. Used for testing.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return generic.Persistence("reset", err)
	}
	return nil
}

// =============================================================================
// TRANSACTION VIEW
// =============================================================================

type txView struct {
	ctx    context.Context
	tx     *sql.Tx
	staged map[string][]byte
}

func (v *txView) Get(name string) ([]byte, error) {
	if body, ok := v.staged[name]; ok {
		return append([]byte(nil), body...), nil
	}
	return loadBody(v.ctx, v.tx, name)
}

func (v *txView) Put(name string, body []byte) {
	v.staged[name] = append([]byte(nil), body...)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadBody(ctx context.Context, q queryer, name string) ([]byte, error) {
	var body string
	err := q.QueryRowContext(ctx, `SELECT body FROM documents WHERE name = ?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}
