package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is an embedded document-store backend. One table per
// collection, same record schema as the MongoDB backend. Useful for local
// development and tests where no server is available.
type SQLiteStore struct {
	path       string
	collection string

	mu    sync.Mutex
	state connState
	db    *sql.DB
}

// NewSQLiteStore builds a store over the database file at path. The
// collection name becomes the table name and must already be validated by
// the caller (the client rejects anything outside [a-zA-Z0-9_-]{1,120}).
func NewSQLiteStore(path, collection string) *SQLiteStore {
	return &SQLiteStore{path: path, collection: collection}
}

// Connect opens the database and ensures the schema. Idempotent: a no-op
// when already connected with a healthy handle.
func (s *SQLiteStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateConnected {
		if err := s.db.PingContext(ctx); err == nil {
			return nil
		}
		s.db.Close()
		s.state = stateDisconnected
	}

	s.state = stateConnecting
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		s.state = stateDisconnected
		return fmt.Errorf("sqlite: create dir: %w", err)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		s.state = stateDisconnected
		return fmt.Errorf("sqlite: open db: %w", err)
	}

	// WAL improves concurrent read behavior for a shared local file.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		s.state = stateDisconnected
		return fmt.Errorf("sqlite: set WAL mode: %w", err)
	}

	schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %q (
	id TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	session TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS %q ON %q (session, id);
`, s.collection, s.collection+"_session_idx", s.collection)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		s.state = stateDisconnected
		return fmt.Errorf("sqlite: create schema: %w", err)
	}

	s.db = db
	s.state = stateConnected
	return nil
}

// Disconnect closes the database. A later operation reconnects transparently.
func (s *SQLiteStore) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateConnected {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.state = stateDisconnected
	return err
}

func (s *SQLiteStore) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateConnected {
		return nil, errors.New("sqlite: not connected")
	}
	return s.db, nil
}

func (s *SQLiteStore) Read(ctx context.Context, key string) (*Record, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	var rec Record
	var created, updated int64
	err = db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id, value, session, created_at, updated_at FROM %q WHERE id = ?", s.collection),
		key,
	).Scan(&rec.ID, &rec.Value, &rec.Session, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: read: %w", err)
	}
	rec.CreatedAt = time.UnixMilli(created).UTC()
	rec.UpdatedAt = time.UnixMilli(updated).UTC()
	return &rec, nil
}

func (s *SQLiteStore) Write(ctx context.Context, key, session string, value []byte) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %q (id, value, session, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET value = excluded.value, session = excluded.session, updated_at = excluded.updated_at`,
			s.collection),
		key, value, session, now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: write: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %q WHERE id = ?", s.collection), key); err != nil {
		return fmt.Errorf("sqlite: delete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteNamespace(ctx context.Context, session string, excludeKeys []string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %q WHERE session = ?", s.collection)
	args := []any{session}
	if len(excludeKeys) > 0 {
		query += " AND id NOT IN (?" + repeatPlaceholder(len(excludeKeys)-1) + ")"
		for _, k := range excludeKeys {
			args = append(args, k)
		}
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlite: delete namespace: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteAllNamespace(ctx context.Context, session string) error {
	return s.DeleteNamespace(ctx, session, nil)
}

func repeatPlaceholder(n int) string {
	out := make([]byte, 0, 3*n)
	for i := 0; i < n; i++ {
		out = append(out, ", ?"...)
	}
	return string(out)
}
