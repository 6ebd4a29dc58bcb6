package cache

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"go.trai.ch/zerr"
)

// SQLiteStore keeps entries in a SQLite database.
// A file-backed database survives restarts and can be shared by processes on one host.
type SQLiteStore struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteStore opens (or creates) the cache with the given filename as the db.
// If file name is empty, a new in-memory db is opened.
func NewSQLiteStore(filename string) (SQLiteStore, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return SQLiteStore{}, zerr.With(zerr.Wrap(err, "failed to open sqlite cache"), "filename", filename)
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS swr_cache (
			key TEXT PRIMARY KEY,
			stale_at INTEGER,
			bytes BLOB
		)`,
		"PRAGMA journal_mode=WAL",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return SQLiteStore{}, zerr.With(zerr.Wrap(err, "failed to prepare sqlite cache"), "filename", filename)
		}
	}
	return SQLiteStore{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s SQLiteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var staleAt int64
	var bytes []byte
	err := s.db.QueryRowContext(ctx, "SELECT stale_at, bytes FROM swr_cache WHERE key = ?", key).Scan(&staleAt, &bytes)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, zerr.Wrap(err, "failed to read sqlite cache")
	}
	return Entry{Response: bytes, StaleAt: time.Unix(0, staleAt)}, true, nil
}

func (s SQLiteStore) Set(ctx context.Context, key string, entry Entry) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.ExecContext(ctx, "INSERT OR REPLACE INTO swr_cache (key, stale_at, bytes) VALUES (?, ?, ?)",
		key, entry.StaleAt.UnixNano(), entry.Response)
	if err != nil {
		return zerr.Wrap(err, "failed to write sqlite cache")
	}
	return nil
}

func (s SQLiteStore) Close() error {
	return s.db.Close()
}
