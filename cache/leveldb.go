package cache

import (
	"context"
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
	"go.trai.ch/zerr"
)

// LevelDBStore keeps gob-encoded entries in an on-disk LevelDB database.
type LevelDBStore struct {
	db *leveldb.DB
}

func NewLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to open leveldb cache"), "path", path)
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	b, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, zerr.Wrap(err, "failed to read leveldb cache")
	}
	entry, err := decodeEntry(b)
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

func (s *LevelDBStore) Set(ctx context.Context, key string, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := s.db.Put([]byte(key), b, nil); err != nil {
		return zerr.Wrap(err, "failed to write leveldb cache")
	}
	return nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
