package main

import (
	"strings"

	"github.com/always-cache/swr/cache"

	"github.com/redis/go-redis/v9"
	"go.trai.ch/zerr"
)

// openStore creates the configured cache store.
// The returned function releases the store's resources.
func openStore(config StoreConfig) (cache.Store, func() error, error) {
	noop := func() error { return nil }
	switch config.Kind {
	case "memory":
		return cache.NewMemStore(), noop, nil
	case "sqlite":
		store, err := cache.NewSQLiteStore(config.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "leveldb":
		store, err := cache.NewLevelDBStore(config.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "redis":
		options := &redis.Options{Addr: config.Redis}
		if strings.Contains(config.Redis, "://") {
			var err error
			if options, err = redis.ParseURL(config.Redis); err != nil {
				return nil, nil, zerr.Wrap(err, "invalid redis URL")
			}
		}
		store := cache.NewRedisStore(redis.NewClient(options), config.retention)
		return store, store.Close, nil
	}
	return nil, nil, zerr.With(ErrUnknownStore, "kind", config.Kind)
}
