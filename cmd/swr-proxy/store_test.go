package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/always-cache/swr/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenStore(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name   string
		config StoreConfig
	}{
		{"memory", StoreConfig{Kind: "memory"}},
		{"sqlite", StoreConfig{Kind: "sqlite", Path: filepath.Join(t.TempDir(), "cache.db")}},
		{"leveldb", StoreConfig{Kind: "leveldb", Path: filepath.Join(t.TempDir(), "cache")}},
		{"redis address", StoreConfig{Kind: "redis", Redis: mr.Addr()}},
		{"redis url", StoreConfig{Kind: "redis", Redis: "redis://" + mr.Addr() + "/0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, closeStore, err := openStore(tt.config)
			require.NoError(t, err)
			defer func() { require.NoError(t, closeStore()) }()

			entry := cache.Entry{Response: []byte("response"), StaleAt: time.Unix(100, 0)}
			require.NoError(t, store.Set(t.Context(), "GET:key", entry))
			got, found, err := store.Get(t.Context(), "GET:key")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, entry.Response, got.Response)
			assert.True(t, entry.StaleAt.Equal(got.StaleAt))
		})
	}
}

func TestOpenStoreInvalid(t *testing.T) {
	_, _, err := openStore(StoreConfig{Kind: "redis", Redis: "http://localhost:6379"})
	require.ErrorContains(t, err, "invalid redis URL")

	_, _, err = openStore(StoreConfig{Kind: "memcached"})
	require.ErrorContains(t, err, ErrUnknownStore.Error())
}
