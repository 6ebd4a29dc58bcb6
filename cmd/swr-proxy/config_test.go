package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "swr.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(content), 0o644))
	return filename
}

func TestLoadConfigFromFile(t *testing.T) {
	filename := writeConfig(t, `
origin: https://api.example.com
port: 9090
keyPrefix: api
timeToStale: 30s
cacheReadTimeout: 50ms
originTimeout: 1s
statsEvery: 1m
store:
  kind: redis
  redis: redis://cache:6379/2
  retention: 24h
auth:
  clientId: proxy
  clientSecret: secret
  tokenUrl: https://auth.example.com/token
  scopes: [read]
`)

	config, err := loadConfig(filename, Config{})
	require.NoError(t, err)

	assert.Equal(t, "api.example.com", config.originURL.Host)
	assert.Equal(t, 9090, config.Port)
	assert.Equal(t, "api", config.KeyPrefix)
	assert.Equal(t, 30*time.Second, config.timeToStale)
	assert.Equal(t, 50*time.Millisecond, config.cacheReadTimeout)
	assert.Equal(t, time.Second, config.originTimeout)
	assert.Equal(t, time.Minute, config.statsEvery)
	assert.Equal(t, "redis", config.Store.Kind)
	assert.Equal(t, 24*time.Hour, config.Store.retention)
	require.NotNil(t, config.Auth)
	assert.Equal(t, []string{"read"}, config.Auth.Scopes)
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := loadConfig("", Config{Origin: "http://localhost:3000"})
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Port)
	assert.Equal(t, "sqlite", config.Store.Kind)
	assert.Equal(t, "swr-proxy/DEV", config.UserAgent)
	assert.Equal(t, time.Minute, config.timeToStale)
	assert.Equal(t, 200*time.Millisecond, config.cacheReadTimeout)
	assert.Equal(t, 2*time.Second, config.originTimeout)
	assert.Zero(t, config.statsEvery)
}

func TestFlagsOverrideFile(t *testing.T) {
	filename := writeConfig(t, `
origin: https://api.example.com
timeToStale: 30s
store:
  kind: leveldb
  path: /var/cache/swr
`)

	config, err := loadConfig(filename, Config{
		Origin:      "http://localhost:3000",
		TimeToStale: "5s",
		Store:       StoreConfig{Kind: "memory"},
	})
	require.NoError(t, err)

	assert.Equal(t, "localhost:3000", config.originURL.Host)
	assert.Equal(t, 5*time.Second, config.timeToStale)
	assert.Equal(t, "memory", config.Store.Kind)
	assert.Equal(t, "/var/cache/swr", config.Store.Path)
}

func TestInvalidConfig(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		errContains string
	}{
		{
			name:        "missing origin",
			content:     "port: 8080",
			errContains: ErrMissingOrigin.Error(),
		},
		{
			name:        "relative origin",
			content:     "origin: /api",
			errContains: ErrInvalidOrigin.Error(),
		},
		{
			name:        "bad duration",
			content:     "origin: http://localhost\ntimeToStale: soon",
			errContains: ErrInvalidDuration.Error(),
		},
		{
			name:        "negative duration",
			content:     "origin: http://localhost\noriginTimeout: -1s",
			errContains: ErrInvalidDuration.Error(),
		},
		{
			name:        "unknown store",
			content:     "origin: http://localhost\nstore:\n  kind: memcached",
			errContains: ErrUnknownStore.Error(),
		},
		{
			name:        "leveldb without path",
			content:     "origin: http://localhost\nstore:\n  kind: leveldb",
			errContains: ErrMissingPath.Error(),
		},
		{
			name:        "incomplete auth",
			content:     "origin: http://localhost\nauth:\n  clientSecret: secret",
			errContains: ErrIncompleteAuth.Error(),
		},
		{
			name:        "not yaml",
			content:     "origin: [",
			errContains: "could not parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.content), Config{})
			require.Error(t, err)
			require.ErrorContains(t, err, tt.errContains)
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"), Config{})
	require.ErrorContains(t, err, "could not read config file")
}
