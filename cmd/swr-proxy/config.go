package main

import (
	"net/url"
	"os"
	"time"

	"github.com/always-cache/swr"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingOrigin   = zerr.New("origin is required")
	ErrInvalidOrigin   = zerr.New("origin must be an absolute http(s) URL")
	ErrInvalidDuration = zerr.New("invalid duration")
	ErrUnknownStore    = zerr.New("unknown store kind")
	ErrMissingPath     = zerr.New("store path is required")
	ErrIncompleteAuth  = zerr.New("auth needs clientId and tokenUrl")
)

type Config struct {
	Origin           string      `yaml:"origin"`
	Port             int         `yaml:"port"`
	UserAgent        string      `yaml:"userAgent"`
	KeyPrefix        string      `yaml:"keyPrefix"`
	TimeToStale      string      `yaml:"timeToStale"`
	CacheReadTimeout string      `yaml:"cacheReadTimeout"`
	OriginTimeout    string      `yaml:"originTimeout"`
	StatsEvery       string      `yaml:"statsEvery"`
	Store            StoreConfig `yaml:"store"`
	Auth             *AuthConfig `yaml:"auth"`

	// parsed
	originURL        *url.URL
	timeToStale      time.Duration
	cacheReadTimeout time.Duration
	originTimeout    time.Duration
	statsEvery       time.Duration
}

type StoreConfig struct {
	// One of memory, sqlite, leveldb or redis.
	Kind string `yaml:"kind"`
	// Database file for sqlite (empty for a shared in-memory db), directory for leveldb.
	Path string `yaml:"path"`
	// Address (host:port) or redis:// URL.
	Redis string `yaml:"redis"`
	// How long redis keeps an entry after it was written. Zero keeps it forever.
	Retention string `yaml:"retention"`

	retention time.Duration
}

// AuthConfig enables OAuth2 client credentials for requests to the origin.
type AuthConfig struct {
	ClientID     string   `yaml:"clientId"`
	ClientSecret string   `yaml:"clientSecret"`
	TokenURL     string   `yaml:"tokenUrl"`
	Scopes       []string `yaml:"scopes"`
}

// readConfig reads the YAML file without validating it.
func readConfig(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, zerr.Wrap(err, "could not read config file")
	}
	if err := yaml.Unmarshal(configBytes, &config); err != nil {
		return config, zerr.With(zerr.Wrap(err, "could not parse config file"), "file", filename)
	}
	return config, nil
}

// merge overrides the receiver with the non-zero values of other.
func (c *Config) merge(other Config) {
	if other.Origin != "" {
		c.Origin = other.Origin
	}
	if other.Port != 0 {
		c.Port = other.Port
	}
	if other.UserAgent != "" {
		c.UserAgent = other.UserAgent
	}
	if other.KeyPrefix != "" {
		c.KeyPrefix = other.KeyPrefix
	}
	if other.TimeToStale != "" {
		c.TimeToStale = other.TimeToStale
	}
	if other.Store.Kind != "" {
		c.Store.Kind = other.Store.Kind
	}
	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}
	if other.Store.Redis != "" {
		c.Store.Redis = other.Store.Redis
	}
}

// finalize applies defaults, parses durations and validates the config.
func (c *Config) finalize() error {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.UserAgent == "" {
		c.UserAgent = "swr-proxy/" + version
	}
	if c.Store.Kind == "" {
		c.Store.Kind = "sqlite"
	}

	if c.Origin == "" {
		return ErrMissingOrigin
	}
	originURL, err := url.Parse(c.Origin)
	if err != nil || (originURL.Scheme != "http" && originURL.Scheme != "https") || originURL.Host == "" {
		return zerr.With(ErrInvalidOrigin, "origin", c.Origin)
	}
	c.originURL = originURL

	durations := []struct {
		field string
		raw   string
		dst   *time.Duration
		def   time.Duration
	}{
		{"timeToStale", c.TimeToStale, &c.timeToStale, swr.DefaultTimeToStale},
		{"cacheReadTimeout", c.CacheReadTimeout, &c.cacheReadTimeout, swr.DefaultCacheReadTimeout},
		{"originTimeout", c.OriginTimeout, &c.originTimeout, swr.DefaultOriginTimeout},
		{"statsEvery", c.StatsEvery, &c.statsEvery, 0},
		{"store.retention", c.Store.Retention, &c.Store.retention, 0},
	}
	for _, d := range durations {
		if d.raw == "" {
			*d.dst = d.def
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil || parsed < 0 {
			return zerr.With(zerr.With(ErrInvalidDuration, "field", d.field), "value", d.raw)
		}
		*d.dst = parsed
	}

	switch c.Store.Kind {
	case "memory", "sqlite":
	case "leveldb":
		if c.Store.Path == "" {
			return zerr.With(ErrMissingPath, "kind", c.Store.Kind)
		}
	case "redis":
		if c.Store.Redis == "" {
			c.Store.Redis = "localhost:6379"
		}
	default:
		return zerr.With(ErrUnknownStore, "kind", c.Store.Kind)
	}

	if c.Auth != nil && (c.Auth.ClientID == "" || c.Auth.TokenURL == "") {
		return ErrIncompleteAuth
	}
	return nil
}

// loadConfig reads the config file, if any, applies the overrides and validates the result.
func loadConfig(filename string, overrides Config) (Config, error) {
	var config Config
	if filename != "" {
		var err error
		if config, err = readConfig(filename); err != nil {
			return config, err
		}
	}
	config.merge(overrides)
	err := config.finalize()
	return config, err
}
