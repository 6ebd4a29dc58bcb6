// Package swr is a stale-while-revalidate cache for outbound HTTP requests.
//
// A Client wraps an HTTP transport. GET responses with status 200 are stored,
// served from the store while fresh, and served stale while a background worker
// refreshes them. Every other request passes straight through to the transport.
package swr

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/always-cache/swr/cache"
	cachekey "github.com/always-cache/swr/pkg/cache-key"
	cachestatus "github.com/always-cache/swr/pkg/cache-status"
	serializer "github.com/always-cache/swr/pkg/response-serializer"
	"github.com/always-cache/swr/pkg/revalidation"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTimeToStale       = time.Minute
	DefaultCacheReadTimeout  = 200 * time.Millisecond
	DefaultCacheWriteTimeout = 200 * time.Millisecond
	DefaultOriginTimeout     = 2 * time.Second
)

// Transport executes HTTP requests. *http.Client satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	// Storage for cache entries. An in-memory store is used if nil.
	Store cache.Store
	// Transport used for origin requests. http.DefaultClient is used if nil.
	Transport Transport
	// How long a stored response is served without revalidation.
	// Applied uniformly to every cached request. Zero means DefaultTimeToStale.
	TimeToStale time.Duration
	// Upper bound for a cache read. A slower read is treated as a miss.
	CacheReadTimeout time.Duration
	// Upper bound for a cache write. Writes run in the background
	// and never hold up the response.
	CacheWriteTimeout time.Duration
	// Upper bound for an origin request, including reading the body.
	OriginTimeout time.Duration
	// Maximum number of stale requests waiting for revalidation.
	// The oldest is dropped when full.
	QueueSize int
	// Number of concurrent background revalidations.
	RevalidationWorkers int
	// Prefix for all cache keys. Use it to keep clients apart in a shared store.
	KeyPrefix string
	// If set, responses to GET requests get a Cache-Status header naming this cache.
	CacheStatusName string
	// Clock used for staleness decisions. The real clock is used if nil.
	Clock clockwork.Clock
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
}

type Client struct {
	store             cache.Store
	transport         Transport
	keyer             cachekey.CacheKeyer
	clock             clockwork.Clock
	log               zerolog.Logger
	timeToStale       time.Duration
	cacheReadTimeout  time.Duration
	cacheWriteTimeout time.Duration
	originTimeout     time.Duration
	statusName        string
	scheduler         *revalidation.Scheduler
	inflight          singleflight.Group
	stats             counters
	// detached cache writes from the miss path
	writes sync.WaitGroup
}

// CreateClient initializes the caching client.
// It starts the background revalidation workers; stop them with Close.
func CreateClient(config Config) *Client {
	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}
	if config.KeyPrefix != "" {
		logger = logger.With().Str("prefix", config.KeyPrefix).Logger()
	}

	c := &Client{
		store:             config.Store,
		transport:         config.Transport,
		keyer:             cachekey.NewCacheKeyer(config.KeyPrefix),
		clock:             config.Clock,
		log:               logger,
		timeToStale:       orDefault(config.TimeToStale, DefaultTimeToStale),
		cacheReadTimeout:  orDefault(config.CacheReadTimeout, DefaultCacheReadTimeout),
		cacheWriteTimeout: orDefault(config.CacheWriteTimeout, DefaultCacheWriteTimeout),
		originTimeout:     orDefault(config.OriginTimeout, DefaultOriginTimeout),
		statusName:        config.CacheStatusName,
	}
	if c.store == nil {
		c.store = cache.NewMemStore()
	}
	if c.transport == nil {
		c.transport = http.DefaultClient
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	c.scheduler = revalidation.NewScheduler(revalidation.Config{
		Capacity: config.QueueSize,
		Workers:  config.RevalidationWorkers,
		Handler:  c.revalidate,
		Logger:   logger,
	})
	return c
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Do executes the request, answering GET requests from the cache when possible.
// Errors are the transport's own; a failing or slow store only ever results in a miss.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		c.stats.passthroughs.Add(1)
		c.log.Trace().Str("method", req.Method).Str("url", req.URL.String()).Msg("Passing request through")
		return c.transport.Do(req)
	}

	key := c.keyer.GetKey(req)
	log := c.log.With().Str("key", key).Str("url", req.URL.String()).Logger()

	entry, found, healthy := c.readEntry(req.Context(), key, log)
	if found {
		sRes, err := serializer.BytesToStoredResponse(entry.Response, req)
		if err == nil {
			return c.sendStoredResponse(req, sRes, entry, log), nil
		}
		c.stats.storeReadErrors.Add(1)
		log.Error().Err(err).Msg("Could not parse stored response, treating as miss")
		healthy = false
	}

	cs := cachestatus.CacheStatus{}
	if healthy {
		cs.Forward(cachestatus.FwdReasonUriMiss)
	} else {
		cs.Forward(cachestatus.FwdReasonMiss)
	}
	return c.miss(req, key, cs, log)
}

// RoundTrip implements http.RoundTripper, so the client can serve as the
// transport of an http.Client or a reverse proxy.
func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	return c.Do(req)
}

// Close stops the revalidation workers, waiting for running revalidations
// and for cache writes already started. Pending revalidations are discarded.
// Close may be called more than once.
func (c *Client) Close() {
	c.scheduler.Close()
	c.writes.Wait()
}

func (c *Client) sendStoredResponse(req *http.Request, sRes serializer.TimedResponse, entry cache.Entry, log zerolog.Logger) *http.Response {
	now := c.clock.Now()
	res := sRes.Response

	cs := cachestatus.CacheStatus{}
	cs.Hit()
	cs.SetTTL(int(entry.StaleAt.Sub(now) / time.Second))
	if entry.IsStale(now) {
		c.stats.staleHits.Add(1)
		cs.Detail = "stale"
		log.Debug().Time("staleAt", entry.StaleAt).Msg("Serving stale response, revalidating in background")
		// the queued copy must outlive the caller's request
		c.scheduler.Offer(req.Clone(context.WithoutCancel(req.Context())))
	} else {
		c.stats.freshHits.Add(1)
		log.Trace().Time("staleAt", entry.StaleAt).Msg("Serving fresh response")
	}

	age := now.Sub(sRes.ResponseTime)
	if age < 0 {
		age = 0
	}
	res.Header.Set("Age", strconv.Itoa(int(age/time.Second)))
	c.setCacheStatus(res, cs)
	return res
}

func (c *Client) miss(req *http.Request, key string, cs cachestatus.CacheStatus, log zerolog.Logger) (*http.Response, error) {
	c.stats.misses.Add(1)
	log.Trace().Msg("Forwarding to origin")
	res, responseTime, err := c.fetch(req.Context(), req)
	if err != nil {
		log.Warn().Err(err).Msg("Could not fetch response from origin")
		return nil, err
	}
	if res.StatusCode == http.StatusOK {
		cs.Stored = c.saveDetached(req.Context(), key, res, responseTime, log)
	} else {
		log.Debug().Int("status", res.StatusCode).Msg("Not storing response")
	}
	c.setCacheStatus(res, cs)
	return res, nil
}

func (c *Client) setCacheStatus(res *http.Response, cs cachestatus.CacheStatus) {
	if c.statusName == "" {
		return
	}
	if res.Header == nil {
		res.Header = make(http.Header)
	}
	res.Header.Add("Cache-Status", cs.String(c.statusName))
}
