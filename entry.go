package swr

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/always-cache/swr/cache"
	serializer "github.com/always-cache/swr/pkg/response-serializer"

	"github.com/rs/zerolog"
)

// withDeadline runs op on its own goroutine and waits for it no longer than ctx allows.
// A store that ignores ctx can hold the goroutine, but never the caller.
func withDeadline[T any](ctx context.Context, op func(context.Context) (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := op(ctx)
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// readEntry looks up key within the read timeout.
// The last return value is false if the store failed or was too slow,
// in which case the entry is reported absent.
func (c *Client) readEntry(ctx context.Context, key string, log zerolog.Logger) (cache.Entry, bool, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.cacheReadTimeout)
	defer cancel()

	type lookup struct {
		entry cache.Entry
		found bool
	}
	l, err := withDeadline(ctx, func(ctx context.Context) (lookup, error) {
		entry, found, err := c.store.Get(ctx, key)
		return lookup{entry, found}, err
	})
	switch {
	case err == nil:
		return l.entry, l.found, true
	case errors.Is(err, context.DeadlineExceeded):
		c.stats.storeReadTimeouts.Add(1)
		log.Warn().Dur("timeout", c.cacheReadTimeout).Msg("Cache read timed out, treating as miss")
	case errors.Is(err, context.Canceled):
		log.Debug().Msg("Cache read canceled")
	default:
		c.stats.storeReadErrors.Add(1)
		log.Error().Err(err).Msg("Could not read from cache, treating as miss")
	}
	return cache.Entry{}, false, false
}

// writeEntry stores entry, waiting at most the write timeout.
// A write still running at the deadline is left to finish or fail on its own.
func (c *Client) writeEntry(ctx context.Context, key string, entry cache.Entry, log zerolog.Logger) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cacheWriteTimeout)
	defer cancel()

	_, err := withDeadline(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.store.Set(ctx, key, entry)
	})
	switch {
	case err == nil:
		c.stats.storeWrites.Add(1)
		log.Trace().Time("staleAt", entry.StaleAt).Msg("Stored response")
		return true
	case errors.Is(err, context.DeadlineExceeded):
		c.stats.storeWriteErrors.Add(1)
		log.Warn().Dur("timeout", c.cacheWriteTimeout).Msg("Cache write timed out")
	default:
		c.stats.storeWriteErrors.Add(1)
		log.Error().Err(err).Msg("Could not write to cache")
	}
	return false
}

// newEntry serializes a 200 response into an entry that goes stale after the configured time.
// The response body stays readable.
func (c *Client) newEntry(res *http.Response, responseTime time.Time, log zerolog.Logger) (cache.Entry, bool) {
	b, err := serializer.StoredResponseToBytes(serializer.TimedResponse{
		Response:     res,
		ResponseTime: responseTime,
	})
	if err != nil {
		c.stats.storeWriteErrors.Add(1)
		log.Error().Err(err).Msg("Could not serialize response")
		return cache.Entry{}, false
	}
	return cache.Entry{
		Response: b,
		StaleAt:  c.clock.Now().Add(c.timeToStale),
	}, true
}

// save stores the response and waits for the write (bounded by the write timeout).
// Used where nobody is waiting for a response.
func (c *Client) save(ctx context.Context, key string, res *http.Response, responseTime time.Time, log zerolog.Logger) bool {
	entry, ok := c.newEntry(res, responseTime, log)
	if !ok {
		return false
	}
	return c.writeEntry(ctx, key, entry, log)
}

// saveDetached starts storing the response and returns without waiting for the store.
// It reports whether the write was started. Close waits for started writes.
func (c *Client) saveDetached(ctx context.Context, key string, res *http.Response, responseTime time.Time, log zerolog.Logger) bool {
	entry, ok := c.newEntry(res, responseTime, log)
	if !ok {
		return false
	}
	ctx = context.WithoutCancel(ctx)
	c.writes.Add(1)
	go func() {
		defer c.writes.Done()
		c.writeEntry(ctx, key, entry, log)
	}()
	return true
}
