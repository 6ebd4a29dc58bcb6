package swr

import (
	"net/http"
)

// revalidate refreshes the stored response for a request that was served stale.
// It runs on a revalidation worker. The request context is already detached
// from the original caller; each attempt gets its own origin timeout.
// Concurrent revalidations of the same key collapse into one origin request.
// On any failure the stale entry is left in place.
func (c *Client) revalidate(req *http.Request) {
	key := c.keyer.GetKey(req)
	log := c.log.With().Str("key", key).Str("url", req.URL.String()).Logger()

	_, _, shared := c.inflight.Do(key, func() (any, error) {
		c.stats.revalidations.Add(1)
		log.Debug().Msg("Revalidating stale response")

		res, responseTime, err := c.fetch(req.Context(), req)
		if err != nil {
			c.stats.revalidationFailures.Add(1)
			log.Warn().Err(err).Msg("Could not revalidate, keeping stale response")
			return nil, nil
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			c.stats.revalidationFailures.Add(1)
			log.Warn().Int("status", res.StatusCode).Msg("Origin response not cacheable, keeping stale response")
			return nil, nil
		}
		if !c.save(req.Context(), key, res, responseTime, log) {
			c.stats.revalidationFailures.Add(1)
			return nil, nil
		}
		log.Debug().Msg("Revalidated stale response")
		return nil, nil
	})
	if shared {
		log.Trace().Msg("Revalidation shared with concurrent request")
	}
}
