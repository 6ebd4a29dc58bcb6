package swr

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// fetch executes req against the origin within the origin timeout.
// The body is read in full before returning, so the timeout covers it too
// and the returned response no longer depends on the connection.
func (c *Client) fetch(ctx context.Context, req *http.Request) (*http.Response, time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, c.originTimeout)
	defer cancel()

	res, err := c.transport.Do(req.WithContext(ctx))
	if err != nil {
		return nil, time.Time{}, err
	}
	var body []byte
	if res.Body != nil && res.Body != http.NoBody {
		body, err = io.ReadAll(res.Body)
		res.Body.Close()
		if err != nil {
			return nil, time.Time{}, err
		}
	}
	res.Body = io.NopCloser(bytes.NewReader(body))
	res.ContentLength = int64(len(body))
	res.TransferEncoding = nil
	// hand back the caller's request, not the one carrying the origin deadline
	res.Request = req
	return res, c.clock.Now(), nil
}
