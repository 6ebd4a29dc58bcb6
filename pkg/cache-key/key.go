package cachekey

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const methodSeparator = ":"

type CacheKeyer struct {
	// Namespace for all keys produced by this keyer.
	// Use it to keep several clients apart in one shared store.
	Prefix string
}

func NewCacheKeyer(prefix string) CacheKeyer {
	return CacheKeyer{Prefix: prefix}
}

// MethodPrefix gets the key prefix for all requests with the given method.
func (c CacheKeyer) MethodPrefix(method string) string {
	return c.Prefix + strings.ToUpper(method) + methodSeparator
}

// Fingerprint returns the normalized identity of a request: method, URL and query parameters.
// Scheme and host are lower-cased, query keys are sorted and the fragment is dropped.
// Headers and body never take part in the fingerprint.
func (c CacheKeyer) Fingerprint(r *http.Request) string {
	u := r.URL
	host := u.Host
	if host == "" {
		host = r.Host
	}
	var b strings.Builder
	b.WriteString(strings.ToUpper(r.Method))
	b.WriteByte(' ')
	if u.Scheme != "" {
		b.WriteString(strings.ToLower(u.Scheme))
		b.WriteString("://")
	}
	b.WriteString(strings.ToLower(host))
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	b.WriteString(path)
	if query := u.Query().Encode(); query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	return b.String()
}

// GetKey returns the storage key for a request.
// The fingerprint is hashed so that keys stay short and safe for any backend.
func (c CacheKeyer) GetKey(r *http.Request) string {
	return c.MethodPrefix(r.Method) + fmt.Sprintf("%016x", xxhash.Sum64String(c.Fingerprint(r)))
}
