// Package cachestatus renders the Cache-Status response header (RFC 9211).
package cachestatus

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusHit Status = "hit"
	StatusFwd Status = "fwd"
)

type FwdReason string

const (
	// The cache did not contain any responses that matched the
	// request URI.
	FwdReasonUriMiss FwdReason = "uri-miss"

	// The cache did not contain any responses that could be used to
	// satisfy this request.
	FwdReasonMiss FwdReason = "miss"
)

type CacheStatus struct {
	Status    Status
	FwdReason FwdReason
	// Remaining freshness in seconds, negative when stale.
	TimeToLive int
	hasTTL     bool
	// Whether the response was stored as a result of this request.
	Stored bool
	Detail string
}

func (cs *CacheStatus) Hit() {
	cs.Status = StatusHit
	cs.FwdReason = ""
}

func (cs *CacheStatus) Forward(reason FwdReason) {
	cs.Status = StatusFwd
	cs.FwdReason = reason
}

func (cs *CacheStatus) SetTTL(seconds int) {
	cs.TimeToLive = seconds
	cs.hasTTL = true
}

// String renders the header value for the cache with the given name.
func (cs *CacheStatus) String(name string) string {
	parts := []string{name}
	if cs.Status == StatusHit {
		parts = append(parts, string(StatusHit))
	} else if cs.FwdReason != "" {
		parts = append(parts, fmt.Sprintf("fwd=%s", cs.FwdReason))
	}
	if cs.hasTTL {
		parts = append(parts, fmt.Sprintf("ttl=%d", cs.TimeToLive))
	}
	if cs.Stored {
		parts = append(parts, "stored")
	}
	if cs.Detail != "" {
		parts = append(parts, "detail="+cs.Detail)
	}
	return strings.Join(parts, "; ")
}
