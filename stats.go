package swr

import "sync/atomic"

type counters struct {
	freshHits            atomic.Int64
	staleHits            atomic.Int64
	misses               atomic.Int64
	passthroughs         atomic.Int64
	storeReadErrors      atomic.Int64
	storeReadTimeouts    atomic.Int64
	storeWrites          atomic.Int64
	storeWriteErrors     atomic.Int64
	revalidations        atomic.Int64
	revalidationFailures atomic.Int64
}

// Stats is a snapshot of the client's counters since creation.
type Stats struct {
	FreshHits            int64 `json:"freshHits"`
	StaleHits            int64 `json:"staleHits"`
	Misses               int64 `json:"misses"`
	Passthroughs         int64 `json:"passthroughs"`
	StoreReadErrors      int64 `json:"storeReadErrors"`
	StoreReadTimeouts    int64 `json:"storeReadTimeouts"`
	StoreWrites          int64 `json:"storeWrites"`
	StoreWriteErrors     int64 `json:"storeWriteErrors"`
	Revalidations        int64 `json:"revalidations"`
	RevalidationFailures int64 `json:"revalidationFailures"`
	RevalidationsPending int   `json:"revalidationsPending"`
	RevalidationsDropped int64 `json:"revalidationsDropped"`
}

func (c *Client) Stats() Stats {
	return Stats{
		FreshHits:            c.stats.freshHits.Load(),
		StaleHits:            c.stats.staleHits.Load(),
		Misses:               c.stats.misses.Load(),
		Passthroughs:         c.stats.passthroughs.Load(),
		StoreReadErrors:      c.stats.storeReadErrors.Load(),
		StoreReadTimeouts:    c.stats.storeReadTimeouts.Load(),
		StoreWrites:          c.stats.storeWrites.Load(),
		StoreWriteErrors:     c.stats.storeWriteErrors.Load(),
		Revalidations:        c.stats.revalidations.Load(),
		RevalidationFailures: c.stats.revalidationFailures.Load(),
		RevalidationsPending: c.scheduler.Pending(),
		RevalidationsDropped: c.scheduler.Dropped(),
	}
}
