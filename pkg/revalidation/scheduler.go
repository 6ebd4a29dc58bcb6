package revalidation

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

const DefaultWorkers = 4

// Handler refreshes the response for a request.
type Handler func(*http.Request)

type Config struct {
	// Maximum number of pending requests. Defaults to DefaultCapacity.
	Capacity int
	// Number of concurrent refreshes. Defaults to DefaultWorkers.
	Workers int
	Handler Handler
	Logger  zerolog.Logger
}

// Scheduler decouples noticing staleness from performing the refresh.
// Offered requests are queued in a SlidingQueue and drained by a fixed pool of workers,
// so the number of concurrent refreshes never exceeds the worker count.
type Scheduler struct {
	queue   *SlidingQueue[*http.Request]
	handler Handler
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// NewScheduler creates the scheduler and starts its workers.
func NewScheduler(config Config) *Scheduler {
	workers := config.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		queue:   NewSlidingQueue[*http.Request](config.Capacity),
		handler: config.Handler,
		log:     config.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.work()
	}
	return s
}

// Offer queues the request for revalidation. It never blocks.
func (s *Scheduler) Offer(r *http.Request) {
	if s.ctx.Err() != nil {
		return
	}
	if !s.queue.Offer(r) {
		s.log.Debug().Str("url", r.URL.String()).Msg("Revalidation queue full, dropped oldest request")
	}
}

// Pending returns the number of queued requests.
func (s *Scheduler) Pending() int {
	return s.queue.Len()
}

// Dropped returns the number of requests dropped because the queue was full.
func (s *Scheduler) Dropped() int64 {
	return s.queue.Dropped()
}

// Close stops the workers and waits for running refreshes to finish.
// Queued requests are discarded. Close is safe to call multiple times.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.log.Trace().Int("discarded", s.queue.Len()).Msg("Revalidation scheduler stopped")
	})
}

func (s *Scheduler) work() {
	defer s.wg.Done()
	for {
		r, ok := s.queue.Poll()
		if !ok {
			select {
			case <-s.ctx.Done():
				return
			case <-s.queue.Ready():
				continue
			}
		}
		if s.ctx.Err() != nil {
			return
		}
		// wake another worker if there is more to do
		if s.queue.Len() > 0 {
			s.queue.signal()
		}
		s.handler(r)
	}
}
