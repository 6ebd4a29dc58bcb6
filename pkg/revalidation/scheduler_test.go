package revalidation

import (
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"testing/synctest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(t *testing.T, path string) *http.Request {
	t.Helper()
	r, err := http.NewRequest(http.MethodGet, "http://registry.test"+path, nil)
	require.NoError(t, err)
	return r
}

func TestScheduler_HandlesOfferedRequests(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var mu sync.Mutex
		var seen []string
		s := NewScheduler(Config{
			Workers: 2,
			Logger:  zerolog.Nop(),
			Handler: func(r *http.Request) {
				mu.Lock()
				seen = append(seen, r.URL.Path)
				mu.Unlock()
			},
		})
		defer s.Close()

		s.Offer(newRequest(t, "/a"))
		s.Offer(newRequest(t, "/b"))
		synctest.Wait()

		mu.Lock()
		defer mu.Unlock()
		assert.ElementsMatch(t, []string{"/a", "/b"}, seen)
		assert.Equal(t, 0, s.Pending())
	})
}

func TestScheduler_BoundsConcurrency(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		release := make(chan struct{})
		var running, maxRunning, handled atomic.Int64
		s := NewScheduler(Config{
			Workers: 2,
			Logger:  zerolog.Nop(),
			Handler: func(r *http.Request) {
				n := running.Add(1)
				for {
					m := maxRunning.Load()
					if n <= m || maxRunning.CompareAndSwap(m, n) {
						break
					}
				}
				<-release
				running.Add(-1)
				handled.Add(1)
			},
		})
		defer s.Close()

		for i := 0; i < 6; i++ {
			s.Offer(newRequest(t, "/works"))
		}
		synctest.Wait()
		assert.EqualValues(t, 2, running.Load())
		assert.Equal(t, 4, s.Pending())

		close(release)
		synctest.Wait()
		assert.EqualValues(t, 6, handled.Load())
		assert.EqualValues(t, 2, maxRunning.Load())
	})
}

func TestScheduler_OfferNeverBlocksWhenSaturated(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		release := make(chan struct{})
		s := NewScheduler(Config{
			Capacity: 3,
			Workers:  1,
			Logger:   zerolog.Nop(),
			Handler:  func(r *http.Request) { <-release },
		})

		// occupy the only worker
		s.Offer(newRequest(t, "/deposits"))
		synctest.Wait()

		for i := 0; i < 9; i++ {
			s.Offer(newRequest(t, "/deposits"))
		}
		// the queue holds the newest three
		assert.Equal(t, 3, s.Pending())
		assert.EqualValues(t, 6, s.Dropped())

		close(release)
		s.Close()
	})
}

func TestScheduler_CloseIsIdempotent(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var handled atomic.Int64
		s := NewScheduler(Config{
			Logger:  zerolog.Nop(),
			Handler: func(r *http.Request) { handled.Add(1) },
		})
		s.Close()
		s.Close()

		s.Offer(newRequest(t, "/late"))
		synctest.Wait()
		assert.EqualValues(t, 0, handled.Load())
	})
}
