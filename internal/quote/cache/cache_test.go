package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mftracker/internal/quote"
)

func TestFetch_CachesSuccessWithinTTL(t *testing.T) {
	var calls atomic.Int32
	c := &Fetcher{
		F: quote.FetcherFunc(func(context.Context, string) (quote.Quote, error) {
			calls.Add(1)
			return quote.Quote{Price: 10, Change: 1}, nil
		}),
		TTL: time.Minute,
	}

	for i := 0; i < 3; i++ {
		q, err := c.Fetch(t.Context(), "https://example.test/a")
		require.NoError(t, err)
		require.Equal(t, 10.0, q.Price)
	}
	require.Equal(t, int32(1), calls.Load())
}

func TestFetch_FailuresAreNotCached(t *testing.T) {
	var calls atomic.Int32
	c := &Fetcher{
		F: quote.FetcherFunc(func(context.Context, string) (quote.Quote, error) {
			calls.Add(1)
			return quote.Quote{}, quote.ErrFetch
		}),
		TTL: time.Minute,
	}

	for i := 0; i < 2; i++ {
		_, err := c.Fetch(t.Context(), "https://example.test/down")
		require.True(t, errors.Is(err, quote.ErrFetch))
	}
	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, 0, c.Len())
}

func TestFetch_CoalescesConcurrentRequests(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := &Fetcher{
		F: quote.FetcherFunc(func(context.Context, string) (quote.Quote, error) {
			calls.Add(1)
			<-release
			return quote.Quote{Price: 5}, nil
		}),
		TTL: time.Minute,
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q, err := c.Fetch(t.Context(), "https://example.test/same")
			assert.NoError(t, err)
			assert.Equal(t, 5.0, q.Price)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
}

func TestFetch_MaxItemsBound(t *testing.T) {
	c := &Fetcher{
		F: quote.FetcherFunc(func(_ context.Context, url string) (quote.Quote, error) {
			return quote.Quote{Price: float64(len(url))}, nil
		}),
		TTL:      time.Minute,
		MaxItems: 2,
	}
	for _, u := range []string{"a", "bb", "ccc", "dddd"} {
		_, err := c.Fetch(t.Context(), u)
		require.NoError(t, err)
	}
	require.LessOrEqual(t, c.Len(), 2)
}

func TestFetch_ZeroTTLPassesThrough(t *testing.T) {
	var calls atomic.Int32
	c := &Fetcher{F: quote.FetcherFunc(func(context.Context, string) (quote.Quote, error) {
		calls.Add(1)
		return quote.Quote{}, nil
	})}
	for i := 0; i < 2; i++ {
		_, err := c.Fetch(t.Context(), "u")
		require.NoError(t, err)
	}
	require.Equal(t, int32(2), calls.Load())
}
