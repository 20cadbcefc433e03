package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"mftracker/internal/quote"
)

// entry stores a cached quote with expiry.
type entry struct {
	expiresAt time.Time
	quote     quote.Quote
}

// Fetcher caches successful quotes per URL for a TTL. Concurrent fetches of
// the same URL share one upstream request. Failures are never cached.
type Fetcher struct {
	F        quote.Fetcher
	TTL      time.Duration
	MaxItems int

	mu    sync.RWMutex
	items map[string]entry // key: url
	sf    singleflight.Group
}

// Fetch returns the cached quote for url when still valid, fetching it otherwise.
func (c *Fetcher) Fetch(ctx context.Context, url string) (quote.Quote, error) {
	if c.TTL <= 0 {
		return c.F.Fetch(ctx, url)
	}

	c.mu.RLock()
	e, ok := c.items[url]
	c.mu.RUnlock()
	if ok && time.Now().Before(e.expiresAt) {
		return e.quote, nil
	}

	v, err, _ := c.sf.Do(url, func() (any, error) {
		q, err := c.F.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		c.store(url, q)
		return q, nil
	})
	if err != nil {
		return quote.Quote{}, err
	}
	return v.(quote.Quote), nil
}

func (c *Fetcher) store(url string, q quote.Quote) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]entry)
	}
	c.items[url] = entry{expiresAt: now.Add(c.TTL), quote: q}

	// best-effort cap: drop expired entries first, then arbitrary ones
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		for k, v := range c.items {
			if now.After(v.expiresAt) {
				delete(c.items, k)
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if k != url {
				delete(c.items, k)
			}
		}
	}
}

// Len reports the number of cached entries, expired or not.
func (c *Fetcher) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
