// Package ratelimit paces outbound quote requests on the client side.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"mftracker/internal/quote"
)

// MinInterval wraps a fetcher and enforces a minimum time between request starts.
// Concurrent callers reserve consecutive slots, so a burst of N fetches is
// spread over N intervals. A canceled context returns early.
type MinInterval struct {
	F        quote.Fetcher
	Interval time.Duration

	mu   sync.Mutex
	next time.Time
}

func (m *MinInterval) Fetch(ctx context.Context, url string) (quote.Quote, error) {
	if m.Interval > 0 {
		m.mu.Lock()
		now := time.Now()
		slot := m.next
		if slot.Before(now) {
			slot = now
		}
		m.next = slot.Add(m.Interval)
		m.mu.Unlock()

		if wait := time.Until(slot); wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return quote.Quote{}, ctx.Err()
			case <-t.C:
			}
		}
	}
	return m.F.Fetch(ctx, url)
}
