package quote

import (
	"context"
	"errors"
	"time"

	"mftracker/internal/charset"
)

var (
	// ErrFetch covers transport failures, timeouts and non-2xx responses.
	ErrFetch = errors.New("fetch failed")
	// ErrEncoding is returned when the page body cannot be decoded.
	ErrEncoding = charset.ErrEncoding
	// ErrParse is returned when neither known page layout is present.
	ErrParse = errors.New("quote markup not found")
)

// Quote is a point-in-time observation for one instrument.
// ChangePercent is kept as reported and is informational only.
type Quote struct {
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent string    `json:"change_percent"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// Fetcher retrieves the quote published at url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Quote, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) (Quote, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) (Quote, error) { return f(ctx, url) }
