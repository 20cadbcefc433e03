package quote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"mftracker/internal/charset"
)

// Fetch issues a single GET for pageURL and extracts its quote. The request
// is bounded by ctx and by the timeout of the underlying HTTP client.
func (c *Client) Fetch(ctx context.Context, pageURL string) (Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: creating request: %v", ErrFetch, err)
	}
	req.Header = c.header.Clone()
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: GET %s: %v", ErrFetch, pageURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return Quote{}, fmt.Errorf("%w: GET %s -> %d", ErrFetch, pageURL, res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, c.maxBodyBytes))
	if err != nil {
		return Quote{}, fmt.Errorf("%w: reading %s: %v", ErrFetch, pageURL, err)
	}

	declared := charset.FromContentType(res.Header.Get("Content-Type"))
	doc, err := charset.Decode(body, declared, c.encodings)
	if err != nil {
		return Quote{}, fmt.Errorf("decoding %s: %w", pageURL, err)
	}

	q, err := ParsePage(doc)
	if err != nil {
		return Quote{}, fmt.Errorf("parsing %s: %w", pageURL, err)
	}
	q.FetchedAt = time.Now().UTC()
	return q, nil
}
