package quote

import (
	"net/http"

	"mftracker/internal/charset"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=quote_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// defaultMaxBodyBytes bounds how much of a quote page is read.
const defaultMaxBodyBytes = 8 << 20

// Client fetches instrument quote pages and extracts their quote.
type Client struct {
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// encodings are tried, in order, after the charset declared by the response.
	encodings []string
	// maxBodyBytes caps the page size read from the server.
	maxBodyBytes int64
}

// ClientOption is a configuration option for Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for page requests.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithEncodings replaces the fallback encodings list.
func WithEncodings(encodings []string) ClientOption {
	return func(c *Client) {
		if len(encodings) > 0 {
			c.encodings = append([]string(nil), encodings...)
		}
	}
}

// WithMaxBodyBytes caps the number of body bytes read per page.
func WithMaxBodyBytes(n int64) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// NewClient creates a quote page client.
func NewClient(options ...ClientOption) *Client {
	var client = &Client{
		httpClient:   http.DefaultClient,
		header:       http.Header{},
		encodings:    append([]string(nil), charset.DefaultFallbacks...),
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, option := range options {
		option(client)
	}
	return client
}
