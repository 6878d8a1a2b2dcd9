package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 500 * time.Millisecond
)

// HTTPSource queries a price service over HTTP.
// Expected response body: {"price": 1.23, "source": "dexscreener", "timestamp": 1700000000000}
type HTTPSource struct {
	endpoint   string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

// HTTPOption configures HTTPSource.
type HTTPOption func(*HTTPSource)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		s.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) HTTPOption {
	return func(s *HTTPSource) {
		s.maxRetries = n
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = client
	}
}

// NewHTTPSource creates a price source backed by an HTTP price service.
func NewHTTPSource(endpoint string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Quote fetches the current price with retry. Returns ErrUnavailable when
// the service answers but has no price for the token.
func (s *HTTPSource) Quote(ctx context.Context, tokenAddress, chainID string) (*Quote, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.retryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		quote, err := s.fetch(ctx, tokenAddress, chainID)
		if err == nil {
			return quote, nil
		}
		if err == ErrUnavailable || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("quote %s on %s: %w", tokenAddress, chainID, lastErr)
}

func (s *HTTPSource) fetch(ctx context.Context, tokenAddress, chainID string) (*Quote, error) {
	u := fmt.Sprintf("%s/price?token=%s&chain=%s",
		s.endpoint, url.QueryEscape(tokenAddress), url.QueryEscape(chainID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("price service returned %d: %s", resp.StatusCode, string(body))
	}

	var quote Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if quote.Price <= 0 {
		return nil, ErrUnavailable
	}
	return &quote, nil
}

var _ Source = (*HTTPSource)(nil)
