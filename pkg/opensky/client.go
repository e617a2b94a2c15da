package opensky

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public OpenSky REST endpoint
	DefaultBaseURL = "https://opensky-network.org/api"

	// DefaultTimeout for API requests
	DefaultTimeout = 10 * time.Second
)

// Config contains configuration for the OpenSky client.
type Config struct {
	// BaseURL defaults to DefaultBaseURL
	BaseURL string

	// Username and Password enable authenticated access with higher quotas.
	// Both empty means anonymous access.
	Username string
	Password string

	// MinInterval is the minimum time between requests.
	// Anonymous users get new data every 10 seconds, authenticated every 5.
	MinInterval time.Duration

	Timeout time.Duration
}

// Client implements DataSource for the OpenSky REST API.
type Client struct {
	baseURL     string
	username    string
	password    string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient creates a new OpenSky API client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	// Zero interval disables limiting (used by tests against httptest servers)
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: rate.NewLimiter(limit, 1),
	}
}

// GetStates returns all state vectors inside box (or worldwide for a zero box).
func (c *Client) GetStates(ctx context.Context, box BoundingBox) ([]StateVector, int64, error) {
	q := url.Values{}
	if !box.IsZero() {
		q.Set("lamin", strconv.FormatFloat(box.LaMin, 'f', 4, 64))
		q.Set("lomin", strconv.FormatFloat(box.LoMin, 'f', 4, 64))
		q.Set("lamax", strconv.FormatFloat(box.LaMax, 'f', 4, 64))
		q.Set("lomax", strconv.FormatFloat(box.LoMax, 'f', 4, 64))
	}
	q.Set("extended", "1")

	decoded, err := c.fetchStates(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	return decoded.States, decoded.Time, nil
}

// GetState returns the current state vector for one aircraft, or nil when the
// feed has nothing for it.
func (c *Client) GetState(ctx context.Context, icao24 string) (*StateVector, error) {
	q := url.Values{}
	q.Set("icao24", strings.ToLower(icao24))
	q.Set("extended", "1")

	decoded, err := c.fetchStates(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(decoded.States) == 0 {
		return nil, nil
	}
	sv := decoded.States[0]
	return &sv, nil
}

// Close is a no-op; the client holds no persistent connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) fetchStates(ctx context.Context, q url.Values) (Decoded, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return Decoded{}, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := fmt.Sprintf("%s/states/all?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Decoded{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Decoded{}, fmt.Errorf("failed to fetch states: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return Decoded{}, &RateLimitError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header),
			Remaining:  parseRemaining(resp.Header),
			Message:    "Rate limit exceeded",
		}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Decoded{}, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return DecodeStates(resp.Body)
}

// StatusError is returned for any non-200, non-429 response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}

// RateLimitError represents an HTTP 429 response with retry information.
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration

	// Remaining is the X-Rate-Limit-Remaining credit count, -1 if absent
	Remaining int
	Message   string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// IsRateLimitError checks if err is or wraps a rate limit error.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// parseRetryAfter reads OpenSky's X-Rate-Limit-Retry-After-Seconds header and
// falls back to the standard Retry-After (delay-seconds or HTTP-date).
func parseRetryAfter(headers http.Header) time.Duration {
	if v := headers.Get("X-Rate-Limit-Retry-After-Seconds"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	retryAfter := headers.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if retryTime, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(retryTime); d > 0 {
			return d
		}
	}
	return 0
}

func parseRemaining(headers http.Header) int {
	if v := headers.Get("X-Rate-Limit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return -1
}
