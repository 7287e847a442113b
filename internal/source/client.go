package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/prism/internal/retry"
	"github.com/desertthunder/prism/internal/shared"
)

const (
	// DefaultUserAgent mimics a desktop browser; Substack serves bots a stripped page.
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	DefaultTimeout   = 20 * time.Second
	DefaultRetries   = 3
)

// FetchError reports a non-success HTTP status for a source URL.
type FetchError struct {
	URL    string
	Status int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

func (e *FetchError) Unwrap() error { return shared.ErrFetchFailed }

// Client fetches archive listings, feeds and post pages.
type Client struct {
	httpClient *http.Client
	userAgent  string
	maxRetries int
	pageSize   int
	maxPages   int
	pageDelay  time.Duration
	sleep      func(context.Context, time.Duration) error
	logger     *log.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client, whose timeout is [DefaultTimeout].
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSleep replaces the context-aware sleep used for throttling and backoff.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithLogger sets the logger used for progress messages.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient builds a Client from the source section of the config.
func NewClient(cfg shared.SourceConfig, opts ...Option) *Client {
	c := &Client{
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		pageSize:   cfg.PageSize,
		maxPages:   cfg.MaxPages,
		pageDelay:  shared.Seconds(cfg.PageDelay),
		sleep:      retry.Sleep,
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultRetries
	}
	if c.pageSize <= 0 {
		c.pageSize = 20
	}
	if c.maxPages <= 0 {
		c.maxPages = 1000
	}

	timeout := DefaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c.httpClient = &http.Client{Timeout: timeout}

	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = shared.NewLogger(io.Discard)
	}
	return c
}

// Get fetches url and returns the response body.
//
// HTTP 429 is retried up to the configured limit, waiting for Retry-After when the server sends one and backing off
// exponentially otherwise. Any other non-2xx status yields a [*FetchError].
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	backoff := time.Second
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", shared.ErrFetchFailed, url, err)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests && attempt < c.maxRetries:
			wait := retryAfter(resp.Header.Get("Retry-After"), time.Now())
			if wait <= 0 {
				wait = backoff
				backoff *= 2
			}
			c.logger.Warn("rate limited, backing off", "url", url, "wait", wait, "attempt", attempt+1)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, &FetchError{URL: url, Status: resp.StatusCode}
		}

		if readErr != nil {
			return nil, fmt.Errorf("failed to read response from %s: %w", url, readErr)
		}
		return body, nil
	}
}

// retryAfter parses a Retry-After header given either as delay-seconds or as an HTTP date.
func retryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(max(secs, 0)) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		return at.Sub(now)
	}
	return 0
}

// IsFetchError reports whether err came from a non-success HTTP status.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
