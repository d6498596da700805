package httpx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client wraps resty.Client with timeout handling and optional debug logging.
// Mirror failover is the caller's concern; the client itself only retries
// transient failures against the same host.
type Client struct {
	resty   *resty.Client
	timeout time.Duration
	logger  *slog.Logger
}

// ClientConfig holds configuration for the HTTP client
type ClientConfig struct {
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string
	Debug      bool
	Logger     *slog.Logger
}

// NewClient creates a new HTTP client with the given configuration
func NewClient(config ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 8 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "kidtube/1.0"
	}

	rc := resty.New().
		SetTimeout(config.Timeout).
		SetRetryCount(config.MaxRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("User-Agent", config.UserAgent).
		SetHeader("Accept", "application/json")

	rc.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() >= 500 || r.StatusCode() == 429
	})

	c := &Client{
		resty:   rc,
		timeout: config.Timeout,
		logger:  config.Logger,
	}

	if config.Debug && config.Logger != nil {
		rc.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			c.logger.Debug("http request", "method", r.Method, "url", r.URL)
			return nil
		})
		rc.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
			c.logger.Debug("http response",
				"status", r.StatusCode(),
				"url", r.Request.URL,
				"time", r.Time(),
			)
			return nil
		})
	}

	return c
}

// GetJSON performs a GET request and unmarshals the JSON response into out
func (c *Client) GetJSON(ctx context.Context, url string, params map[string]string, out any) error {
	req := c.resty.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(out)

	resp, err := req.Get(url)
	if err != nil {
		return fmt.Errorf("GET request failed for %s: %w", url, err)
	}

	if resp.StatusCode() >= 400 {
		return &StatusError{URL: url, StatusCode: resp.StatusCode()}
	}

	return nil
}

// Timeout returns the configured per-request timeout
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// StatusError reports a non-success HTTP status
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error %d for %s", e.StatusCode, e.URL)
}
