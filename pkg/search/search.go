// Package search queries the public skills directory.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/fxding/forks/pkg/logger"
	"github.com/fxding/forks/pkg/version"
)

const (
	// DefaultEndpoint is the skills.sh search API.
	DefaultEndpoint = "https://skills.sh/api/search"
	// DefaultLimit is the number of results requested per query.
	DefaultLimit = 10
	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 10 * time.Second
	// MinQueryLength is the shortest query sent to the endpoint.
	MinQueryLength = 2

	maxAttempts = 3
)

// Result is a single directory hit.
type Result struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Installs  int    `json:"installs" yaml:"installs"`
	TopSource string `json:"topSource,omitempty" yaml:"topSource,omitempty"`
}

// Source returns the source to install the result from.
func (r Result) Source() string {
	return r.TopSource
}

type response struct {
	Skills []Result `json:"skills"`
}

// statusError is a non-2xx response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("search returned status %d", e.code)
	}
	return fmt.Sprintf("search returned status %d: %s", e.code, e.body)
}

// Client talks to the search endpoint.
type Client struct {
	endpoint   string
	limit      int
	httpClient *http.Client
	retryDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the search URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithLimit sets the result limit.
func WithLimit(limit int) Option {
	return func(c *Client) {
		if limit > 0 {
			c.limit = limit
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetryDelay sets the base delay between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// NewClient creates a search client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		endpoint:   DefaultEndpoint,
		limit:      DefaultLimit,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		retryDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns the directory hits for query. Queries shorter than
// MinQueryLength return no results without a request.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinQueryLength {
		return []Result{}, nil
	}

	reqURL, err := c.buildURL(query)
	if err != nil {
		return nil, err
	}

	var results []Result
	err = retry.Do(
		func() error {
			r, err := c.do(ctx, reqURL)
			if err != nil {
				return err
			}
			results = r
			return nil
		},
		retry.RetryIf(isRetryableError),
		retry.Attempts(maxAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).
				WithField("attempt", n+1).
				WithField("query", query).
				Warn("retrying skill search")
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search skills")
	}
	if results == nil {
		results = []Result{}
	}
	return results, nil
}

func (c *Client) buildURL(query string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", errors.Wrapf(err, "invalid search endpoint %q", c.endpoint)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(c.limit))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, reqURL string) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, retry.Unrecoverable(errors.Wrap(err, "failed to build search request"))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, retry.Unrecoverable(errors.Wrap(err, "failed to decode search response"))
	}
	return out.Skills, nil
}

func isRetryableError(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return true
}
