// Package probely is a small client for the parts of the Probely API used to
// manage scheduled scans. Every call goes through one rate limiter, one
// circuit breaker and the same retry policy.
package probely

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "probely-scheduler/1.0"

// RetryPolicy controls retries of 429 and 5xx responses. Transport errors are never retried.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    500 * time.Millisecond,
		MaxWait:    10 * time.Second,
	}
}

// Observer is called after every HTTP attempt. status is 0 when no response arrived.
type Observer func(method, path string, status int, elapsed time.Duration)

// response is a fully read HTTP response.
type response struct {
	status int
	header http.Header
	body   []byte
}

// retryableStatus marks a 429/5xx answer. Only list calls count it against
// the circuit breaker; a rejected PUT or POST concerns a single target.
type retryableStatus struct {
	status int
	trip   bool
}

func (e *retryableStatus) Error() string {
	return fmt.Sprintf("upstream returned %d", e.status)
}

type Client struct {
	baseURL       string
	token         string
	httpClient    *http.Client
	limiter       *rate.Limiter
	breaker       *gobreaker.CircuitBreaker[*response]
	retry         RetryPolicy
	pageSize      int
	listTimeout   time.Duration
	mutateTimeout time.Duration
	userAgent     string
	requestID     string
	observer      Observer
	sleep         func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPageSize sets the "length" query parameter of list requests.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithTimeouts sets the per-attempt timeout for list and mutation calls.
func WithTimeouts(list, mutate time.Duration) Option {
	return func(c *Client) {
		c.listTimeout = list
		c.mutateTimeout = mutate
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithRateLimit caps requests per second across the whole client.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1) }
}

// WithRequestID tags every request with an X-Request-ID header.
func WithRequestID(id string) Option {
	return func(c *Client) { c.requestID = id }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithSleepFunc replaces the wait between retries. Tests use it to avoid real delays.
func WithSleepFunc(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// New creates a client for the API rooted at baseURL authenticating with token.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("probely: invalid base URL %q", baseURL)
	}

	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		token:         token,
		httpClient:    &http.Client{},
		limiter:       rate.NewLimiter(rate.Limit(5), 1),
		retry:         DefaultRetryPolicy(),
		pageSize:      100,
		listTimeout:   30 * time.Second,
		mutateTimeout: 10 * time.Second,
		userAgent:     defaultUserAgent,
		sleep:         sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        "probely-api",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			var rs *retryableStatus
			if errors.As(err, &rs) {
				return !rs.trip
			}
			return err == nil
		},
	})

	return c, nil
}

// URL returns the absolute URL for an API path.
func (c *Client) URL(path string) string {
	return c.endpoint(path, nil)
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do sends the request, retrying 429/5xx answers. A POST is retried on 429
// only: after a 5xx the schedule may already exist. After the last retry the
// final response is returned without an error so callers can report it.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any, timeout time.Duration) (*response, string, error) {
	target := c.endpoint(path, query)

	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, target, fmt.Errorf("probely: encode %s %s: %w", method, target, err)
		}
	}

	var last *response
	maxAttempts := 1 + c.retry.MaxRetries
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, target, fmt.Errorf("probely: %s %s: %w", method, target, err)
		}

		resp, err := c.breaker.Execute(func() (*response, error) {
			return c.attempt(ctx, method, path, target, body, timeout)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, target, fmt.Errorf("%w: %s %s", ErrCircuitOpen, method, target)
		}
		if err == nil {
			return resp, target, nil
		}
		if resp == nil {
			return nil, target, fmt.Errorf("probely: %s %s: %w", method, target, err)
		}

		last = resp
		if method == http.MethodPost && resp.status != http.StatusTooManyRequests {
			break
		}
		if attempt < maxAttempts-1 {
			if err := c.sleep(ctx, c.backoff(attempt, resp)); err != nil {
				return nil, target, fmt.Errorf("probely: %s %s: %w", method, target, err)
			}
		}
	}
	return last, target, nil
}

func (c *Client) attempt(ctx context.Context, method, path, target string, body []byte, timeout time.Duration) (*response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, err
	}
	req.Header = Headers(c.token)
	req.Header.Set("User-Agent", c.userAgent)
	if c.requestID != "" {
		req.Header.Set("X-Request-ID", c.requestID)
	}

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(method, path, 0, time.Since(start))
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	c.observe(method, path, res.StatusCode, time.Since(start))
	if err != nil {
		return nil, err
	}

	out := &response{status: res.StatusCode, header: res.Header, body: data}
	if out.status >= 500 || out.status == http.StatusTooManyRequests {
		return out, &retryableStatus{status: out.status, trip: method == http.MethodGet}
	}
	return out, nil
}

func (c *Client) observe(method, path string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer(method, "/"+strings.TrimLeft(path, "/"), status, elapsed)
	}
}

// backoff honours Retry-After, otherwise uses exponential backoff with jitter
// clamped to [MinWait, MaxWait].
func (c *Client) backoff(attempt int, resp *response) time.Duration {
	if resp != nil {
		if ra := resp.header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return min(time.Duration(seconds)*time.Second, c.retry.MaxWait)
			}
			if t, err := http.ParseTime(ra); err == nil {
				wait := time.Until(t)
				if wait <= 0 {
					return c.retry.MinWait
				}
				return min(wait, c.retry.MaxWait)
			}
		}
	}

	base := math.Min(float64(c.retry.MinWait)*math.Pow(2, float64(attempt)), float64(c.retry.MaxWait))
	minWait := float64(c.retry.MinWait)
	if base <= minWait {
		return c.retry.MinWait
	}
	return time.Duration(minWait + rand.Float64()*(base-minWait))
}

func decodeJSON(method, target string, r *response, out any) error {
	if err := json.Unmarshal(r.body, out); err != nil {
		return fmt.Errorf("probely: decode %s %s: %w", method, target, err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
