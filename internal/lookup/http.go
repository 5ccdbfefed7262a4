package lookup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

// ErrUnavailable means the dictionary could not be asked, as opposed to answering "no".
var ErrUnavailable = errors.New("dictionary unavailable")

// ErrNotFound is a definite negative answer.
var ErrNotFound = errors.New("word not found")

const (
	defaultTimeout  = 5 * time.Second
	defaultRetryMax = 3
)

type Option func(*httpGetter)

func WithTimeout(d time.Duration) Option {
	return func(g *httpGetter) {
		if d > 0 {
			g.timeout = d
		}
	}
}

func WithRetry(max int) Option {
	return func(g *httpGetter) { g.retryMax = max }
}

// WithHTTPClient swaps the fasthttp client, mostly for tests.
func WithHTTPClient(c *fasthttp.Client) Option {
	return func(g *httpGetter) {
		if c != nil {
			g.http = c
		}
	}
}

type httpGetter struct {
	http     *fasthttp.Client
	timeout  time.Duration
	retryMax int
}

func newGetter(opts []Option) *httpGetter {
	g := &httpGetter{
		http:     &fasthttp.Client{ReadTimeout: defaultTimeout, WriteTimeout: defaultTimeout, MaxConnsPerHost: 32},
		timeout:  defaultTimeout,
		retryMax: defaultRetryMax,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// get fetches url and hands a 2xx body to decode. 404 maps to ErrNotFound; transport
// failures and retryable statuses are retried, then wrapped in ErrUnavailable.
func (g *httpGetter) get(ctx context.Context, url string, decode func([]byte) error) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(url)
	req.Header.Set("Accept", "application/json")

	attempts := g.retryMax
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		err := g.http.DoDeadline(req, resp, g.deadline(ctx))
		if err == nil {
			status := resp.StatusCode()
			switch {
			case status == fasthttp.StatusNotFound:
				return ErrNotFound
			case status >= 200 && status < 300:
				if derr := decode(resp.Body()); derr != nil {
					return fmt.Errorf("%w: decode: %v", ErrUnavailable, derr)
				}
				return nil
			case !shouldRetryStatus(status):
				return fmt.Errorf("%w: status=%d body=%s", ErrUnavailable, status, truncate(string(resp.Body()), 256))
			}
			err = fmt.Errorf("status=%d", status)
		}
		lastErr = err
		if attempt < attempts {
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				break
			}
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (g *httpGetter) deadline(ctx context.Context) time.Time {
	own := time.Now().Add(g.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 5 {
		attempt = 5
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
