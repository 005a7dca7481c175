// pkg/fetch/client.go
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"

	"github.com/arc-language/refdata/pkg/metrics"
)

// NewClient creates a new HTTP client with retries
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	policy := DefaultRetryPolicy()
	if cfg.Retry != nil {
		policy = *cfg.Retry
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        8,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	logger := cfg.Logger
	if logger == nil {
		if cfg.Debug {
			logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "fetch", Level: log.DebugLevel})
		} else {
			logger = log.New(io.Discard)
		}
	}

	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.Noop{}
	}

	return &Client{
		httpClient: &http.Client{Transport: transport},
		userAgent:  userAgent,
		timeout:    cfg.Timeout,
		policy:     policy,
		logger:     logger,
		metrics:    rec,
	}
}

// WithTimeout returns a copy of the client using a different per-call budget.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	cp := *c
	cp.timeout = timeout
	return &cp
}

// Get performs a GET request and returns the successful response.
// The caller must close the body; closing it also releases the call's timeout.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, url)
}

// Head performs a HEAD request.
func (c *Client) Head(ctx context.Context, url string) (*http.Response, error) {
	return c.Do(ctx, http.MethodHead, url)
}

// Open returns the body of a successful GET as a stream.
func (c *Client) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Download copies the body of a successful GET into w and returns the byte count.
func (c *Client) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.CopyBuffer(w, resp.Body, make([]byte, copyBufferSize))
	if err != nil {
		return n, &Error{Method: http.MethodGet, URL: url, Attempts: 1, Err: fmt.Errorf("reading body: %w", err)}
	}
	return n, nil
}

// GetBytes fetches a URL and returns the whole body. Only meant for small documents.
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Method: http.MethodGet, URL: url, Attempts: 1, Err: fmt.Errorf("reading body: %w", err)}
	}
	return body, nil
}

// Do performs a request under the client's retry policy.
func (c *Client) Do(ctx context.Context, method, url string) (*http.Response, error) {
	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		cancel()
		return nil, &Error{Method: method, URL: url, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)

	state := &budget{policy: c.policy}
	retryable := c.policy.retriesMethod(method)

	var resp *http.Response
	operation := func() error {
		state.attempts++

		r, err := c.httpClient.Do(req)
		if err != nil {
			c.metrics.IncFetch("error")
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if !retryable || !state.spend(classify(err)) {
				return backoff.Permanent(err)
			}
			return err
		}

		if r.StatusCode >= 200 && r.StatusCode < 300 {
			c.metrics.IncFetch("ok")
			resp = r
			return nil
		}

		c.metrics.IncFetch("status")
		drain(r.Body)
		statusErr := &StatusError{Code: r.StatusCode}
		if !retryable || !c.policy.retriesStatus(r.StatusCode) {
			return backoff.Permanent(statusErr)
		}
		state.spend(reasonStatus)
		state.hint = retryAfter(r.Header, time.Now())
		return statusErr
	}

	schedule := backoff.WithContext(
		backoff.WithMaxRetries(
			&hintedBackOff{BackOff: c.policy.newBackOff(), budget: state, max: c.policy.MaxBackoff},
			uint64(c.policy.MaxAttempts-1),
		),
		ctx,
	)

	notify := func(err error, wait time.Duration) {
		c.metrics.IncRetry(state.reason)
		c.logger.Debug("retrying request",
			"method", method, "url", url, "attempt", state.attempts,
			"reason", state.reason, "wait", wait, "err", err)
	}

	if err := backoff.RetryNotify(operation, schedule, notify); err != nil {
		cancel()
		c.logger.Debug("request failed", "method", method, "url", url, "attempts", state.attempts, "err", err)
		return nil, &Error{Method: method, URL: url, Attempts: state.attempts, Err: err}
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// drain discards a bounded amount of an unwanted body so the connection can be reused.
func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	body.Close()
}

// cancelOnClose ties the lifetime of a call's timeout to its response body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
