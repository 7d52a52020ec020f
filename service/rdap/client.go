// Package rdap implements a resilient client for RDAP (Registration Data
// Access Protocol) queries. It turns the unreliable upstream HTTP dependency
// into a bounded operation that always yields either a payload or a
// structured error value.
package rdap

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client defaults.
const (
	defaultRequestTimeout = 10 * time.Second
	defaultMaxRetries     = 2
	defaultMaxRedirects   = 5

	maxResponseSize = 20000000 // 20MB
)

// Config configures a Client.
type Config struct {
	// UserAgent is sent with every request when set.
	UserAgent string

	// RequestTimeout bounds every single request attempt.
	RequestTimeout time.Duration

	// MaxRetries is the number of additional attempts after a failed first
	// one. Only retryable outcomes spend retries; a redirect resets the
	// budget for the new URL.
	MaxRetries int

	// MaxRedirects bounds the number of followed redirects per query.
	MaxRedirects int
}

// Client executes RDAP queries. It follows redirects, retries retryable
// failures with exponential backoff and honors upstream rate limiting.
// Protocol-level failures never surface as raw transport errors, only as
// StructuredError values. A Client is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client

	// backoffUnit scales backoff and jitter. Tests shrink it.
	backoffUnit time.Duration
}

// NewClient returns a new client, applying defaults for unset config values.
func NewClient(cfg Config) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}

	return &Client{
		cfg:         cfg,
		backoffUnit: time.Second,
		httpClient: &http.Client{
			// Redirects are followed by the query loop instead, where they
			// are bounded and reset the attempt budget.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Query executes one logical RDAP query against the given URL and returns
// either the response or a structured error, never both. The context bounds
// the whole operation including backoff waits; every attempt additionally
// carries the configured per-request timeout.
func (c *Client) Query(ctx context.Context, queryURL string) (*Response, *StructuredError) {
	if _, err := url.Parse(queryURL); err != nil {
		return nil, NewError(KindInternalError, "invalid query URL").WithCause(err)
	}

	var (
		current   = queryURL
		attempt   int
		redirects int
	)

	for {
		res, err := c.attempt(ctx, current)
		if err != nil {
			// No response at all.
			countUpstreamRequest(outcomeNetworkError)
			if attempt < c.cfg.MaxRetries {
				if serr := c.waitRetry(ctx, c.backoff(attempt), 0); serr != nil {
					return nil, serr
				}
				attempt++
				continue
			}
			return nil, NewError(
				KindGatewayTimeout, "upstream RDAP server unreachable",
				fmt.Sprintf("giving up on %s after %d attempts", current, attempt+1),
			).WithCause(err)
		}

		switch {
		case res.status >= 200 && res.status < 300:
			kind, ok := classifyPayload(res.body)
			if !ok {
				countUpstreamRequest(outcomeBadShape)
				return nil, NewError(
					KindUnexpectedResponseShape, "unexpected response shape",
					"response carries no known objectClassName",
				)
			}
			countUpstreamRequest(outcomeSuccess)
			return &Response{
				Payload:     res.body,
				Kind:        kind,
				FetchedFrom: current,
			}, nil

		case res.status >= 300 && res.status < 400:
			countUpstreamRequest(outcomeRedirect)
			location := res.header.Get("Location")
			if location == "" {
				return nil, upstreamError(KindServerError, res.status, res.body)
			}
			if redirects >= c.cfg.MaxRedirects {
				return nil, NewError(
					KindTooManyRedirects, "too many redirects",
					fmt.Sprintf("not following more than %d redirects", c.cfg.MaxRedirects),
				)
			}
			next, serr := resolveRedirect(current, location)
			if serr != nil {
				return nil, serr
			}
			countUpstreamRedirect()
			current = next
			redirects++
			// The new URL gets a fresh attempt budget.
			attempt = 0

		case res.status == http.StatusNotFound:
			// Never retried.
			countUpstreamRequest(outcomeNotFound)
			return nil, upstreamError(KindNotFound, res.status, res.body)

		case res.status == http.StatusTooManyRequests:
			countUpstreamRequest(outcomeRateLimited)
			if attempt < c.cfg.MaxRetries {
				retryAfter, _ := parseRetryAfter(res.header.Get("Retry-After"))
				if serr := c.waitRetry(ctx, c.backoff(attempt), retryAfter); serr != nil {
					return nil, serr
				}
				attempt++
				continue
			}
			return nil, upstreamError(KindRateLimited, res.status, res.body)

		case res.status >= 400 && res.status < 500:
			// Terminal, never retried.
			countUpstreamRequest(outcomeClientError)
			return nil, upstreamError(KindClientError, res.status, res.body)

		case res.status >= 500:
			countUpstreamRequest(outcomeServerError)
			if attempt < c.cfg.MaxRetries {
				if serr := c.waitRetry(ctx, c.backoff(attempt), 0); serr != nil {
					return nil, serr
				}
				attempt++
				continue
			}
			return nil, upstreamError(KindServerError, res.status, res.body)

		default:
			countUpstreamRequest(outcomeUnexpected)
			return nil, upstreamError(KindInternalError, res.status, res.body)
		}
	}
}

type attemptResult struct {
	status int
	header http.Header
	body   []byte
}

// attempt performs a single HTTP request with the per-attempt timeout.
func (c *Client) attempt(ctx context.Context, queryURL string) (*attemptResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, queryURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request to %s: %w", queryURL, err)
	}
	req.Header.Set("Accept", "application/rdap+json, application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed GET request to %s: %w", queryURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", queryURL, err)
	}

	return &attemptResult{
		status: resp.StatusCode,
		header: resp.Header,
		body:   body,
	}, nil
}

// waitRetry sleeps before the next attempt. The wait is the exponential
// backoff, or the server-provided delay when that is longer, plus jitter.
func (c *Client) waitRetry(ctx context.Context, backoff, retryAfter time.Duration) *StructuredError {
	wait := backoff
	if retryAfter > wait {
		wait = retryAfter
	}
	wait += c.jitter()

	countUpstreamRetry()

	select {
	case <-ctx.Done():
		return NewError(KindInternalError, "query aborted").WithCause(ctx.Err())
	case <-time.After(wait):
		return nil
	}
}

// backoff returns the exponential delay before the given retry, without
// jitter: unit doubled per previous attempt.
func (c *Client) backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * c.backoffUnit
}

func (c *Client) jitter() time.Duration {
	return time.Duration(rand.Int63n(int64(c.backoffUnit))) //nolint:gosec // Not security relevant.
}

// parseRetryAfter parses a Retry-After header value, given either as
// delta-seconds or as an HTTP date.
func parseRetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if date, err := http.ParseTime(value); err == nil {
		wait := time.Until(date)
		if wait < 0 {
			return 0, false
		}
		return wait, true
	}
	return 0, false
}

// resolveRedirect resolves a Location header value against the current URL.
func resolveRedirect(current, location string) (string, *StructuredError) {
	base, err := url.Parse(current)
	if err != nil {
		return "", NewError(KindInternalError, "invalid query URL").WithCause(err)
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", NewError(KindInternalError, "invalid redirect location").WithCause(err)
	}
	return base.ResolveReference(ref).String(), nil
}
