package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"derivflow/logger"
)

// Policy is the retry behaviour shared by every outbound call. It is
// configured once and passed in rather than hard-coded per call site.
type Policy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	BackoffMultiplier int
}

// Normalized fills zero fields with the defaults used across sources.
func (p Policy) Normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 400 * time.Millisecond
	}
	if p.BackoffMultiplier <= 0 {
		p.BackoffMultiplier = 2
	}
	return p
}

// Do runs fn up to MaxAttempts times, sleeping BaseDelay*multiplier^n
// between attempts. The first attempt runs without delay. The last
// error is returned once attempts are exhausted.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	p = p.Normalized()
	delay := p.BaseDelay
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= time.Duration(p.BackoffMultiplier)
		}
		if err := fn(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// Error is a terminal fetch failure: every attempt against every
// configured base exhausted.
type Error struct {
	URL      string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("GET %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	req.Header.Set("Accept", "application/json")
	return t.base.RoundTrip(req)
}

// Client issues JSON GET requests with the shared retry policy and an
// ordered base-URL list. The second and later bases are fallbacks tried
// only after the previous base exhausted its attempts.
type Client struct {
	http    *http.Client
	bases   []string
	policy  Policy
	limiter *rate.Limiter
	log     *logger.Log
}

// NewClient builds a client for the given base URLs. Empty bases are
// dropped so an unset fallback collapses the list to the primary.
func NewClient(bases []string, timeout time.Duration, policy Policy, limiter *rate.Limiter) *Client {
	kept := make([]string, 0, len(bases))
	for _, b := range bases {
		if b = strings.TrimSpace(b); b != "" {
			kept = append(kept, strings.TrimRight(b, "/"))
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := userAgentTransport{
		agent: "Mozilla/5.0",
		base: &http.Transport{
			MaxIdleConns:        4,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	return &Client{
		http:    &http.Client{Transport: transport, Timeout: timeout},
		bases:   kept,
		policy:  policy.Normalized(),
		limiter: limiter,
		log:     logger.GetLogger(),
	}
}

// GetJSON fetches path+params from each base in order, retrying per the
// policy, and decodes the body into v. A non-2xx status or undecodable
// body counts as a failed attempt. The returned error on exhaustion is
// a *Error wrapping the last cause.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, v interface{}) error {
	if len(c.bases) == 0 {
		return &Error{URL: path, Err: fmt.Errorf("no base URL configured")}
	}
	var lastErr error
	var lastURL string
	for _, base := range c.bases {
		u := base + path
		if enc := params.Encode(); enc != "" {
			u += "?" + enc
		}
		lastURL = u
		err := c.policy.Do(ctx, func() error {
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					return err
				}
			}
			return c.getOnce(ctx, u, v)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		c.log.WithComponent("fetch").WithError(err).WithFields(logger.Fields{"url": u}).Warn("base exhausted, trying next")
	}
	return &Error{URL: lastURL, Attempts: c.policy.MaxAttempts * len(c.bases), Err: lastErr}
}

func (c *Client) getOnce(ctx context.Context, u string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("HTTP %d body=%s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}
