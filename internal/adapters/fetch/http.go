package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client retrieves listing pages over plain HTTP. Redirects are followed
// manually up to a hop limit so the error taxonomy stays explicit, and
// bodies above the ceiling are truncated to bound memory.

const (
	defaultMaxRedirects = 5
	truncationMarker    = "\n<!-- truncated -->"
)

var ErrTooManyRedirects = errors.New("fetch: too many redirects")

// StatusError reports a non-2xx terminal response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch: status %d for %s", e.Code, e.URL)
}

type Client struct {
	hc           *http.Client
	rl           *rate.Limiter
	userAgent    string
	maxBodyBytes int64
	maxRedirects int
}

func New(timeout time.Duration, maxBodyBytes int64, userAgent string, rps int) *Client {
	if rps <= 0 {
		rps = 2
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = 400_000
	}
	return &Client{
		hc: &http.Client{
			Timeout: timeout,
			// Hop handling lives in Fetch; the stdlib policy would hide
			// the redirect count from the error taxonomy.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		rl:           rate.NewLimiter(rate.Limit(rps), rps),
		userAgent:    userAgent,
		maxBodyBytes: maxBodyBytes,
		maxRedirects: defaultMaxRedirects,
	}
}

// Fetch returns the final page's HTML after following up to the redirect
// limit. Transport failures are wrapped; non-2xx terminal statuses map
// to *StatusError.
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return "", err
	}

	current := rawURL
	for hop := 0; hop <= c.maxRedirects; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return "", fmt.Errorf("fetch: build request: %w", err)
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		req.Header.Set("Accept", "text/html,application/xhtml+xml")

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("fetch: transport: %w", err)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			body, err := c.readBody(resp)
			resp.Body.Close()
			return body, err

		case resp.StatusCode >= 300 && resp.StatusCode < 400:
			loc := resp.Header.Get("Location")
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if loc == "" {
				return "", &StatusError{Code: resp.StatusCode, URL: current}
			}
			current = resolveLocation(current, loc)

		default:
			resp.Body.Close()
			return "", &StatusError{Code: resp.StatusCode, URL: current}
		}
	}
	return "", ErrTooManyRedirects
}

func (c *Client) readBody(resp *http.Response) (string, error) {
	// Read one byte past the ceiling to detect truncation.
	b, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return "", fmt.Errorf("fetch: read body: %w", err)
	}
	if int64(len(b)) > c.maxBodyBytes {
		return string(b[:c.maxBodyBytes]) + truncationMarker, nil
	}
	return string(b), nil
}

func resolveLocation(current, loc string) string {
	if strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://") {
		return loc
	}
	base, err := url.Parse(current)
	if err != nil {
		return loc
	}
	ref, err := url.Parse(loc)
	if err != nil {
		return loc
	}
	return base.ResolveReference(ref).String()
}
