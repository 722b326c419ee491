// Package fetch retrieves candidate pages over HTTP. The lightweight
// Client rotates user agents on 401/403, retries timeouts and network
// failures inside a wall-clock budget, and caps response bodies. A Chain
// falls back to an external rendering service for pages that are blocked
// or ship no static HTML.
package fetch

import (
	"context"
	"errors"
	"html"
	"io"
	"mime"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
)

// Result holds a fetched page.
type Result struct {
	URL        string
	FinalURL   string // after redirects
	StatusCode int
	HTML       string
	Title      string
}

// Fetcher retrieves a single URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Result, error)
	Name() string
	Supports(rawURL string) bool
}

// Options configures the lightweight Client.
type Options struct {
	Timeout        time.Duration // per attempt
	RetryBudget    time.Duration // wall clock across all retries
	InitialBackoff time.Duration
	MaxBody        int64
	UserAgents     []string
}

// Client is the lightweight HTTP fetcher.
type Client struct {
	http           *http.Client
	userAgents     []string
	timeout        time.Duration
	retryBudget    time.Duration
	initialBackoff time.Duration
	maxBody        int64
}

// NewClient creates a Client with the given options. Zero values get
// defaults suitable for unattended discovery runs.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryBudget <= 0 {
		opts.RetryBudget = 30 * time.Second
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = 1 << 20
	}
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = []string{"Mozilla/5.0 (compatible; PolicyScout/1.0; +https://policyscout.dev/bot)"}
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		http:           &http.Client{Transport: transport},
		userAgents:     opts.UserAgents,
		timeout:        opts.Timeout,
		retryBudget:    opts.RetryBudget,
		initialBackoff: opts.InitialBackoff,
		maxBody:        opts.MaxBody,
	}
}

func (c *Client) Name() string { return "http" }

// Supports returns true for http and https URLs.
func (c *Client) Supports(rawURL string) bool {
	return strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://")
}

// Fetch retrieves rawURL. User agents advance only on 401/403, each tried
// once in order. Timeouts and network failures retry with doubling backoff
// while the retry budget lasts. Any other non-2xx status fails without
// retrying.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	deadline := time.Now().Add(c.retryBudget)
	backoff := c.initialBackoff
	agent := 0

	for {
		res, ferr := c.attempt(ctx, rawURL, c.userAgents[agent])
		if ferr == nil {
			return res, nil
		}

		switch ferr.Kind {
		case KindHTTPStatus:
			if ferr.StatusCode != http.StatusUnauthorized && ferr.StatusCode != http.StatusForbidden {
				return nil, ferr
			}
			agent++
			if agent >= len(c.userAgents) {
				return nil, ferr
			}
			zap.L().Debug("fetch: rotating user agent",
				zap.String("url", rawURL),
				zap.Int("status", ferr.StatusCode),
				zap.Int("agent", agent),
			)
		case KindTimeout, KindNetwork:
			if ctx.Err() != nil {
				return nil, ferr
			}
			if !time.Now().Add(backoff).Before(deadline) {
				return nil, ferr
			}
			zap.L().Debug("fetch: retrying",
				zap.String("url", rawURL),
				zap.String("kind", string(ferr.Kind)),
				zap.Duration("backoff", backoff),
			)
			if err := sleep(ctx, backoff); err != nil {
				return nil, ferr
			}
			backoff *= 2
		default:
			return nil, ferr
		}
	}
}

// attempt performs one request with one user agent.
func (c *Client) attempt(ctx context.Context, rawURL, userAgent string) (*Result, *FetchError) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, URL: rawURL, Err: eris.Wrap(err, "fetch: build request")}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: classifyNetErr(err), URL: rawURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, &FetchError{Kind: classifyNetErr(err), URL: rawURL, Err: err}
	}

	// Block detection runs before the status check: a Cloudflare 403 is a
	// block, not a client error, and must not burn a user-agent rotation.
	if blocked, blockType := DetectBlock(resp.StatusCode, resp.Header, body); blocked {
		return nil, &FetchError{Kind: KindBlocked, URL: rawURL, Block: blockType}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(rawURL, resp.StatusCode)
	}

	decoded := decodeBody(body, resp.Header.Get("Content-Type"))
	return &Result{
		URL:        rawURL,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		HTML:       string(decoded),
		Title:      extractTitle(decoded),
	}, nil
}

func classifyNetErr(err error) ErrKind {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindNetwork
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// decodeBody converts the body to UTF-8 when the Content-Type header
// declares a non-UTF-8 charset. Unknown charsets pass through unchanged.
func decodeBody(body []byte, contentType string) []byte {
	if contentType == "" {
		return body
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return body
	}
	name := params["charset"]
	if name == "" || strings.EqualFold(name, "utf-8") {
		return body
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		zap.L().Debug("fetch: unknown charset", zap.String("charset", name))
		return body
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return decoded
}

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

func extractTitle(body []byte) string {
	m := titleRe.FindSubmatch(body)
	if len(m) < 2 {
		return ""
	}
	return html.UnescapeString(strings.TrimSpace(string(m[1])))
}
