// Package search provides a client for the DuckDuckGo HTML search endpoint.
package search

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// Client defines web search operations.
type Client interface {
	// Search runs a query and returns result links in rank order.
	Search(ctx context.Context, query string) ([]Result, error)
}

// Result is a single search result link.
type Result struct {
	Title string
	URL   string
}

// Option configures the search client.
type Option func(*httpClient)

// WithBaseURL sets a custom endpoint URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithMaxResults caps the number of results returned per query.
// Non-positive values keep the default.
func WithMaxResults(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

type httpClient struct {
	baseURL    string
	maxResults int
	userAgent  string
	http       *http.Client
}

// NewClient creates a DuckDuckGo HTML search client. The endpoint serves
// plain HTML and takes no API key, but rejects non-browser user agents.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:    "https://html.duckduckgo.com/html/",
		maxResults: 10,
		userAgent:  "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
		http: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryDo executes an HTTP request with exponential backoff retries on
// transient failures (429, 500, 502, 503). Returns the response body and
// status code on success, or the last error after exhausting retries.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// Clone request for retry (body is nil for GET requests).
		retryReq := req.Clone(ctx)

		resp, err := c.http.Do(retryReq)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, eris.Wrap(readErr, "search: read response body")
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("search: status %d", resp.StatusCode)
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}

	return nil, 0, lastErr
}

func (c *httpClient) Search(ctx context.Context, query string) ([]Result, error) {
	reqURL := c.baseURL + "?q=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "search: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html")

	body, statusCode, err := c.retryDo(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "search: request failed")
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("search: unexpected status %d", statusCode)
	}

	return c.parseResults(body)
}

// parseResults pulls result anchors out of the HTML response, unwrapping
// the redirect each destination is served behind.
func (c *httpClient) parseResults(body []byte) ([]Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "search: parse response")
	}

	seen := make(map[string]bool)
	var results []Result
	doc.Find("a.result__a, a.result-link").Each(func(_ int, s *goquery.Selection) {
		if len(results) >= c.maxResults {
			return
		}
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		target := unwrapRedirect(href)
		if target == "" || seen[target] {
			return
		}
		seen[target] = true
		results = append(results, Result{
			Title: strings.TrimSpace(s.Text()),
			URL:   target,
		})
	})
	return results, nil
}

// unwrapRedirect resolves a result href to its destination. The engine
// wraps destinations in a redirect URL carrying the target in the uddg
// query param; ad links and internal links stay on the engine's own host
// and are dropped.
func unwrapRedirect(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		href = target
		parsed, err = url.Parse(target)
		if err != nil {
			return ""
		}
	}
	if !strings.HasPrefix(href, "http") {
		return ""
	}
	if strings.HasSuffix(parsed.Hostname(), "duckduckgo.com") {
		return ""
	}
	return href
}
