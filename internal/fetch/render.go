package fetch

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/policyscout/discovery-cli/internal/resilience"
)

// RenderOptions configures the render fallback.
type RenderOptions struct {
	BaseURL string
	Key     string
	Timeout time.Duration
	MaxBody int64
}

// RenderClient fetches pages through an external rendering service that
// executes JavaScript and returns the settled HTML. The target URL is
// appended to the base, the shape reader proxies use. A circuit breaker
// sheds calls after repeated failures so a dead renderer does not stall
// every verification.
type RenderClient struct {
	http    *http.Client
	base    string
	key     string
	maxBody int64
	breaker *resilience.CircuitBreaker
}

// NewRenderClient creates a RenderClient. An empty base URL yields a
// client whose Supports always returns false.
func NewRenderClient(opts RenderOptions) *RenderClient {
	if opts.Timeout <= 0 {
		// Rendering takes longer than a static fetch.
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = 1 << 20
	}
	return &RenderClient{
		http:    &http.Client{Timeout: opts.Timeout},
		base:    strings.TrimRight(opts.BaseURL, "/"),
		key:     opts.Key,
		maxBody: opts.MaxBody,
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
	}
}

func (r *RenderClient) Name() string { return "render" }

// Supports reports whether the render service is configured and its
// circuit is accepting requests.
func (r *RenderClient) Supports(string) bool {
	return r.base != "" && r.breaker.State() != resilience.CircuitOpen
}

// Fetch renders rawURL through the external service.
func (r *RenderClient) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	return resilience.ExecuteVal(ctx, r.breaker, func(ctx context.Context) (*Result, error) {
		return r.render(ctx, rawURL)
	})
}

func (r *RenderClient) render(ctx context.Context, rawURL string) (*Result, error) {
	if r.base == "" {
		return nil, eris.New("render: no base URL configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.base+"/"+rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "render: build request")
	}
	if r.key != "" {
		req.Header.Set("Authorization", "Bearer "+r.key)
	}
	req.Header.Set("X-Return-Format", "html")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: classifyNetErr(err), URL: rawURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBody))
	if err != nil {
		return nil, &FetchError{Kind: classifyNetErr(err), URL: rawURL, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(rawURL, resp.StatusCode)
	}

	// The renderer may faithfully reproduce a challenge page.
	if blocked, blockType := DetectBlock(resp.StatusCode, resp.Header, body); blocked {
		return nil, &FetchError{Kind: KindBlocked, URL: rawURL, Block: blockType}
	}

	decoded := decodeBody(body, resp.Header.Get("Content-Type"))
	return &Result{
		URL:        rawURL,
		FinalURL:   rawURL,
		StatusCode: resp.StatusCode,
		HTML:       string(decoded),
		Title:      extractTitle(decoded),
	}, nil
}
