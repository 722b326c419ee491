package fetch

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Chain tries fetchers in order. The render fallback only runs when the
// lightweight fetch is blocked or returns fewer than minContent bytes of
// HTML; hard failures (bad status, exhausted retry budget) surface
// immediately since rendering the same URL would hit the same wall.
type Chain struct {
	fetchers   []Fetcher
	minContent int
}

// NewChain builds a chain over the given fetchers, tried in order.
func NewChain(minContent int, fetchers ...Fetcher) *Chain {
	if minContent <= 0 {
		minContent = 512
	}
	return &Chain{fetchers: fetchers, minContent: minContent}
}

func (c *Chain) Name() string { return "chain" }

// Supports reports whether any member fetcher supports the URL.
func (c *Chain) Supports(rawURL string) bool {
	for _, f := range c.fetchers {
		if f.Supports(rawURL) {
			return true
		}
	}
	return false
}

// Fetch returns the first result with at least minContent bytes of HTML.
// Blocked and short results fall through to the next fetcher; when every
// fetcher comes up short, the longest short result wins, since a page can
// genuinely be small.
func (c *Chain) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	var best *Result
	var lastErr error

	for _, f := range c.fetchers {
		if !f.Supports(rawURL) {
			continue
		}

		res, err := f.Fetch(ctx, rawURL)
		if err != nil {
			if !IsBlocked(err) {
				return nil, err
			}
			zap.L().Debug("fetch: blocked, trying fallback",
				zap.String("fetcher", f.Name()),
				zap.String("url", rawURL),
			)
			lastErr = err
			continue
		}

		if len(res.HTML) >= c.minContent {
			return res, nil
		}
		zap.L().Debug("fetch: content below threshold, trying fallback",
			zap.String("fetcher", f.Name()),
			zap.String("url", rawURL),
			zap.Int("bytes", len(res.HTML)),
		)
		if best == nil || len(res.HTML) > len(best.HTML) {
			best = res
		}
	}

	if best != nil {
		return best, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, eris.Errorf("fetch: no fetcher supports %s", rawURL)
}
