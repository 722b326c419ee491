package discovery

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/policyscout/discovery-cli/internal/extract"
	"github.com/policyscout/discovery-cli/internal/fetch"
	"github.com/policyscout/discovery-cli/internal/model"
)

// CrawlStrategy walks the site from the homepage, following hub-looking
// pages breadth-first under a rate limit.
type CrawlStrategy struct {
	fetcher  fetch.Fetcher
	limiter  *rate.Limiter
	maxPages int
}

// NewCrawlStrategy creates a CrawlStrategy. maxPages bounds total fetches
// including the homepage; ratePerSec throttles them.
func NewCrawlStrategy(fetcher fetch.Fetcher, maxPages int, ratePerSec float64) *CrawlStrategy {
	if maxPages <= 0 {
		maxPages = 5
	}
	if ratePerSec <= 0 {
		ratePerSec = 2.0
	}
	return &CrawlStrategy{
		fetcher:  fetcher,
		limiter:  rate.NewLimiter(rate.Limit(ratePerSec), 1),
		maxPages: maxPages,
	}
}

// Name implements Strategy.
func (s *CrawlStrategy) Name() string { return "crawl" }

// Discover fetches the homepage, collects its anchors, then follows links
// that look like legal hubs on the same domain until maxPages is spent.
// A dead homepage fails the strategy; a dead hub page is skipped.
func (s *CrawlStrategy) Discover(ctx context.Context, domain string) ([]model.CandidateLink, error) {
	log := zap.L().With(zap.String("strategy", "crawl"), zap.String("domain", domain))

	start := "https://" + domain + "/"
	queue := []string{start}
	visited := make(map[string]bool)

	var out []model.CandidateLink
	pages := 0
	for len(queue) > 0 && pages < s.maxPages {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		pageURL := queue[0]
		queue = queue[1:]
		if visited[pageURL] {
			continue
		}
		visited[pageURL] = true

		if err := s.limiter.Wait(ctx); err != nil {
			return out, eris.Wrap(err, "crawl: rate limit wait")
		}

		res, err := s.fetcher.Fetch(ctx, pageURL)
		pages++
		if err != nil {
			if pageURL == start {
				return nil, eris.Wrap(err, "crawl: fetch homepage")
			}
			log.Debug("crawl fetch failed", zap.String("url", pageURL), zap.Error(err))
			continue
		}

		base := res.FinalURL
		if base == "" {
			base = pageURL
		}
		links, err := extract.Links(res.HTML, base)
		if err != nil {
			log.Debug("crawl extraction failed", zap.String("url", pageURL), zap.Error(err))
			continue
		}
		out = append(out, links...)

		for _, l := range links {
			if !extract.IsLegalHub(l.URL, l.Text) {
				continue
			}
			if !onDomain(l.URL, domain) || visited[l.URL] {
				continue
			}
			queue = append(queue, l.URL)
		}
	}

	log.Debug("crawl complete", zap.Int("pages", pages), zap.Int("candidates", len(out)))
	return out, nil
}
