package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/policyscout/discovery-cli/internal/model"
	"github.com/policyscout/discovery-cli/pkg/search"
)

// searchQueries are issued per domain, one query per document family.
var searchQueries = []string{
	"%s privacy policy",
	"%s terms of service",
}

// SearchStrategy locates policy pages through an external search engine.
type SearchStrategy struct {
	client search.Client
}

// NewSearchStrategy creates a SearchStrategy backed by the given client.
func NewSearchStrategy(client search.Client) *SearchStrategy {
	return &SearchStrategy{client: client}
}

// Name implements Strategy.
func (s *SearchStrategy) Name() string { return "search" }

// Discover queries the search engine and keeps only results hosted on the
// target domain or one of its subdomains. A failed query does not discard
// the other queries' results; the last error is surfaced only when no
// candidate was found at all.
func (s *SearchStrategy) Discover(ctx context.Context, domain string) ([]model.CandidateLink, error) {
	log := zap.L().With(zap.String("strategy", "search"), zap.String("domain", domain))

	var (
		out     []model.CandidateLink
		lastErr error
	)
	for _, q := range searchQueries {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		results, err := s.client.Search(ctx, fmt.Sprintf(q, domain))
		if err != nil {
			log.Warn("search query failed", zap.String("query", q), zap.Error(err))
			lastErr = err
			continue
		}
		for _, r := range results {
			if !onDomain(r.URL, domain) {
				continue
			}
			out = append(out, model.CandidateLink{
				URL:     r.URL,
				Text:    r.Title,
				Context: model.ContextUnknown,
				Visible: true,
			})
		}
	}

	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	log.Debug("search complete", zap.Int("candidates", len(out)))
	return out, nil
}

// onDomain reports whether rawURL's host is the domain or a subdomain of it.
func onDomain(rawURL, domain string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
