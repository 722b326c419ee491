package discovery

import (
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/policyscout/discovery-cli/internal/feature"
	"github.com/policyscout/discovery-cli/internal/model"
)

// scoreCandidates attaches features and scores to each candidate.
// Candidates with a non-positive heuristic are dropped; a failed model
// prediction excludes that candidate only.
func (e *Engine) scoreCandidates(links []model.CandidateLink, domain string) []model.CandidateLink {
	base := "https://" + domain + "/"

	out := make([]model.CandidateLink, 0, len(links))
	for _, link := range links {
		link.Features = feature.Extract(link.Text, link.URL, link.Context, base, "")
		link.Heuristic = feature.HeuristicScore(link, e.scoring)
		if link.Heuristic <= 0 {
			continue
		}
		if e.scorer != nil {
			score, err := e.scorer.Predict(link.Features.Slice())
			if err != nil {
				zap.L().Warn("discovery: model score failed, candidate excluded",
					zap.String("url", link.URL),
					zap.Error(err),
				)
				continue
			}
			link.Neural = score
		}
		out = append(out, link)
	}
	return out
}

// dedupe collapses candidates sharing a normalized URL, keeping the
// higher combined score. Input order breaks exact ties.
func dedupe(links []model.CandidateLink) []model.CandidateLink {
	index := make(map[string]int, len(links))
	out := make([]model.CandidateLink, 0, len(links))
	for _, link := range links {
		key := normalizeURL(link.URL)
		if i, ok := index[key]; ok {
			if link.CombinedScore() > out[i].CombinedScore() {
				out[i] = link
			}
			continue
		}
		index[key] = len(out)
		out = append(out, link)
	}
	return out
}

// rank sorts candidates by descending combined score, stable so equal
// scores keep strategy order.
func rank(links []model.CandidateLink) []model.CandidateLink {
	sort.SliceStable(links, func(i, j int) bool {
		return links[i].CombinedScore() > links[j].CombinedScore()
	})
	return links
}

// normalizeURL canonicalizes a URL for dedup: lowercase scheme and host,
// default port stripped, trailing slash stripped, fragment dropped.
// Unparsable URLs pass through unchanged so they still dedupe exactly.
func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if (u.Scheme == "http" && u.Port() == "80") || (u.Scheme == "https" && u.Port() == "443") {
		u.Host = u.Hostname()
	}
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}
