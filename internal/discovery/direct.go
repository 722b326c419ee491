package discovery

import (
	"context"

	"go.uber.org/zap"

	"github.com/policyscout/discovery-cli/internal/extract"
	"github.com/policyscout/discovery-cli/internal/fetch"
	"github.com/policyscout/discovery-cli/internal/model"
)

// directPaths is the ordered probe list of well-known policy locations.
// Every path is probed; ranking happens downstream, so order only affects
// which probe wins a redirect tie.
var directPaths = []string{
	"/privacy",
	"/privacy-policy",
	"/legal/privacy",
	"/privacy-notice",
	"/terms",
	"/tos",
	"/terms-of-service",
	"/cookies",
	"/cookie-policy",
	"/legal",
	"/policies",
}

// hubPaths are probed pages that list policy links rather than being
// policies themselves; their anchors become extra candidates.
var hubPaths = map[string]bool{
	"/legal":    true,
	"/policies": true,
}

// DirectStrategy probes well-known policy paths on the target domain.
type DirectStrategy struct {
	fetcher fetch.Fetcher
}

// NewDirectStrategy creates a DirectStrategy using the given fetcher.
func NewDirectStrategy(fetcher fetch.Fetcher) *DirectStrategy {
	return &DirectStrategy{fetcher: fetcher}
}

// Name implements Strategy.
func (s *DirectStrategy) Name() string { return "direct" }

// Discover probes each well-known path and returns a candidate for every
// page that answered. Hub pages contribute their extracted anchors too.
// Misses are expected and logged at debug only.
func (s *DirectStrategy) Discover(ctx context.Context, domain string) ([]model.CandidateLink, error) {
	log := zap.L().With(zap.String("strategy", "direct"), zap.String("domain", domain))

	var out []model.CandidateLink
	for _, path := range directPaths {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		probeURL := "https://" + domain + path
		res, err := s.fetcher.Fetch(ctx, probeURL)
		if err != nil {
			log.Debug("probe missed", zap.String("path", path), zap.Error(err))
			continue
		}

		finalURL := res.FinalURL
		if finalURL == "" {
			finalURL = probeURL
		}
		out = append(out, model.CandidateLink{
			URL:     finalURL,
			Text:    res.Title,
			Context: model.ContextUnknown,
		})

		if hubPaths[path] {
			links, err := extract.Links(res.HTML, finalURL)
			if err != nil {
				log.Debug("hub extraction failed", zap.String("path", path), zap.Error(err))
				continue
			}
			out = append(out, links...)
		}
	}

	log.Debug("direct probes complete", zap.Int("candidates", len(out)))
	return out, nil
}
