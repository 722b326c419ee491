package feature

import (
	"net/url"
	"strings"

	"github.com/policyscout/discovery-cli/internal/model"
)

// Heuristic tier bonuses. Tiers are additive, not exclusive.
const (
	scorePreferredLang     = 50
	scoreDeprioritizedLang = -20
	scorePrivacyTier       = 40
	scoreTermsTier         = 20
	scoreLegalTier         = 10
	scoreFooterContext     = 30
	scoreVisible           = 5
)

// HeuristicScore ranks a candidate with fixed rule bonuses: language path
// segments, keyword tiers matched in URL or text, footer placement, and
// visibility. Candidates scoring <= 0 are dropped from ranking by the
// caller. Pure, deterministic.
func HeuristicScore(link model.CandidateLink, langs Config) int {
	lowerText := strings.ToLower(link.Text)
	textToks := tokenize(lowerText)
	pathToks := pathTokens(link.URL)

	score := 0

	if hasLangSegment(link.URL, langs.PreferredLanguages) {
		score += scorePreferredLang
	}
	if hasLangSegment(link.URL, langs.DeprioritizedLanguages) {
		score += scoreDeprioritizedLang
	}

	if privacyVocab.matches(lowerText, textToks) > 0 || anyToken(pathToks, privacyURLTokens) {
		score += scorePrivacyTier
	}
	if termsVocab.matches(lowerText, textToks) > 0 || anyToken(pathToks, termsURLTokens) {
		score += scoreTermsTier
	}
	if legalVocab.matches(lowerText, textToks) > 0 || anyToken(pathToks, legalURLTokens) {
		score += scoreLegalTier
	}

	if link.Context == model.ContextFooter {
		score += scoreFooterContext
	}
	if link.Visible {
		score += scoreVisible
	}

	return score
}

// hasLangSegment checks URL path segments against a language list.
func hasLangSegment(rawURL string, langs []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	for _, seg := range strings.Split(strings.ToLower(u.Path), "/") {
		if seg == "" {
			continue
		}
		for _, lang := range langs {
			if seg == lang {
				return true
			}
		}
	}
	return false
}
