// Package feature turns candidate links into the fixed-width numeric
// vectors the scoring model consumes, and computes the rule-based
// heuristic score used for ranking.
package feature

import (
	"net/url"
	"strings"

	"github.com/policyscout/discovery-cli/internal/model"
)

// Extract builds the 24-dimension feature vector for one candidate link.
// Content signals (dims 15-19) are only computed when pageContent is
// non-empty; before verification they stay zero. Pure, no I/O.
func Extract(linkText, href string, context model.LinkContext, baseURL, pageContent string) model.FeatureVector {
	var f model.FeatureVector

	lowerText := strings.ToLower(linkText)
	textToks := tokenize(lowerText)
	pathToks := pathTokens(href)

	f[model.FeatTextPrivacy] = boolFeat(privacyVocab.matches(lowerText, textToks) > 0)
	f[model.FeatTextTerms] = boolFeat(termsVocab.matches(lowerText, textToks) > 0)
	f[model.FeatTextCookie] = boolFeat(cookieVocab.matches(lowerText, textToks) > 0)
	f[model.FeatTextLegal] = boolFeat(legalVocab.matches(lowerText, textToks) > 0)

	hits := privacyVocab.matches(lowerText, textToks) +
		termsVocab.matches(lowerText, textToks) +
		cookieVocab.matches(lowerText, textToks) +
		legalVocab.matches(lowerText, textToks)
	f[model.FeatKeywordStrength] = capped(float64(hits), 4)

	f[model.FeatURLPrivacy] = boolFeat(anyToken(pathToks, privacyURLTokens))
	f[model.FeatURLTerms] = boolFeat(anyToken(pathToks, termsURLTokens))
	f[model.FeatURLLegal] = boolFeat(anyToken(pathToks, legalURLTokens))
	f[model.FeatPathDepth] = capped(float64(pathDepth(href)), 5)
	f[model.FeatURLLength] = capped(float64(len(href)), 200)
	f[model.FeatHTTPS] = boolFeat(strings.HasPrefix(strings.ToLower(href), "https://"))

	switch context {
	case model.ContextFooter:
		f[model.FeatCtxFooter] = 1
	case model.ContextNav:
		f[model.FeatCtxNav] = 1
	case model.ContextLegalHub:
		f[model.FeatCtxLegalHub] = 1
	case model.ContextBody:
		f[model.FeatCtxBody] = 1
	}
	// ContextUnknown leaves the one-hot block at zero.

	if pageContent != "" {
		lowerContent := strings.ToLower(pageContent)
		f[model.FeatContentPolicy] = boolFeat(containsAny(lowerContent, contentPolicyPhrases))
		f[model.FeatContentHeadings] = boolFeat(len(structuralHeadingRe.FindAllString(pageContent, 3)) >= 3)
		f[model.FeatContentJargon] = boolFeat(distinctStemHits(lowerContent, legalJargonStems) >= 2)
		f[model.FeatContentWordCount] = capped(float64(len(strings.Fields(pageContent))), 5000)
		f[model.FeatContentContact] = boolFeat(contactRe.MatchString(pageContent))
	}

	f[model.FeatTextLength] = capped(float64(len(linkText)), 50)
	f[model.FeatIconHint] = boolFeat(containsAny(linkText, iconHints))
	f[model.FeatCrossDomain] = boolFeat(crossDomain(href, baseURL))
	f[model.FeatYearInText] = boolFeat(yearRe.MatchString(linkText))

	return f
}

func boolFeat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// capped normalizes v against max and clamps to [0,1].
func capped(v, max float64) float64 {
	if v <= 0 {
		return 0
	}
	if v >= max {
		return 1
	}
	return v / max
}

func pathDepth(href string) int {
	u, err := url.Parse(href)
	if err != nil {
		return 0
	}
	depth := 0
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			depth++
		}
	}
	return depth
}

// crossDomain reports whether href points off the page's site. The www
// prefix is ignored so www.example.com and example.com count as one site.
func crossDomain(href, baseURL string) bool {
	h, err := url.Parse(href)
	if err != nil {
		return false
	}
	b, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	hh := strings.TrimPrefix(strings.ToLower(h.Hostname()), "www.")
	bh := strings.TrimPrefix(strings.ToLower(b.Hostname()), "www.")
	return hh != "" && bh != "" && hh != bh
}
