// Package classify validates fetched page content and classifies
// verified policy documents by type. Classification is deterministic
// keyword/structure scoring; an optional analyzer is consulted only for
// ambiguous results.
package classify

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/policyscout/discovery-cli/internal/model"
)

const (
	garbageMaxLen  = 1000
	minDocumentLen = 500
	minKeywordHits = 3

	structuralBonus  = 0.05
	phraseBonusScale = 0.1
)

// ValidationReason names why content was rejected.
type ValidationReason string

const (
	ReasonTooShort          ValidationReason = "too_short"
	ReasonLowKeywordDensity ValidationReason = "low_keyword_density"
)

// ValidationError reports content that cannot be a policy document.
type ValidationError struct {
	Reason ValidationReason
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate: %s (%s)", e.Reason, e.Detail)
}

// IsGarbage reports whether text looks like an error interstitial rather
// than document content. Long pages are never garbage even when they
// mention an error phrase.
func IsGarbage(text string) bool {
	if len(text) >= garbageMaxLen {
		return false
	}
	return containsAny(strings.ToLower(text), garbagePhrases)
}

// Validate rejects content too short or too keyword-sparse to be a
// policy document.
func Validate(text string) error {
	if len(text) < minDocumentLen {
		return &ValidationError{
			Reason: ReasonTooShort,
			Detail: fmt.Sprintf("%d chars, need %d", len(text), minDocumentLen),
		}
	}
	if hits := distinctValidationKeywords(text); hits < minKeywordHits {
		return &ValidationError{
			Reason: ReasonLowKeywordDensity,
			Detail: fmt.Sprintf("%d distinct policy keywords, need %d", hits, minKeywordHits),
		}
	}
	return nil
}

// Classify scores text against the weighted keyword categories plus
// structural indicators and type phrases, returning the document type
// with its confidence. Deterministic: no network, no randomness.
func Classify(text string) model.Classification {
	lower := strings.ToLower(text)

	var confidence float64
	var dominant string
	var dominantScore float64
	for _, cat := range categories {
		hits := 0
		for _, kw := range cat.keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		score := cat.weight * float64(hits) / float64(len(cat.keywords))
		confidence += score
		if score > dominantScore {
			dominant, dominantScore = cat.name, score
		}
	}

	confidence += structuralBonus * float64(countStructuralIndicators(lower, text))

	docType, phraseConf := bestPhraseMatch(lower)
	confidence += phraseConf * phraseBonusScale
	confidence = clamp01(confidence)

	if confidence < model.PolicyConfidenceThreshold {
		return model.Classification{Type: model.DocTypeOther, Confidence: confidence}
	}
	if docType == "" {
		docType = typeFromCategory(dominant)
	}
	return model.Classification{Type: docType, Confidence: confidence}
}

func bestPhraseMatch(lower string) (model.DocumentType, float64) {
	var best model.DocumentType
	var bestConf float64
	for _, tp := range typePhrases {
		hits := 0
		for _, p := range tp.phrases {
			if strings.Contains(lower, p) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		if conf := float64(hits) / float64(len(tp.phrases)); conf > bestConf {
			best, bestConf = tp.docType, conf
		}
	}
	return best, bestConf
}

func typeFromCategory(name string) model.DocumentType {
	switch name {
	case "cookies":
		return model.DocTypeCookie
	case "legal":
		return model.DocTypeTerms
	default:
		return model.DocTypePrivacy
	}
}

func distinctValidationKeywords(text string) int {
	present := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		present[tok] = true
	}

	hits := 0
	for _, kw := range validationKeywords {
		if present[kw] {
			hits++
		}
	}
	return hits
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
