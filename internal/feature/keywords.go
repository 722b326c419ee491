package feature

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// vocabulary pairs whole-token words with multi-word phrases. Tokens avoid
// substring misfires ("tos" inside "photos"); phrases match the raw text.
type vocabulary struct {
	words   []string
	phrases []string
}

func (v vocabulary) matches(lowerText string, tokens map[string]bool) int {
	n := 0
	for _, w := range v.words {
		if tokens[w] {
			n++
		}
	}
	for _, p := range v.phrases {
		if strings.Contains(lowerText, p) {
			n++
		}
	}
	return n
}

var (
	privacyVocab = vocabulary{
		words:   []string{"privacy", "datenschutz", "privacidad", "confidentialité"},
		phrases: []string{"data protection", "personal data", "personal information"},
	}
	termsVocab = vocabulary{
		words:   []string{"terms", "conditions", "eula", "tos"},
		phrases: []string{"terms of service", "terms of use", "user agreement", "conditions of use"},
	}
	cookieVocab = vocabulary{
		words:   []string{"cookie", "cookies"},
		phrases: []string{"cookie policy", "tracking technologies"},
	}
	legalVocab = vocabulary{
		words:   []string{"legal", "imprint", "impressum", "disclaimer"},
		phrases: []string{"legal notice", "mentions légales"},
	}
)

// URL path tokens per tier. Paths are tokenized on /, ., -, and _ so
// "/privacy-policy" and "/legal/terms.html" both resolve cleanly.
var (
	privacyURLTokens = []string{"privacy", "datenschutz", "gdpr", "privacidad", "confidentialite"}
	termsURLTokens   = []string{"terms", "tos", "conditions", "eula", "agb", "cgu"}
	legalURLTokens   = []string{"legal", "imprint", "impressum", "disclaimer", "policies", "mentions"}
)

// Content signals for verification-time features.
var contentPolicyPhrases = []string{
	"privacy policy",
	"personal information",
	"personal data",
	"data protection",
	"information we collect",
	"terms of service",
	"cookie",
}

// Stems, so "indemnify" and "indemnification" count once.
var legalJargonStems = []string{
	"pursuant",
	"hereinafter",
	"liabilit",
	"indemnif",
	"jurisdiction",
	"arbitrat",
	"severab",
	"warrant",
	"governing law",
}

var (
	structuralHeadingRe = regexp.MustCompile(`(?mi)^\s*(?:\d+\.\s+\S|section\s+\d+|article\s+\d+)`)
	contactRe           = regexp.MustCompile(`(?i)[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}|contact\s+us`)
	yearRe              = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
)

var iconHints = []string{"🔒", "🛡", "⚖"}

func tokenize(lower string) map[string]bool {
	tokens := make(map[string]bool)
	for _, t := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		tokens[t] = true
	}
	return tokens
}

// pathTokens splits a URL path into lowercase tokens on /, ., -, and _.
func pathTokens(href string) map[string]bool {
	p := href
	if u, err := url.Parse(href); err == nil && u.Path != "" {
		p = u.Path
	}
	tokens := make(map[string]bool)
	for _, t := range strings.FieldsFunc(strings.ToLower(p), func(r rune) bool {
		return r == '/' || r == '.' || r == '-' || r == '_'
	}) {
		tokens[t] = true
	}
	return tokens
}

func anyToken(tokens map[string]bool, want []string) bool {
	for _, w := range want {
		if tokens[w] {
			return true
		}
	}
	return false
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func distinctStemHits(lower string, stems []string) int {
	n := 0
	for _, s := range stems {
		if strings.Contains(lower, s) {
			n++
		}
	}
	return n
}
