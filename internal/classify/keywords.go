package classify

import (
	"regexp"
	"strings"

	"github.com/policyscout/discovery-cli/internal/model"
)

// category is one weighted keyword group. Match counts are normalized by
// set size so large vocabularies cannot dominate on volume alone.
type category struct {
	name     string
	weight   float64
	keywords []string
}

// Ordered so dominant-category ties resolve the same way every run.
var categories = []category{
	{name: "core", weight: 3.0, keywords: []string{
		"privacy policy",
		"privacy notice",
		"personal information",
		"personal data",
		"data protection",
		"information we collect",
		"how we use",
		"your information",
		"data controller",
		"privacy practices",
		"data we collect",
		"information about you",
	}},
	{name: "legal", weight: 2.5, keywords: []string{
		"terms of service",
		"terms of use",
		"terms and conditions",
		"user agreement",
		"governing law",
		"limitation of liability",
		"warranty",
		"indemnif",
		"arbitration",
		"severability",
	}},
	{name: "dataHandling", weight: 1.5, keywords: []string{
		"collect information",
		"information collected",
		"data retention",
		"share your",
		"disclose your",
		"transfer your",
		"retention period",
		"process your",
	}},
	{name: "rights", weight: 1.5, keywords: []string{
		"your rights",
		"right to access",
		"right to delete",
		"right to erasure",
		"opt out",
		"opt-out",
		"rectification",
		"data portability",
		"withdraw your consent",
		"object to processing",
	}},
	{name: "thirdParty", weight: 1.2, keywords: []string{
		"third party",
		"third parties",
		"third-party",
		"service providers",
		"our partners",
		"advertising partners",
		"analytics providers",
	}},
	{name: "security", weight: 1.2, keywords: []string{
		"security measures",
		"encryption",
		"encrypted",
		"safeguards",
		"unauthorized access",
		"data breach",
	}},
	{name: "cookies", weight: 1.2, keywords: []string{
		"cookie",
		"tracking technologies",
		"web beacon",
		"do not track",
		"local storage",
		"advertising identifier",
		"similar technologies",
	}},
	{name: "structure", weight: 0.8, keywords: []string{
		"shall",
		"hereby",
		"hereinafter",
		"pursuant",
		"set forth",
		"notwithstanding",
		"herein",
		"thereof",
	}},
}

// typePhrases decide the document type directly when present. Ordered so
// equal-confidence matches resolve deterministically.
var typePhrases = []struct {
	docType model.DocumentType
	phrases []string
}{
	{model.DocTypePrivacy, []string{
		"privacy policy",
		"privacy notice",
		"privacy statement",
		"data protection policy",
	}},
	{model.DocTypeTerms, []string{
		"terms of service",
		"terms of use",
		"terms and conditions",
		"user agreement",
		"end user license agreement",
	}},
	{model.DocTypeCookie, []string{
		"cookie policy",
		"cookie notice",
		"cookies policy",
		"use of cookies",
	}},
	{model.DocTypeDPA, []string{
		"data processing agreement",
		"data processing addendum",
		"data protection agreement",
	}},
}

// garbagePhrases mark error interstitials. Only consulted on short
// bodies; real policies are long enough to mention any of these safely.
var garbagePhrases = []string{
	"access denied",
	"404 not found",
	"page not found",
	"403 forbidden",
	"captcha",
	"an error occurred",
	"service unavailable",
	"please enable javascript",
	"are you a robot",
	"under construction",
}

// validationKeywords are matched as whole tokens; three distinct hits is
// the floor for plausibly-a-policy content.
var validationKeywords = []string{
	"privacy",
	"policy",
	"data",
	"information",
	"terms",
	"cookies",
	"cookie",
	"consent",
	"rights",
	"collect",
	"collection",
	"processing",
	"personal",
	"service",
}

var (
	numberedSectionRe = regexp.MustCompile(`(?m)^\s*\d+\.\s+\S`)
	definitionsRe     = regexp.MustCompile(`(?i)"[^"]{2,40}"\s+(?:means|shall mean)`)
	contactEmailRe    = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
)

var (
	dateRefPhrases = []string{
		"last updated", "effective date", "last modified", "last revised", "effective as of",
	}
	boilerplatePhrases = []string{
		"governing law", "limitation of liability", "severability", "entire agreement", "pursuant to",
	}
	tocPhrases = []string{
		"table of contents", "in this policy:", "jump to section",
	}
	changeNotifPhrases = []string{
		"changes to this policy", "changes to this privacy", "changes to these terms",
		"we may update", "we may modify", "we may revise",
	}
)

// countStructuralIndicators checks the seven document-structure signals.
// lower is the lowercased text; raw keeps case for the regexps that need
// line anchors or addresses.
func countStructuralIndicators(lower, raw string) int {
	count := 0
	if len(numberedSectionRe.FindAllString(raw, 3)) >= 2 {
		count++
	}
	if strings.Contains(lower, "definitions") || definitionsRe.MatchString(raw) {
		count++
	}
	if containsAny(lower, dateRefPhrases) {
		count++
	}
	if containsAny(lower, boilerplatePhrases) {
		count++
	}
	if strings.Contains(lower, "contact us") || contactEmailRe.MatchString(raw) {
		count++
	}
	if containsAny(lower, tocPhrases) {
		count++
	}
	if containsAny(lower, changeNotifPhrases) {
		count++
	}
	return count
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
