package model

import "time"

// DocumentType classifies a verified policy document.
type DocumentType string

const (
	DocTypePrivacy DocumentType = "privacy"
	DocTypeTerms   DocumentType = "terms"
	DocTypeCookie  DocumentType = "cookie"
	DocTypeDPA     DocumentType = "data_processing_agreement"
	DocTypeOther   DocumentType = "other"
)

// AllDocumentTypes returns all defined document types.
func AllDocumentTypes() []DocumentType {
	return []DocumentType{
		DocTypePrivacy,
		DocTypeTerms,
		DocTypeCookie,
		DocTypeDPA,
		DocTypeOther,
	}
}

// Valid reports whether dt is a defined document type.
func (dt DocumentType) Valid() bool {
	switch dt {
	case DocTypePrivacy, DocTypeTerms, DocTypeCookie, DocTypeDPA, DocTypeOther:
		return true
	}
	return false
}

// Classification holds the result of document-type classification.
type Classification struct {
	Type       DocumentType `json:"type"`
	Confidence float64      `json:"confidence"`
	Reasoning  string       `json:"reasoning,omitempty"` // set only when the tie-breaker was consulted
}

// IsPolicy reports whether the classification clears the policy threshold.
func (c Classification) IsPolicy() bool {
	return c.Confidence >= PolicyConfidenceThreshold
}

// HighConfidence reports whether the classification clears the high band.
func (c Classification) HighConfidence() bool {
	return c.Confidence >= HighConfidenceThreshold
}

const (
	// PolicyConfidenceThreshold is the minimum confidence for a text to be
	// classified as a policy document.
	PolicyConfidenceThreshold = 0.6

	// HighConfidenceThreshold marks classifications that need no second look.
	HighConfidenceThreshold = 0.8
)

// PolicyDocument is a verified, classified policy page. Immutable once
// created by verification; cached copies carry the same values.
type PolicyDocument struct {
	URL          string       `json:"url"`
	Title        string       `json:"title"`
	Text         string       `json:"text,omitempty"`
	Type         DocumentType `json:"type"`
	Confidence   float64      `json:"confidence"`
	Source       string       `json:"source"` // strategy that surfaced the candidate
	DiscoveredAt time.Time    `json:"discovered_at"`
}
