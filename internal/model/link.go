package model

import "github.com/rotisserie/eris"

// LinkContext describes where on a page a candidate link was found.
type LinkContext string

const (
	ContextFooter   LinkContext = "footer"
	ContextNav      LinkContext = "nav"
	ContextBody     LinkContext = "body"
	ContextLegalHub LinkContext = "legal_hub"
	ContextUnknown  LinkContext = "unknown"
)

// AllLinkContexts returns all defined link contexts.
func AllLinkContexts() []LinkContext {
	return []LinkContext{
		ContextFooter,
		ContextNav,
		ContextBody,
		ContextLegalHub,
		ContextUnknown,
	}
}

// FeatureCount is the fixed width of a feature vector.
const FeatureCount = 24

// Feature vector index layout. Indices are fixed: the persisted scoring
// model's input weights are keyed by position.
const (
	FeatTextPrivacy      = 0  // privacy keyword in link text
	FeatTextTerms        = 1  // terms keyword in link text
	FeatTextCookie       = 2  // cookie keyword in link text
	FeatTextLegal        = 3  // legal keyword in link text
	FeatKeywordStrength  = 4  // aggregate keyword match strength
	FeatURLPrivacy       = 5  // privacy path pattern in URL
	FeatURLTerms         = 6  // terms path pattern in URL
	FeatURLLegal         = 7  // legal path pattern in URL
	FeatPathDepth        = 8  // path depth / 5, capped
	FeatURLLength        = 9  // URL length / 200, capped
	FeatHTTPS            = 10 // https scheme
	FeatCtxFooter        = 11 // context one-hot
	FeatCtxNav           = 12
	FeatCtxLegalHub      = 13
	FeatCtxBody          = 14
	FeatContentPolicy    = 15 // content signals; zero when no page text supplied
	FeatContentHeadings  = 16
	FeatContentJargon    = 17
	FeatContentWordCount = 18
	FeatContentContact   = 19
	FeatTextLength       = 20 // link text length / 50, capped
	FeatIconHint         = 21 // icon or lock symbol near the link
	FeatCrossDomain      = 22 // href host differs from page host
	FeatYearInText       = 23 // four-digit year in link text
)

// FeatureVector is a fixed-width ordered numeric feature array. Every value
// lies in [0,1]: booleans are 0/1, continuous values are min(v/max, 1).
type FeatureVector [FeatureCount]float64

// Validate returns an error if any dimension lies outside [0,1].
func (f FeatureVector) Validate() error {
	for i, v := range f {
		if v < 0 || v > 1 {
			return eris.Errorf("feature %d out of range: %f", i, v)
		}
	}
	return nil
}

// Slice returns the vector as a []float64 for the scoring model.
func (f FeatureVector) Slice() []float64 {
	out := make([]float64, FeatureCount)
	copy(out, f[:])
	return out
}

// combinedNeuralWeight scales the neural score when ranking candidates.
// A fully confident model prediction is worth as much as footer placement.
const combinedNeuralWeight = 30.0

// CandidateLink is an anchor extracted from a page, considered as a possible
// pointer to a policy document. Created per extraction pass and discarded
// after ranking; never persisted.
type CandidateLink struct {
	URL       string        `json:"url"`
	Text      string        `json:"text"`
	Context   LinkContext   `json:"context"`
	Visible   bool          `json:"visible"`
	Strategy  string        `json:"strategy"`
	Heuristic int           `json:"heuristic"`
	Neural    float64       `json:"neural"`
	Features  FeatureVector `json:"-"`
}

// CombinedScore ranks candidates for verification: the rule-based heuristic
// dominates, with the neural score reordering near-ties.
func (c CandidateLink) CombinedScore() float64 {
	return float64(c.Heuristic) + combinedNeuralWeight*c.Neural
}

// TrainingExample pairs a candidate's features with its verification label.
type TrainingExample struct {
	Features FeatureVector `json:"features"`
	Label    float64       `json:"label"` // 1 = verified policy, 0 = rejected
}
