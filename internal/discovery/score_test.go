package discovery

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policyscout/discovery-cli/internal/feature"
	"github.com/policyscout/discovery-cli/internal/model"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases host", "https://Example.COM/Privacy", "https://example.com/Privacy"},
		{"strips default https port", "https://example.com:443/privacy", "https://example.com/privacy"},
		{"strips default http port", "http://example.com:80/privacy", "http://example.com/privacy"},
		{"keeps explicit port", "https://example.com:8443/privacy", "https://example.com:8443/privacy"},
		{"drops fragment", "https://example.com/privacy#section-2", "https://example.com/privacy"},
		{"strips trailing slash", "https://example.com/privacy/", "https://example.com/privacy"},
		{"root collapses to host", "https://example.com/", "https://example.com"},
		{"unparsable passes through", "https://[bad/privacy", "https://[bad/privacy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeURL(tt.in))
		})
	}
}

func TestDedupe(t *testing.T) {
	lower := model.CandidateLink{URL: "https://example.com/privacy", Heuristic: 40, Strategy: "crawl"}
	higher := model.CandidateLink{URL: "https://EXAMPLE.com/privacy/", Heuristic: 75, Strategy: "direct"}
	other := model.CandidateLink{URL: "https://example.com/terms", Heuristic: 55}

	out := dedupe([]model.CandidateLink{lower, higher, other})
	require.Len(t, out, 2)
	// The higher-scoring duplicate replaces the first occurrence in place.
	assert.Equal(t, "direct", out[0].Strategy)
	assert.Equal(t, 75, out[0].Heuristic)
	assert.Equal(t, "https://example.com/terms", out[1].URL)
}

func TestDedupe_TieKeepsFirst(t *testing.T) {
	first := model.CandidateLink{URL: "https://example.com/privacy", Heuristic: 70, Strategy: "direct"}
	second := model.CandidateLink{URL: "https://example.com/privacy", Heuristic: 70, Strategy: "crawl"}

	out := dedupe([]model.CandidateLink{first, second})
	require.Len(t, out, 1)
	assert.Equal(t, "direct", out[0].Strategy)
}

func TestRank(t *testing.T) {
	links := []model.CandidateLink{
		{URL: "a", Heuristic: 40},
		{URL: "b", Heuristic: 70, Neural: 0.5},
		{URL: "c", Heuristic: 70},
		{URL: "d", Heuristic: 40},
	}

	out := rank(links)
	// b: 85, c: 70, then the two 40s in input order.
	assert.Equal(t, "b", out[0].URL)
	assert.Equal(t, "c", out[1].URL)
	assert.Equal(t, "a", out[2].URL)
	assert.Equal(t, "d", out[3].URL)
}

func TestScoreCandidates_DropsNonPositive(t *testing.T) {
	eng := New(Config{}, nil, &mockFetcher{}, nil, nil, feature.DefaultConfig(), nil, nil)

	links := []model.CandidateLink{
		{URL: "https://example.com/privacy", Text: "Privacy Policy", Context: model.ContextFooter},
		{URL: "https://example.com/careers", Text: "Careers", Context: model.ContextBody},
	}
	out := eng.scoreCandidates(links, "example.com")

	require.Len(t, out, 1)
	assert.Equal(t, "https://example.com/privacy", out[0].URL)
	assert.Positive(t, out[0].Heuristic)
	assert.Zero(t, out[0].Neural)
	require.NoError(t, out[0].Features.Validate())
}

func TestScoreCandidates_NeuralScoreAttached(t *testing.T) {
	eng := New(Config{}, nil, &mockFetcher{}, &mockScorer{score: 0.85}, nil, feature.DefaultConfig(), nil, nil)

	out := eng.scoreCandidates([]model.CandidateLink{
		{URL: "https://example.com/privacy", Text: "Privacy Policy", Context: model.ContextFooter},
	}, "example.com")

	require.Len(t, out, 1)
	assert.InDelta(t, 0.85, out[0].Neural, 1e-9)
	assert.InDelta(t, float64(out[0].Heuristic)+30*0.85, out[0].CombinedScore(), 1e-9)
}

func TestScoreCandidates_PredictErrorExcludes(t *testing.T) {
	eng := New(Config{}, nil, &mockFetcher{},
		&mockScorer{err: eris.New("neural: expected 24 features, got 9")},
		nil, feature.DefaultConfig(), nil, nil)

	out := eng.scoreCandidates([]model.CandidateLink{
		{URL: "https://example.com/privacy", Text: "Privacy Policy", Context: model.ContextFooter},
	}, "example.com")
	assert.Empty(t, out)
}

func TestScoreCandidates_DeprioritizedLanguage(t *testing.T) {
	eng := New(Config{}, nil, &mockFetcher{}, nil, nil, feature.DefaultConfig(), nil, nil)

	out := eng.scoreCandidates([]model.CandidateLink{
		{URL: "https://example.com/de/datenschutz", Text: "Datenschutz", Context: model.ContextFooter},
		{URL: "https://example.com/privacy", Text: "Privacy Policy", Context: model.ContextFooter},
	}, "example.com")

	require.Len(t, out, 2)
	assert.Greater(t, out[1].Heuristic, out[0].Heuristic)
}
