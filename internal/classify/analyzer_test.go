package classify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policyscout/discovery-cli/internal/model"
	"github.com/policyscout/discovery-cli/pkg/anthropic"
)

type mockAnalyzer struct {
	analysis *Analysis
	err      error
	calls    int
	gotLen   int
	block    bool // hold until the context is canceled
}

func (m *mockAnalyzer) AnalyzeDocument(ctx context.Context, excerpt string) (*Analysis, error) {
	m.calls++
	m.gotLen = len(excerpt)
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.analysis, nil
}

func TestRefiner_SkipsConfidentResult(t *testing.T) {
	mock := &mockAnalyzer{analysis: &Analysis{Type: model.DocTypeOther, Confidence: 0.1}}
	r := NewRefiner(mock, 0)

	c := r.Classify(context.Background(), fullPrivacyPolicy)

	assert.Zero(t, mock.calls)
	assert.Equal(t, model.DocTypePrivacy, c.Type)
	assert.Empty(t, c.Reasoning)
}

func TestRefiner_SkipsHopelessResult(t *testing.T) {
	mock := &mockAnalyzer{analysis: &Analysis{Type: model.DocTypePrivacy, Confidence: 0.9}}
	r := NewRefiner(mock, 0)

	c := r.Classify(context.Background(), blogText)

	assert.Zero(t, mock.calls)
	assert.Equal(t, model.DocTypeOther, c.Type)
}

func TestRefiner_ConsultsInBand(t *testing.T) {
	mock := &mockAnalyzer{analysis: &Analysis{
		Type:       model.DocTypeTerms,
		Confidence: 0.85,
		Reasoning:  "standard service terms with a choice-of-law clause",
	}}
	r := NewRefiner(mock, 0)

	c := r.Classify(context.Background(), ambiguousText)

	assert.Equal(t, 1, mock.calls)
	assert.Equal(t, model.DocTypeTerms, c.Type)
	assert.InDelta(t, 0.85, c.Confidence, 1e-9)
	assert.NotEmpty(t, c.Reasoning)
}

func TestRefiner_AnalyzerErrorKeepsKeywordResult(t *testing.T) {
	mock := &mockAnalyzer{err: errors.New("api unavailable")}
	r := NewRefiner(mock, 0)

	c := r.Classify(context.Background(), ambiguousText)

	assert.Equal(t, 1, mock.calls)
	assert.Equal(t, Classify(ambiguousText), c)
	assert.Empty(t, c.Reasoning)
}

func TestRefiner_NilAnalyzer(t *testing.T) {
	r := NewRefiner(nil, 0)

	c := r.Classify(context.Background(), ambiguousText)
	assert.Equal(t, Classify(ambiguousText), c)
}

func TestRefiner_TimeoutDegrades(t *testing.T) {
	mock := &mockAnalyzer{block: true}
	r := NewRefiner(mock, 50*time.Millisecond)

	start := time.Now()
	c := r.Classify(context.Background(), ambiguousText)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, Classify(ambiguousText), c)
}

func TestRefiner_ExcerptCapped(t *testing.T) {
	mock := &mockAnalyzer{analysis: &Analysis{Type: model.DocTypeTerms, Confidence: 0.8}}
	r := NewRefiner(mock, 0)

	long := ambiguousText + strings.Repeat(" plain filler words", 200)
	require.Greater(t, len(long), excerptLen)

	r.Classify(context.Background(), long)

	require.Equal(t, 1, mock.calls)
	assert.Equal(t, excerptLen, mock.gotLen)
}

func TestParseAnalysis(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType model.DocumentType
		wantConf float64
		wantErr  bool
	}{
		{
			"plain json",
			`{"type": "privacy", "confidence": 0.9, "reasoning": "clear privacy language"}`,
			model.DocTypePrivacy, 0.9, false,
		},
		{
			"fenced json",
			"```json\n{\"type\": \"terms\", \"confidence\": 0.7, \"reasoning\": \"tos\"}\n```",
			model.DocTypeTerms, 0.7, false,
		},
		{
			"prose wrapped",
			`Here is my assessment: {"type": "cookie", "confidence": 0.65, "reasoning": "cookie usage"} Hope that helps.`,
			model.DocTypeCookie, 0.65, false,
		},
		{
			"unknown type coerced to other",
			`{"type": "contract", "confidence": 0.8, "reasoning": "x"}`,
			model.DocTypeOther, 0.8, false,
		},
		{
			"confidence clamped",
			`{"type": "privacy", "confidence": 1.7, "reasoning": "x"}`,
			model.DocTypePrivacy, 1.0, false,
		},
		{"no json", "I cannot classify this document.", "", 0, true},
		{"empty", "", "", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseAnalysis(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantType, got.Type)
			assert.InDelta(t, tc.wantConf, got.Confidence, 1e-9)
		})
	}
}

type mockMessageClient struct {
	gotReq anthropic.MessageRequest
	resp   *anthropic.MessageResponse
	err    error
}

func (m *mockMessageClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.gotReq = req
	return m.resp, m.err
}

func TestLLMAnalyzer_AnalyzeDocument(t *testing.T) {
	mock := &mockMessageClient{resp: &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{
			{Type: "text", Text: `{"type": "privacy", "confidence": 0.92, "reasoning": "describes data collection"}`},
		},
	}}
	a := NewLLMAnalyzer(mock, "claude-haiku-4-5-20251001")

	got, err := a.AnalyzeDocument(context.Background(), "We collect personal data.")
	require.NoError(t, err)

	assert.Equal(t, model.DocTypePrivacy, got.Type)
	assert.InDelta(t, 0.92, got.Confidence, 1e-9)
	assert.Equal(t, "describes data collection", got.Reasoning)

	assert.Equal(t, "claude-haiku-4-5-20251001", mock.gotReq.Model)
	require.NotEmpty(t, mock.gotReq.System)
	require.Len(t, mock.gotReq.Messages, 1)
	assert.Contains(t, mock.gotReq.Messages[0].Content, "We collect personal data.")
}

func TestLLMAnalyzer_RequestError(t *testing.T) {
	mock := &mockMessageClient{err: errors.New("overloaded")}
	a := NewLLMAnalyzer(mock, "claude-haiku-4-5-20251001")

	_, err := a.AnalyzeDocument(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analyze document")
}
