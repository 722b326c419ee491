package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/policyscout/discovery-cli/internal/model"
	"github.com/policyscout/discovery-cli/pkg/anthropic"
)

const (
	// Band of keyword confidence in which the analyzer is worth its call.
	ambiguousLow  = 0.4
	ambiguousHigh = model.HighConfidenceThreshold

	defaultAnalyzeTimeout = 15 * time.Second
	excerptLen            = 2000
)

// Analysis is the analyzer's judgment on an ambiguous document.
type Analysis struct {
	Type       model.DocumentType `json:"type"`
	Confidence float64            `json:"confidence"`
	Reasoning  string             `json:"reasoning"`
}

// Analyzer is consulted when keyword classification lands in the
// ambiguous band.
type Analyzer interface {
	AnalyzeDocument(ctx context.Context, excerpt string) (*Analysis, error)
}

// Refiner runs deterministic classification and consults an optional
// analyzer only when the result is ambiguous. Analyzer failures keep the
// keyword result, so classification works without network access.
type Refiner struct {
	analyzer Analyzer
	timeout  time.Duration
}

// NewRefiner wraps analyzer with the default ambiguity band. A nil
// analyzer yields pure keyword classification.
func NewRefiner(analyzer Analyzer, timeout time.Duration) *Refiner {
	if timeout <= 0 {
		timeout = defaultAnalyzeTimeout
	}
	return &Refiner{analyzer: analyzer, timeout: timeout}
}

// Classify returns the keyword classification, refined by the analyzer
// when the confidence falls in the ambiguous band.
func (r *Refiner) Classify(ctx context.Context, text string) model.Classification {
	result := Classify(text)
	if r.analyzer == nil || result.Confidence < ambiguousLow || result.Confidence >= ambiguousHigh {
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	analysis, err := r.analyzer.AnalyzeDocument(ctx, excerpt(text))
	if err != nil {
		zap.L().Warn("classify: analyzer unavailable, keeping keyword result",
			zap.String("type", string(result.Type)),
			zap.Float64("confidence", result.Confidence),
			zap.Error(err),
		)
		return result
	}

	zap.L().Debug("classify: analyzer refined ambiguous result",
		zap.String("keyword_type", string(result.Type)),
		zap.Float64("keyword_confidence", result.Confidence),
		zap.String("refined_type", string(analysis.Type)),
		zap.Float64("refined_confidence", analysis.Confidence),
	)
	result.Type = analysis.Type
	result.Confidence = clamp01(analysis.Confidence)
	result.Reasoning = analysis.Reasoning
	return result
}

func excerpt(text string) string {
	if len(text) > excerptLen {
		return text[:excerptLen]
	}
	return text
}

const analyzeSystemPrompt = `You review legal documents. Classify the given page text as exactly one of: privacy, terms, cookie, data_processing_agreement, other. Respond with a valid JSON object: {"type": "<category>", "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}`

const analyzeUserPrompt = `Page text (first %d chars):
%s`

// LLMAnalyzer classifies ambiguous documents with an Anthropic model.
// The fixed system prompt is cache-marked so repeated calls only pay for
// the excerpt.
type LLMAnalyzer struct {
	client anthropic.Client
	model  string
}

// NewLLMAnalyzer builds an analyzer on client using the given model id.
func NewLLMAnalyzer(client anthropic.Client, modelID string) *LLMAnalyzer {
	return &LLMAnalyzer{client: client, model: modelID}
}

func (a *LLMAnalyzer) AnalyzeDocument(ctx context.Context, excerpt string) (*Analysis, error) {
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: 256,
		System:    anthropic.BuildCachedSystemBlocks(analyzeSystemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(analyzeUserPrompt, excerptLen, excerpt)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "classify: analyze document")
	}
	resp.Usage.LogCost(a.model, "classify")
	return parseAnalysis(extractText(resp))
}

func parseAnalysis(text string) (*Analysis, error) {
	text = cleanJSON(text)

	var out struct {
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, eris.Wrap(err, "classify: parse analysis")
	}

	dt := model.DocumentType(strings.ToLower(strings.TrimSpace(out.Type)))
	if !dt.Valid() {
		dt = model.DocTypeOther
	}
	return &Analysis{
		Type:       dt,
		Confidence: clamp01(out.Confidence),
		Reasoning:  strings.TrimSpace(out.Reasoning),
	}, nil
}

func extractText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, block := range resp.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// cleanJSON extracts a JSON object from text that may carry markdown
// code fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
