package discovery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/policyscout/discovery-cli/internal/classify"
	"github.com/policyscout/discovery-cli/internal/extract"
	"github.com/policyscout/discovery-cli/internal/model"
)

// verify walks ranked candidates in descending score order, fetching and
// classifying until MaxResults documents are collected, MaxVerify
// candidates have been tried, or the session budget expires. Documents
// are kept first-come per type. Every fetched candidate produces one
// training example: 1 when it verified as a policy, 0 when rejected;
// candidates that never fetched produce none.
func (e *Engine) verify(ctx context.Context, ranked []model.CandidateLink) ([]model.PolicyDocument, []model.TrainingExample, int) {
	limit := min(e.cfg.MaxVerify, len(ranked))

	var (
		docs     []model.PolicyDocument
		training []model.TrainingExample
		verified int
		byType   = make(map[model.DocumentType]bool)
	)

	for _, cand := range ranked[:limit] {
		if ctx.Err() != nil {
			break
		}
		if len(docs) >= e.cfg.MaxResults {
			break
		}

		doc, fetched := e.verifyOne(ctx, cand)
		if !fetched {
			// Nothing observed, no label.
			continue
		}

		label := 0.0
		if doc != nil {
			label = 1.0
			verified++
			if !byType[doc.Type] {
				byType[doc.Type] = true
				docs = append(docs, *doc)
			}
		}
		training = append(training, model.TrainingExample{Features: cand.Features, Label: label})
	}

	return docs, training, verified
}

// verifyOne fetches and classifies a single candidate. fetched reports
// whether the page was retrieved at all; doc is non-nil only when it
// verified as a policy document.
func (e *Engine) verifyOne(ctx context.Context, cand model.CandidateLink) (doc *model.PolicyDocument, fetched bool) {
	log := zap.L().With(zap.String("url", cand.URL), zap.String("strategy", cand.Strategy))

	res, err := e.fetcher.Fetch(ctx, cand.URL)
	if err != nil {
		log.Debug("discovery: verify fetch failed", zap.Error(err))
		return nil, false
	}

	text, err := extract.Text(res.HTML)
	if err != nil {
		log.Debug("discovery: verify text extraction failed", zap.Error(err))
		return nil, false
	}

	if classify.IsGarbage(text) {
		log.Debug("discovery: candidate rejected", zap.String("reason", "garbage page"))
		return nil, true
	}
	if err := classify.Validate(text); err != nil {
		log.Debug("discovery: candidate rejected", zap.Error(err))
		return nil, true
	}

	cls := e.classifier.Classify(ctx, text)
	if cls.Type == model.DocTypeOther {
		log.Debug("discovery: candidate rejected", zap.String("reason", "below confidence threshold"))
		return nil, true
	}

	docURL := res.FinalURL
	if docURL == "" {
		docURL = cand.URL
	}
	doc = &model.PolicyDocument{
		URL:          docURL,
		Title:        res.Title,
		Text:         text,
		Type:         cls.Type,
		Confidence:   cls.Confidence,
		Source:       cand.Strategy,
		DiscoveredAt: time.Now().UTC(),
	}
	log.Info("discovery: document verified",
		zap.String("type", string(cls.Type)),
		zap.Float64("confidence", cls.Confidence),
	)
	return doc, true
}
