package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policyscout/discovery-cli/internal/model"
	"github.com/policyscout/discovery-cli/internal/neural"
	"github.com/policyscout/discovery-cli/internal/store"
)

func TestFormatDiscoveryResult_WithDocuments(t *testing.T) {
	r := &model.DiscoveryResult{
		Domain:             "acme.com",
		Success:            true,
		CandidatesFound:    12,
		CandidatesVerified: 4,
		ElapsedMs:          2150,
		Documents: []model.PolicyDocument{
			{URL: "https://acme.com/privacy", Type: model.DocTypePrivacy, Confidence: 0.92, Source: "direct"},
			{URL: "https://acme.com/terms", Type: model.DocTypeTerms, Confidence: 0.81, Source: "crawl"},
		},
	}

	var buf bytes.Buffer
	formatDiscoveryResult(&buf, r)

	out := buf.String()
	assert.Contains(t, out, "TYPE")
	assert.Contains(t, out, "privacy")
	assert.Contains(t, out, "https://acme.com/privacy")
	assert.Contains(t, out, "0.92")
	assert.Contains(t, out, "2 document(s) from 12 candidate(s) in 2150ms")
}

func TestFormatDiscoveryResult_NoDocuments(t *testing.T) {
	r := &model.DiscoveryResult{
		Domain:             "acme.com",
		CandidatesFound:    7,
		CandidatesVerified: 3,
		ElapsedMs:          900,
	}

	var buf bytes.Buffer
	formatDiscoveryResult(&buf, r)

	out := buf.String()
	assert.Contains(t, out, "No policy documents found for acme.com")
	assert.Contains(t, out, "7 candidates")
}

func TestApplyTraining_AdvancesGeneration(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	scorer, err := neural.NewScorer(context.Background(), st, "cmd-train-test")
	require.NoError(t, err)
	gen := scorer.Generation()

	examples := []model.TrainingExample{
		{Features: model.FeatureVector{0: 1, 3: 0.5}, Label: 1},
		{Features: model.FeatureVector{1: 1}, Label: 0},
	}
	applyTraining(context.Background(), scorer, examples)

	assert.Equal(t, gen+2, scorer.Generation())
}

func TestApplyTraining_NoExamples(t *testing.T) {
	// Nothing to apply; must not touch the scorer.
	applyTraining(context.Background(), nil, nil)
}
