package notion

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policyscout/discovery-cli/internal/model"
)

func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.csv")

	written, err := WriteCSV(path, exportDocs())
	require.NoError(t, err)
	assert.Equal(t, 3, written)

	records := readCSVFile(t, path)
	require.Len(t, records, 4)
	assert.Equal(t, csvHeader, records[0])

	// Rows sorted by domain, cache order within a domain.
	assert.Equal(t, []string{
		"acme.com", "https://acme.com/privacy", "Privacy Policy", "privacy",
		"0.90", "direct", "2026-03-01T12:00:00Z",
	}, records[1])
	assert.Equal(t, "https://acme.com/terms", records[2][1])
	assert.Equal(t, "beta.com", records[3][0])
}

func TestWriteCSV_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")

	written, err := WriteCSV(path, nil)
	require.NoError(t, err)
	assert.Zero(t, written)

	records := readCSVFile(t, path)
	require.Len(t, records, 1)
	assert.Equal(t, csvHeader, records[0])
}

func TestWriteCSV_ZeroDiscoveredAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.csv")

	docs := map[string][]model.PolicyDocument{
		"acme.com": {{URL: "https://acme.com/privacy", Type: model.DocTypePrivacy, Confidence: 0.65}},
	}
	written, err := WriteCSV(path, docs)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	records := readCSVFile(t, path)
	require.Len(t, records, 2)
	assert.Equal(t, "0.65", records[1][4])
	assert.Empty(t, records[1][6])
}

func TestWriteCSV_BadPath(t *testing.T) {
	_, err := WriteCSV(filepath.Join(t.TempDir(), "missing", "documents.csv"), exportDocs())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "notion: create csv")
}
