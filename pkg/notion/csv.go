package notion

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/policyscout/discovery-cli/internal/model"
)

// csvHeader is the column layout of a local document export.
var csvHeader = []string{"domain", "url", "title", "type", "confidence", "source", "discovered_at"}

// WriteCSV writes cached policy documents to a local CSV file, one row per
// document, sorted by domain. It is the offline fallback when no Notion
// credentials are configured. Returns the number of rows written.
func WriteCSV(path string, docs map[string][]model.PolicyDocument) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, fmt.Sprintf("notion: create csv %s", path))
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return 0, eris.Wrap(err, "notion: write csv header")
	}

	domains := make([]string, 0, len(docs))
	for d := range docs {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	written := 0
	for _, domain := range domains {
		for _, doc := range docs[domain] {
			record := []string{
				domain,
				doc.URL,
				doc.Title,
				string(doc.Type),
				strconv.FormatFloat(doc.Confidence, 'f', 2, 64),
				doc.Source,
				formatDiscovered(doc.DiscoveredAt),
			}
			if err := w.Write(record); err != nil {
				return written, eris.Wrap(err, "notion: write csv row")
			}
			written++
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return written, eris.Wrap(err, "notion: flush csv")
	}
	return written, nil
}

func formatDiscovered(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
