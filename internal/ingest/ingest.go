// Package ingest reads domain lists from CSV and XLSX files for queue
// loading. Readers return normalized, deduplicated domains; rows that do
// not hold a usable domain are skipped, not fatal.
package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/policyscout/discovery-cli/internal/queue"
)

// domainHeaders are recognized header names for the domain column,
// matched case-insensitively against the first row.
var domainHeaders = []string{"domain", "url", "website", "homepage"}

// ReadDomains loads a domain list from path: .xlsx through the
// spreadsheet reader, everything else as CSV. A bare one-domain-per-line
// file is a valid single-column CSV.
func ReadDomains(path string) ([]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadXLSX(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV reads domains row by row. When the first row names a domain
// column it is used as the header; otherwise the first column is data
// from the first row on.
func ReadCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var (
		out   []string
		seen  = make(map[string]bool)
		col   = 0
		first = true
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read csv row")
		}

		if first {
			first = false
			if c, ok := headerColumn(record); ok {
				col = c
				continue
			}
		}
		if col < len(record) {
			out = addDomain(out, seen, record[col])
		}
	}
	return out, nil
}

// ReadXLSX reads domains from the first sheet, with the same header
// handling as ReadCSV.
func ReadXLSX(path string) ([]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("ingest: %s has no sheets", path)
	}
	sheet := f.Sheets[0]

	var (
		out  []string
		seen = make(map[string]bool)
		col  = 0
	)
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}

		if i == 0 {
			if c, ok := headerColumn(cells); ok {
				col = c
				continue
			}
		}
		if col < len(cells) {
			out = addDomain(out, seen, cells[col])
		}
	}
	return out, nil
}

// headerColumn reports which column the first row names as the domain
// column, if any.
func headerColumn(record []string) (int, bool) {
	for i, cell := range record {
		name := strings.ToLower(strings.TrimSpace(cell))
		for _, h := range domainHeaders {
			if name == h {
				return i, true
			}
		}
	}
	return 0, false
}

func addDomain(out []string, seen map[string]bool, raw string) []string {
	d, err := queue.NormalizeDomain(raw)
	if err != nil {
		if strings.TrimSpace(raw) != "" {
			zap.L().Debug("ingest: skipping entry", zap.String("value", strings.TrimSpace(raw)))
		}
		return out
	}
	if seen[d] {
		return out
	}
	seen[d] = true
	return append(out, d)
}
