package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Domains")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "domains.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadCSV_DomainColumnHeader(t *testing.T) {
	csvData := `company,domain,notes
Acme,acme.example,analytics
Beta,https://www.beta.example/about,storage
Acme again,acme.example,duplicate
`
	domains, err := ReadCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, []string{"acme.example", "beta.example"}, domains)
}

func TestReadCSV_URLColumnHeader(t *testing.T) {
	csvData := `name,URL
Acme,https://acme.example/privacy
Beta,beta.example
`
	domains, err := ReadCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, []string{"acme.example", "beta.example"}, domains)
}

func TestReadCSV_NoHeaderFirstColumn(t *testing.T) {
	csvData := `acme.example,Acme Inc
beta.example,Beta LLC
`
	domains, err := ReadCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, []string{"acme.example", "beta.example"}, domains)
}

func TestReadCSV_BareList(t *testing.T) {
	csvData := `acme.example
beta.example
# a comment line
acme.example
invalid entry
`
	domains, err := ReadCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, []string{"acme.example", "beta.example"}, domains)
}

func TestReadCSV_Empty(t *testing.T) {
	domains, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, domains)
}

func TestReadCSV_ShortRowsSkipped(t *testing.T) {
	csvData := `name,domain
Acme,acme.example
loner
Beta,beta.example
`
	domains, err := ReadCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, []string{"acme.example", "beta.example"}, domains)
}

func TestReadXLSX_DomainColumn(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"Company", "Domain"},
		{"Acme", "acme.example"},
		{"Beta", "https://beta.example"},
		{"Dup", "acme.example"},
	})

	domains, err := ReadXLSX(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme.example", "beta.example"}, domains)
}

func TestReadXLSX_NoHeader(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"acme.example"},
		{"beta.example"},
	})

	domains, err := ReadXLSX(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme.example", "beta.example"}, domains)
}

func TestReadXLSX_MissingFile(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "absent.xlsx"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest: open xlsx")
}

func TestReadDomains_DispatchesByExtension(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "list.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("domain\nacme.example\n"), 0o644))

	domains, err := ReadDomains(csvPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme.example"}, domains)

	xlsxPath := createTestXLSX(t, [][]string{{"domain"}, {"beta.example"}})
	domains, err = ReadDomains(xlsxPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"beta.example"}, domains)
}

func TestReadDomains_MissingFile(t *testing.T) {
	_, err := ReadDomains(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
}
