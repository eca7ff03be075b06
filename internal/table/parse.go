package table

import (
	"fmt"
	"os"
	"strings"

	"github.com/dsas-mobility/fleet-migration/internal/models"
)

const bom = "\ufeff"

// Parse reads text produced by Serialize. The first row is the header; each
// following row becomes a record keyed by header name, with missing
// trailing cells set to "". Newlines inside quoted cells are part of the
// value. Blank lines between rows are skipped.
func Parse(text string) (header []string, rows []models.VehicleRecord) {
	records := scan(strings.TrimPrefix(text, bom))
	if len(records) == 0 {
		return nil, nil
	}

	header = make([]string, len(records[0]))
	for i, name := range records[0] {
		header[i] = strings.TrimSpace(name)
	}

	rows = make([]models.VehicleRecord, 0, len(records)-1)
	for _, fields := range records[1:] {
		row := make(models.VehicleRecord, len(header))
		for i, name := range header {
			if i < len(fields) {
				row[name] = fields[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return header, rows
}

// ReadFile parses the intermediate file at path.
func ReadFile(path string) ([]string, []models.VehicleRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	header, rows := Parse(string(data))
	return header, rows, nil
}

// scan splits text into records of raw cells with a single in-quotes flag.
// Quote characters are kept while scanning and removed by unquote.
func scan(text string) [][]string {
	var (
		records  [][]string
		fields   []string
		cur      strings.Builder
		inQuotes bool
	)

	endField := func() {
		fields = append(fields, unquote(cur.String()))
		cur.Reset()
	}
	endRecord := func() {
		if len(fields) == 0 && strings.TrimSpace(cur.String()) == "" {
			cur.Reset()
			return
		}
		endField()
		records = append(records, fields)
		fields = nil
	}

	for _, r := range text {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case r == ',' && !inQuotes:
			endField()
		case r == '\n' && !inQuotes:
			endRecord()
		default:
			cur.WriteRune(r)
		}
	}
	endRecord()
	return records
}

// unquote strips one surrounding quote pair and collapses doubled quotes.
func unquote(raw string) string {
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	return strings.ReplaceAll(raw, `""`, `"`)
}
