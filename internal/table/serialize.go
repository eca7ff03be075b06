// Package table writes and reads the intermediate delimited file that sits
// between the conversion and upload stages. The escaping is deliberately
// narrow: quotes are doubled, and a cell is quoted only when it contains a
// quote, a comma or a newline. Parse is its exact inverse.
package table

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dsas-mobility/fleet-migration/internal/models"
)

// ResolveColumns returns the column order for serialization: the priority
// names that are present come first, in their declared order, followed by
// the remaining columns in first-seen order.
func ResolveColumns(columns *models.ColumnSet, priority []string) []string {
	cols := columns.Columns()
	for i := len(priority) - 1; i >= 0; i-- {
		name := priority[i]
		idx := indexOf(cols, name)
		if idx < 0 {
			continue
		}
		cols = append(cols[:idx], cols[idx+1:]...)
		cols = append([]string{name}, cols...)
	}
	return cols
}

// Serialize renders a header row followed by one row per record. Missing
// fields become empty cells. Rows are joined by "\n" with no trailing
// newline.
func Serialize(records []models.VehicleRecord, columns []string) string {
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, renderRow(columns, func(i int) string { return columns[i] }))
	for _, rec := range records {
		lines = append(lines, renderRow(columns, func(i int) string { return rec[columns[i]] }))
	}
	return strings.Join(lines, "\n")
}

func renderRow(columns []string, cell func(i int) string) string {
	cells := make([]string, len(columns))
	for i := range columns {
		cells[i] = EscapeCell(cell(i))
	}
	return strings.Join(cells, ",")
}

// EscapeCell doubles embedded quotes and wraps the cell in quotes when it
// contains a quote, a comma or a newline.
func EscapeCell(v string) string {
	v = strings.ReplaceAll(v, `"`, `""`)
	if strings.ContainsAny(v, "\",\n") {
		v = `"` + v + `"`
	}
	return v
}

// WriteFile writes content next to path and renames it into place, so the
// output is either fully written or left untouched.
func WriteFile(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
