package export

import "fmt"

// Table is ordered tabular content shared by the CSV, PDF and XLSX renderers.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

func (t Table) validate(format string) error {
	if len(t.Headers) == 0 {
		return fmt.Errorf("%s requires at least one header", format)
	}
	for i, row := range t.Rows {
		if len(row) > len(t.Headers) {
			return fmt.Errorf("%s row %d has %d cells for %d headers", format, i+1, len(row), len(t.Headers))
		}
	}
	return nil
}

func cellAt(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}
