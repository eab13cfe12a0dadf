package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const defaultSheetName = "Timetable"

// XLSXExporter renders a table into a single-sheet workbook.
type XLSXExporter struct {
	sheet string
}

// NewXLSXExporter builds an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{sheet: defaultSheetName}
}

// Render writes the title in a merged first row, headers in the second and data below,
// freezing the header rows.
func (e *XLSXExporter) Render(table Table) ([]byte, error) {
	if err := table.validate("xlsx"); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close()

	sheet := e.sheet
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 13},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create title style: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(len(table.Headers))
	if err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheet, "A1", table.Title); err != nil {
		return nil, err
	}
	if err := f.MergeCell(sheet, "A1", lastCol+"1"); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", titleStyle); err != nil {
		return nil, err
	}

	for i, header := range table.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, col, col, xlsxColumnWidth(table, i)); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(sheet, "A2", lastCol+"2", headerStyle); err != nil {
		return nil, err
	}

	for r, row := range table.Rows {
		for i := range table.Headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+3)
			if err := f.SetCellValue(sheet, cell, cellAt(row, i)); err != nil {
				return nil, err
			}
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      2,
		TopLeftCell: "A3",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func xlsxColumnWidth(table Table, idx int) float64 {
	longest := len(table.Headers[idx])
	for _, row := range table.Rows {
		if n := len(cellAt(row, idx)); n > longest {
			longest = n
		}
	}
	width := float64(longest) + 2
	if width < 8 {
		width = 8
	}
	if width > 60 {
		width = 60
	}
	return width
}
