package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"indexcheck-go/pkg/checker"
)

const (
	SheetName         = "Results"
	urlColumnWidth    = 50
	statusColumnWidth = 15
)

// XLSXRenderer writes a workbook with a single "Results" sheet.
type XLSXRenderer struct{}

func (XLSXRenderer) Format() Format { return FormatXLSX }
func (XLSXRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (XLSXRenderer) Filename(base string) string { return filename(base, FormatXLSX) }

func (XLSXRenderer) Render(results []checker.LookupResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", "A", urlColumnWidth); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(SheetName, "B", "B", statusColumnWidth); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &[]interface{}{HeaderURL, HeaderStatus}); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "B1", bold); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i, r := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &[]interface{}{r.URL, r.Display()}); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
