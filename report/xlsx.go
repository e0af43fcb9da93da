package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName       = "Data Tests"
	defaultColWidth = 18
	wideColWidth    = 60

	failedBgColor  = "FFC7CE"
	skippedBgColor = "FFEB9C"
	headerBgColor  = "D9D9D9"
)

var xlsxHeaders = []string{
	"#", "Name", "Input", "Request", "Expected", "Result",
	"Duration (s)", "Test object", "Test run", "Stage", "Message",
}

// WriteXLSX writes one row per case followed by a summary to a new workbook at path.
func WriteXLSX(path string, entries []Entry, duration time.Duration) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(xlsxHeaders))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "A", lastCol, defaultColWidth); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, lastCol, lastCol, wideColWidth); err != nil {
		return err
	}

	headerStyle, err := fillStyle(f, headerBgColor, true)
	if err != nil {
		return err
	}
	failedStyle, err := fillStyle(f, failedBgColor, false)
	if err != nil {
		return err
	}
	skippedStyle, err := fillStyle(f, skippedBgColor, false)
	if err != nil {
		return err
	}

	header := make([]interface{}, len(xlsxHeaders))
	for i, h := range xlsxHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	for i, e := range entries {
		row := i + 2
		first := fmt.Sprintf("A%d", row)
		values := []interface{}{
			e.Index, e.Name, e.Input, e.Request, e.Expected, string(e.Status),
			e.Duration.Seconds(), e.TestObjectID, e.TestRunID, e.Stage, e.Message,
		}
		if err := f.SetSheetRow(sheetName, first, &values); err != nil {
			return err
		}
		style := 0
		switch e.Status {
		case Failed:
			style = failedStyle
		case Skipped:
			style = skippedStyle
		}
		if style != 0 {
			if err := f.SetCellStyle(sheetName, first, fmt.Sprintf("%s%d", lastCol, row), style); err != nil {
				return err
			}
		}
	}

	s := summarize(entries)
	summaryRow := len(entries) + 3
	for i, line := range []interface{}{
		"Summary",
		fmt.Sprintf("Total time: %.3fs", duration.Seconds()),
		fmt.Sprintf("Cases: %d", s.total),
		fmt.Sprintf("Failed: %d", s.failed),
		fmt.Sprintf("Skipped: %d", s.skipped),
	} {
		if err := f.SetCellValue(sheetName, fmt.Sprintf("A%d", summaryRow+i), line); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("cannot save report: %w", err)
	}
	return nil
}

func fillStyle(f *excelize.File, color string, bold bool) (int, error) {
	style := &excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
	}
	if bold {
		style.Font = &excelize.Font{Bold: true}
	}
	return f.NewStyle(style)
}
