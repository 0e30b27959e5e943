// Package export writes archived tasks to spreadsheet files.
package export

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/asifanwar1/taskothon/domain"
)

const sheetName = "Tasks"

var headers = []any{"Title", "Description", "Status", "Date", "Time", "Jira Link", "Category"}

// Excel writes .xlsx files into a fixed directory.
type Excel struct {
	dir string
}

// NewExcel creates an exporter writing into dir.
func NewExcel(dir string) *Excel {
	return &Excel{dir: dir}
}

// ExportRows writes the tasks to <dir>/<filename>.
func (e *Excel) ExportRows(tasks []domain.Task, filename string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	maxWidth := 10.0
	for i, t := range tasks {
		row := []any{t.Title, t.Description, string(t.Status), t.Date, t.Time, t.JiraLink, t.Category}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		for _, v := range row {
			if s, ok := v.(string); ok && float64(len(s)) > maxWidth {
				maxWidth = float64(len(s))
			}
		}
	}

	if maxWidth > 50 {
		maxWidth = 50
	}
	if err := f.SetColWidth(sheetName, "A", "B", maxWidth); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	for col, width := range map[string]float64{"C": 15, "D": 12, "E": 10, "F": 30, "G": 15} {
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}

	if err := f.SaveAs(filepath.Join(e.dir, filename)); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// MonthFilename is the deterministic archive filename for a month.
func MonthFilename(year int, month int) string {
	return fmt.Sprintf("tasks-%d-%02d.xlsx", year, month)
}
