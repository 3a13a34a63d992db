// Package export dumps the attendance log to delimited text or a
// spreadsheet.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"attendd/store"
)

var header = []string{"Name", "Date", "Time In", "Time Out", "Status"}

// Events writes all events to path, choosing the format by extension:
// ".xlsx" produces a spreadsheet, anything else delimited text.
func Events(events []store.Event, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return writeXLSX(events, path)
	}
	return writeCSV(events, path)
}

func writeCSV(events []store.Event, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range events {
		if err := w.Write(row(e)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

func writeXLSX(events []store.Event, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Attendance"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("new sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &cells); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, e := range events {
		r := row(e)
		cells := make([]any, len(r))
		for j, v := range r {
			cells[j] = v
		}
		axis, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, axis, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func row(e store.Event) []string {
	return []string{e.Name, e.Date, e.TimeIn, e.TimeOut, e.Status}
}
