// Package export renders the result collection as a spreadsheet.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/stemsi/ielts-mock/internal/model"
)

// SheetName is the worksheet holding one row per result.
const SheetName = "Results"

// Header is the first row of the results sheet.
var Header = []any{
	"Result ID", "Date", "Candidate ID", "Candidate Number", "Candidate Name", "Status",
	"Listening Test", "Listening Correct", "Listening Total", "Listening Band",
	"Reading Test", "Reading Correct", "Reading Total", "Reading Band",
	"Task 1 Words", "Task 2 Words", "Writing Band", "Overall Band", "Note",
}

// WriteResults writes results as an XLSX workbook to w.
func WriteResults(w io.Writer, results []model.TestResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := resultRow(&results[i])
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "A", 38); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "B", "F", 18); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func resultRow(r *model.TestResult) []any {
	return []any{
		r.ID.String(),
		r.CreatedAt.Format("2006-01-02 15:04"),
		r.CandidateID,
		r.CandidateNumber,
		r.CandidateName,
		string(r.Status),
		r.ListeningTestID,
		r.Listening.Score.RawCorrectCount,
		r.Listening.Score.Total,
		r.Listening.Score.Band,
		r.ReadingTestID,
		r.Reading.Score.RawCorrectCount,
		r.Reading.Score.Total,
		r.Reading.Score.Band,
		r.Writing.Task1Words,
		r.Writing.Task2Words,
		r.Writing.Band,
		r.OverallBand,
		r.Note,
	}
}
