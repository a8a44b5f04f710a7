// Package export writes a user's score history to spreadsheet files.
package export

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"atscore/internal/types"

	"github.com/xuri/excelize/v2"
)

// Sheet names
const (
	SummarySheet = "Summary"
	HistorySheet = "History"
)

var historyHeaders = []string{"Time", "Source", "Score", "Job ID", "Event ID"}

// History is everything exported for one user
type History struct {
	User   types.User
	Events []types.ScoredEvent
}

// SaveHistory writes h to path, adding the .xlsx extension when missing
func SaveHistory(h History, path string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}
	path = filepath.Clean(path)

	f, err := buildWorkbook(h)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return path, nil
}

// WriteHistory streams the workbook for h to w
func WriteHistory(h History, w io.Writer) error {
	f, err := buildWorkbook(h)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func buildWorkbook(h History) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(HistorySheet); err != nil {
		_ = f.Close()
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if err := writeSummarySheet(f, h, headerStyle); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := writeHistorySheet(f, h.Events, headerStyle); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create history sheet: %w", err)
	}
	return f, nil
}

func writeSummarySheet(f *excelize.File, h History, headerStyle int) error {
	if err := f.SetColWidth(SummarySheet, "A", "A", 22); err != nil {
		return err
	}
	if err := f.SetColWidth(SummarySheet, "B", "B", 40); err != nil {
		return err
	}

	rows := [][]any{
		{"ATS Score History", ""},
		{"User ID", h.User.ID},
		{"Email", h.User.Email},
		{"Name", h.User.Name},
		{"Exported", time.Now().UTC().Format(time.RFC3339)},
		{"Events", len(h.Events)},
	}
	if s := h.User.Summary; s != nil {
		rows = append(rows,
			[]any{"Average Score", s.AverageScore},
			[]any{"Latest Score", s.LatestScore},
			[]any{"Improvement (%)", s.Improvement},
			[]any{"Summary Updated", formatTime(s.UpdatedAt)},
		)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.MergeCell(SummarySheet, "A1", "B1"); err != nil {
		return err
	}
	return f.SetCellStyle(SummarySheet, "A1", "B1", headerStyle)
}

func writeHistorySheet(f *excelize.File, events []types.ScoredEvent, headerStyle int) error {
	if err := f.SetColWidth(HistorySheet, "A", "A", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(HistorySheet, "B", "E", 18); err != nil {
		return err
	}

	if err := f.SetSheetRow(HistorySheet, "A1", &historyHeaders); err != nil {
		return err
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(historyHeaders), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(HistorySheet, "A1", lastHeader, headerStyle); err != nil {
		return err
	}

	for i, event := range events {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{formatTime(event.EffectiveTime()), event.Source, event.Score, event.JobID, event.ID}
		if err := f.SetSheetRow(HistorySheet, cell, &row); err != nil {
			return err
		}
	}

	if len(events) > 0 {
		lastCell, err := excelize.CoordinatesToCellName(len(historyHeaders), len(events)+1)
		if err != nil {
			return err
		}
		if err := f.AutoFilter(HistorySheet, "A1:"+lastCell, []excelize.AutoFilterOptions{}); err != nil {
			return err
		}
	}

	return f.SetPanes(HistorySheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
