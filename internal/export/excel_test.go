package export

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"atscore/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleHistory() History {
	created := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	return History{
		User: types.User{
			ID:    "u1",
			Email: "ada@example.com",
			Name:  "Ada",
			Summary: &types.UserScoreSummary{
				UserID: "u1", AverageScore: 60, LatestScore: 70, Improvement: 8, EventCount: 2, UpdatedAt: created,
			},
		},
		Events: []types.ScoredEvent{
			{ID: "e2", UserID: "u1", Score: 70, Source: types.EventSourceSubmission, CreatedAt: created.Add(time.Hour), JobID: "job-1"},
			{ID: "e1", UserID: "u1", Score: 50, Source: types.EventSourceResumeVersion, ParentCreatedAt: created},
		},
	}
}

func TestWriteHistory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHistory(sampleHistory(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{SummarySheet, HistorySheet}, f.GetSheetList())

	rows, err := f.GetRows(HistorySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Time", "Source", "Score", "Job ID", "Event ID"}, rows[0])
	assert.Equal(t, []string{"2026-02-01T10:00:00Z", "submission", "70", "job-1", "e2"}, rows[1])
	// Events without their own timestamp use the parent's
	assert.Equal(t, "2026-02-01T09:00:00Z", rows[2][0])

	avg, err := f.GetCellValue(SummarySheet, "B7")
	require.NoError(t, err)
	assert.Equal(t, "60", avg)
	email, err := f.GetCellValue(SummarySheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", email)
}

func TestSaveHistoryAddsExtension(t *testing.T) {
	h := sampleHistory()
	h.User.Summary = nil
	h.Events = nil

	path, err := SaveHistory(h, filepath.Join(t.TempDir(), "history"))
	require.NoError(t, err)
	assert.Equal(t, ".xlsx", filepath.Ext(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(HistorySheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	events, err := f.GetCellValue(SummarySheet, "B6")
	require.NoError(t, err)
	assert.Equal(t, "0", events)
}
