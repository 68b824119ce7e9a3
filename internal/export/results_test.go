package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/stemsi/ielts-mock/internal/model"
	"github.com/stemsi/ielts-mock/internal/scoring"
)

func TestWriteResults(t *testing.T) {
	id := uuid.MustParse("7d1f3c2a-9a4e-4b1e-9b7e-2f0c5d6e8a10")
	results := []model.TestResult{{
		ID:              id,
		CandidateID:     "c-1",
		CandidateNumber: "007",
		CandidateName:   "Rina",
		ReadingTestID:   2,
		ListeningTestID: 1,
		Listening:       model.SectionResult{Score: scoring.ScoreResult{RawCorrectCount: 7, Total: 14, Band: 5.0}},
		Reading:         model.SectionResult{Score: scoring.ScoreResult{RawCorrectCount: 3, Total: 3, Band: 9.0}},
		Writing:         model.WritingResult{Task1Words: 152, Band: 6.5},
		OverallBand:     7.0,
		Status:          model.ResultStatusCompleted,
		CreatedAt:       time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, results))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Result ID", rows[0][0])
	assert.Len(t, rows[0], len(Header))

	row := rows[1]
	assert.Equal(t, id.String(), row[0])
	assert.Equal(t, "2026-03-01 09:30", row[1])
	assert.Equal(t, "Rina", row[4])
	assert.Equal(t, "COMPLETED", row[5])
	assert.Equal(t, "7", row[7])
	assert.Equal(t, "14", row[8])
	assert.Equal(t, "5", row[9])
	assert.Equal(t, "152", row[14])
	assert.Equal(t, "6.5", row[16])
	assert.Equal(t, "7", row[17])
}

func TestWriteResults_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
