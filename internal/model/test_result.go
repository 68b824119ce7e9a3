package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/ielts-mock/internal/scoring"
)

// ResultStatus enumerates test result states.
type ResultStatus string

const (
	ResultStatusCompleted  ResultStatus = "COMPLETED"
	ResultStatusIncomplete ResultStatus = "INCOMPLETE"
)

// PendingAdminNote marks results that still need manual scoring.
const PendingAdminNote = "to be scored by admin"

// SectionResult is the stored answers and score of a scorable section.
type SectionResult struct {
	Answers scoring.Answers     `json:"answers"`
	Score   scoring.ScoreResult `json:"score"`
}

// WritingResult is the stored writing texts and the admin-given band.
type WritingResult struct {
	Task1      string  `json:"task1"`
	Task2      string  `json:"task2"`
	Task1Words int     `json:"task1_words"`
	Task2Words int     `json:"task2_words"`
	Band       float64 `json:"band"`
}

// TestResult is one finished or abandoned test.
type TestResult struct {
	ID              uuid.UUID     `json:"id"`
	CandidateID     string        `json:"candidate_id"`
	CandidateNumber string        `json:"candidate_number,omitempty"`
	CandidateName   string        `json:"candidate_name,omitempty"`
	ReadingTestID   int           `json:"reading_test_id"`
	ListeningTestID int           `json:"listening_test_id"`
	Reading         SectionResult `json:"reading"`
	Listening       SectionResult `json:"listening"`
	Writing         WritingResult `json:"writing"`
	OverallBand     float64       `json:"overall_band"`
	Status          ResultStatus  `json:"status"`
	Note            string        `json:"note,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// ResultSort enumerates the admin list orderings.
type ResultSort string

const (
	ResultSortNewest          ResultSort = "newest"
	ResultSortOldest          ResultSort = "oldest"
	ResultSortCandidate       ResultSort = "candidate"
	ResultSortCandidateNumber ResultSort = "candidate_number"
	ResultSortOverall         ResultSort = "overall"
)

// ResultQuery filters and orders the admin result list.
type ResultQuery struct {
	Search  string     `form:"search" binding:"omitempty,max=255"`
	Sort    ResultSort `form:"sort" binding:"omitempty,oneof=newest oldest candidate candidate_number overall"`
	Page    int        `form:"page" binding:"omitempty,min=1"`
	PerPage int        `form:"per_page" binding:"omitempty,min=1,max=200"`
}

// RescoreRequest carries an administrator's manual scores. Nil fields keep
// the stored value.
type RescoreRequest struct {
	ReadingCorrect   *int     `json:"reading_correct" binding:"omitempty,min=0"`
	ListeningCorrect *int     `json:"listening_correct" binding:"omitempty,min=0"`
	WritingBand      *float64 `json:"writing_band" binding:"omitempty,band"`
}

// DeleteResultRequest must carry the literal confirmation token.
type DeleteResultRequest struct {
	Confirmation string `json:"confirmation" binding:"required"`
}

// ResultStats summarizes the collection for the admin dashboard.
type ResultStats struct {
	Total            int     `json:"total"`
	Completed        int     `json:"completed"`
	Incomplete       int     `json:"incomplete"`
	LastWeek         int     `json:"last_week"`
	AverageReading   float64 `json:"average_reading"`
	AverageListening float64 `json:"average_listening"`
	AverageWriting   float64 `json:"average_writing"`
	AverageOverall   float64 `json:"average_overall"`
}
