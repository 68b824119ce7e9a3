package model

import "time"

// DefaultTestID is used when a candidate has no assignment.
const DefaultTestID = 1

// TestAssignment pins the reading and listening variants a candidate sits.
type TestAssignment struct {
	CandidateID     string    `json:"candidate_id"`
	ReadingTestID   int       `json:"reading_test_id"`
	ListeningTestID int       `json:"listening_test_id"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// UpsertAssignmentRequest is the payload for assigning variants.
type UpsertAssignmentRequest struct {
	ReadingTestID   int `json:"reading_test_id" binding:"required,min=1"`
	ListeningTestID int `json:"listening_test_id" binding:"required,min=1"`
}
