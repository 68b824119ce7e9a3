package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind enumerates outbound message types.
type NotificationKind string

const (
	NotificationIncomplete NotificationKind = "INCOMPLETE"
	NotificationResult     NotificationKind = "RESULT"
	NotificationRescore    NotificationKind = "RESCORE"
)

// Notification is a message for the operators' channel.
type Notification struct {
	ID          uuid.UUID        `json:"id"`
	Kind        NotificationKind `json:"kind"`
	CandidateID string           `json:"candidate_id"`
	Text        string           `json:"text"`
	CreatedAt   time.Time        `json:"created_at"`
}
