package websocket

import (
	"github.com/stemsi/ielts-mock/internal/model"
	"github.com/stemsi/ielts-mock/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave   Action = "autosave"
	ActionSubSection Action = "subsection"
	ActionAdvance    Action = "advance"
	ActionFinish     Action = "finish"
	ActionPing       Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AutosaveRequest merges answers into the running section.
type AutosaveRequest struct {
	Action  Action            `json:"action"`
	Section model.Section     `json:"section"`
	Answers map[string]string `json:"answers"`
}

// SubSectionRequest moves to another part, passage or task.
type SubSectionRequest struct {
	Action Action `json:"action"`
	Index  int    `json:"index"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventSession   Event = "session"
	EventSaved     Event = "saved"
	EventFinalized Event = "finalized"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// StateResponse carries a full snapshot, sent on connect and after
// every accepted action.
type StateResponse struct {
	Event   Event              `json:"event"`
	Session model.SessionState `json:"session"`
}

// SessionEventResponse forwards a timer or phase event.
type SessionEventResponse struct {
	Event Event         `json:"event"`
	Data  session.Event `json:"data"`
}

type SavedResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

type FinalizedResponse struct {
	Event  Event                  `json:"event"`
	Result *session.PersistResult `json:"result"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
