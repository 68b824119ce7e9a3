package service

import (
	"sort"

	"github.com/stemsi/ielts-mock/internal/model"
)

// MonitorService builds the admin live view of loaded sessions.
type MonitorService struct {
	sessions *SessionService
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(sessions *SessionService) *MonitorService {
	return &MonitorService{sessions: sessions}
}

// Snapshot lists loaded sessions, running ones first and then by candidate.
// Finished sessions are dropped from the registry and never appear.
func (s *MonitorService) Snapshot() *model.MonitorSnapshot {
	states := s.sessions.Active()

	snap := &model.MonitorSnapshot{
		BySection: make(map[model.Section]int, len(model.SectionOrder)),
		Sessions:  make([]model.LiveSession, 0, len(states)),
	}
	for _, st := range states {
		if st.Phase == model.PhaseTestComplete {
			continue
		}
		snap.TotalLoaded++
		if st.Phase == model.PhaseRunning {
			snap.TotalRunning++
		}
		snap.BySection[st.CurrentSection]++
		snap.Sessions = append(snap.Sessions, model.LiveSession{
			CandidateID:      st.CandidateID,
			CandidateNumber:  st.CandidateNumber,
			CandidateName:    st.CandidateName,
			CurrentSection:   st.CurrentSection,
			Phase:            st.Phase,
			RemainingSeconds: st.RemainingSeconds,
			AnsweredCount:    st.Answers.AnsweredCount(),
			RefreshCount:     st.RefreshCount,
		})
	}

	sort.Slice(snap.Sessions, func(i, j int) bool {
		a, b := snap.Sessions[i], snap.Sessions[j]
		if (a.Phase == model.PhaseRunning) != (b.Phase == model.PhaseRunning) {
			return a.Phase == model.PhaseRunning
		}
		return a.CandidateID < b.CandidateID
	})
	return snap
}
