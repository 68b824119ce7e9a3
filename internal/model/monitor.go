package model

// LiveSession is the admin view of one loaded session.
type LiveSession struct {
	CandidateID      string  `json:"candidate_id"`
	CandidateNumber  string  `json:"candidate_number,omitempty"`
	CandidateName    string  `json:"candidate_name,omitempty"`
	CurrentSection   Section `json:"current_section"`
	Phase            Phase   `json:"phase"`
	RemainingSeconds int     `json:"remaining_seconds"`
	AnsweredCount    int     `json:"answered_count"`
	RefreshCount     int     `json:"refresh_count"`
}

// MonitorSnapshot summarizes every session loaded on this instance.
type MonitorSnapshot struct {
	TotalLoaded  int             `json:"total_loaded"`
	TotalRunning int             `json:"total_running"`
	BySection    map[Section]int `json:"by_section"`
	Sessions     []LiveSession   `json:"sessions"`
}

// AnsweredCount counts non-blank answers across all sections.
func (a SessionAnswers) AnsweredCount() int {
	n := 0
	for _, m := range []map[string]string{a.Listening, a.Reading} {
		for _, v := range m {
			if v != "" {
				n++
			}
		}
	}
	if a.Writing.Task1 != "" {
		n++
	}
	if a.Writing.Task2 != "" {
		n++
	}
	return n
}
