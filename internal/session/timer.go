package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/stemsi/ielts-mock/internal/model"
)

// Clock abstracts wall time so restore arithmetic can be tested.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real wall clock.
func SystemClock() Clock { return systemClock{} }

// TimerTable holds the time limit of each section.
type TimerTable struct {
	Listening time.Duration
	Reading   time.Duration
	Writing   time.Duration
}

var (
	ProductionTimers  = TimerTable{Listening: 30 * time.Minute, Reading: 60 * time.Minute, Writing: 60 * time.Minute}
	DevelopmentTimers = TimerTable{Listening: 3 * time.Minute, Reading: 3 * time.Minute, Writing: 3 * time.Minute}
)

// ParseTimerProfile maps a configured profile name to its table.
func ParseTimerProfile(profile string) (TimerTable, error) {
	switch strings.ToLower(strings.TrimSpace(profile)) {
	case "production":
		return ProductionTimers, nil
	case "development":
		return DevelopmentTimers, nil
	default:
		return TimerTable{}, fmt.Errorf("unknown timer profile %q (want production or development)", profile)
	}
}

// Limit returns the time limit for a section.
func (t TimerTable) Limit(sec model.Section) time.Duration {
	switch sec {
	case model.SectionListening:
		return t.Listening
	case model.SectionReading:
		return t.Reading
	case model.SectionWriting:
		return t.Writing
	}
	return 0
}

// LimitSeconds returns Limit in whole seconds.
func (t TimerTable) LimitSeconds(sec model.Section) int {
	return int(t.Limit(sec) / time.Second)
}

// ReloadPenaltySeconds is charged per reload, multiplied by the reload count.
const ReloadPenaltySeconds = 3

// ComputeReloadPenalty returns the seconds deducted on the refreshCount-th
// reload. The penalty grows with every reload and is not capped.
func ComputeReloadPenalty(refreshCount int) int {
	if refreshCount < 0 {
		return 0
	}
	return refreshCount * ReloadPenaltySeconds
}

// remainingUntil rounds the time left up to whole seconds, never below 0.
func remainingUntil(deadline, now time.Time) int {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// elapsedSeconds is floor((now - persistedAt) / 1s), never below 0.
func elapsedSeconds(persistedAtMs int64, now time.Time) int {
	ms := now.UnixMilli() - persistedAtMs
	if ms <= 0 {
		return 0
	}
	return int(ms / 1000)
}
