package session

import (
	"context"
	"errors"
	"time"
)

type countdown struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartCountdown ticks the session about once per TickInterval until ctx
// ends, the session is finalized, or another countdown replaces it. At
// most one countdown runs per Manager; starting one stops the previous one
// first.
func (m *Manager) StartCountdown(ctx context.Context) {
	m.cdMu.Lock()
	defer m.cdMu.Unlock()

	m.stopCountdownLocked()

	cctx, cancel := context.WithCancel(ctx)
	cd := &countdown{cancel: cancel, done: make(chan struct{})}
	m.countdown = cd
	go m.runCountdown(cctx, cd)
}

// StopCountdown stops the running countdown, if any, and waits for it to
// exit.
func (m *Manager) StopCountdown() {
	m.cdMu.Lock()
	defer m.cdMu.Unlock()
	m.stopCountdownLocked()
}

func (m *Manager) stopCountdownLocked() {
	if m.countdown == nil {
		return
	}
	m.countdown.cancel()
	<-m.countdown.done
	m.countdown = nil
}

func (m *Manager) runCountdown(ctx context.Context, cd *countdown) {
	defer close(cd.done)

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		_, err := m.Tick(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil, errors.Is(err, ErrSessionClosed), errors.Is(err, ErrNoSession):
			return
		default:
			m.log.Warn().Err(err).Msg("Countdown tick failed")
		}
	}
}
