// Package notify delivers operator notifications without ever blocking or
// failing the caller.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-mock/internal/model"
)

// Sender hands one notification to a transport.
type Sender interface {
	Send(ctx context.Context, n model.Notification) error
}

// Dispatcher sends notifications on background goroutines. Send errors and
// timeouts are logged and dropped.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. A non-positive timeout means 5s.
func NewDispatcher(sender Sender, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		sender:  sender,
		timeout: timeout,
		log:     log.With().Str("component", "notify").Logger(),
	}
}

// Notify returns immediately. The caller's context only contributes its
// values; cancellation of the request does not cancel delivery.
func (d *Dispatcher) Notify(ctx context.Context, n model.Notification) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.sender.Send(sendCtx, n); err != nil {
			d.log.Warn().Err(err).
				Str("kind", string(n.Kind)).
				Str("candidate_id", n.CandidateID).
				Msg("Notification dropped")
			return
		}
		d.log.Debug().Str("kind", string(n.Kind)).Str("notification_id", n.ID.String()).Msg("Notification sent")
	}()
}

// Wait blocks until every in-flight notification has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
