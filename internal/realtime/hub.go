// Package realtime fans session events out over Redis Pub/Sub so any
// server instance can stream a candidate's timer.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-mock/internal/config"
	"github.com/stemsi/ielts-mock/internal/session"
)

// Hub publishes events on a per-candidate channel and hands out
// subscriptions to it. It implements session.Publisher.
type Hub struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewHub creates a new Hub.
func NewHub(rdb *redis.Client, log zerolog.Logger) *Hub {
	return &Hub{
		rdb: rdb,
		log: log.With().Str("component", "realtime_hub").Logger(),
	}
}

// Publish implements session.Publisher.
func (h *Hub) Publish(ctx context.Context, candidateID string, ev session.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return h.rdb.Publish(ctx, config.CacheKey.SessionTickChannel(candidateID), payload).Err()
}

// Subscription delivers one candidate's events until closed.
type Subscription struct {
	ps     *redis.PubSub
	events chan session.Event
	done   chan struct{}
}

// Subscribe listens on the candidate's channel. The subscription is
// confirmed before it returns, so no event published afterwards is missed.
func (h *Hub) Subscribe(ctx context.Context, candidateID string) (*Subscription, error) {
	channel := config.CacheKey.SessionTickChannel(candidateID)
	ps := h.rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	sub := &Subscription{
		ps:     ps,
		events: make(chan session.Event, 16),
		done:   make(chan struct{}),
	}
	go sub.pump(h.log.With().Str("candidate_id", candidateID).Logger())
	return sub, nil
}

func (s *Subscription) pump(log zerolog.Logger) {
	defer close(s.events)
	for msg := range s.ps.Channel() {
		var ev session.Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Warn().Err(err).Msg("Dropping malformed event")
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		default:
			// Slow reader; the next tick carries the full state anyway.
			log.Debug().Str("event", string(ev.Type)).Msg("Subscriber behind, event dropped")
		}
	}
}

// Events is closed when the subscription ends.
func (s *Subscription) Events() <-chan session.Event {
	return s.events
}

// Close unsubscribes.
func (s *Subscription) Close() error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	return s.ps.Close()
}
