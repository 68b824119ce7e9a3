package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-mock/internal/config"
	"github.com/stemsi/ielts-mock/internal/model"
)

const (
	BatchSize      = 50
	BatchTimeout   = 2 * time.Second
	PollTimeout    = 1 * time.Second // Must be >= 1s to satisfy Redis
	RequeueBackoff = 2 * time.Second
)

// Outbox stores notifications for later delivery.
type Outbox interface {
	InsertBatch(ctx context.Context, batch []model.Notification) error
	Insert(ctx context.Context, n model.Notification) error
}

// NotificationWorker drains the notification queue into the outbox.
type NotificationWorker struct {
	outbox Outbox
	rdb    *redis.Client
	log    zerolog.Logger

	batchTimeout   time.Duration
	requeueBackoff time.Duration
}

func NewNotificationWorker(outbox Outbox, rdb *redis.Client, log zerolog.Logger) *NotificationWorker {
	return &NotificationWorker{
		outbox:         outbox,
		rdb:            rdb,
		log:            log.With().Str("component", "notification_worker").Logger(),
		batchTimeout:   BatchTimeout,
		requeueBackoff: RequeueBackoff,
	}
}

func (w *NotificationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("NotificationWorker started")

	buffer := make([]model.Notification, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 &&
			(len(buffer) >= BatchSize || time.Since(lastFlush) >= w.batchTimeout) {
			w.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.NotificationQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var n model.Notification
		if err := json.Unmarshal([]byte(result[1]), &n); err != nil {
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}
		buffer = append(buffer, n)
	}
}

// flushSafe attempts a bulk insert, then row-by-row, then requeues.
func (w *NotificationWorker) flushSafe(ctx context.Context, batch []model.Notification) {
	if len(batch) == 0 {
		return
	}

	err := w.outbox.InsertBatch(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Notifications stored")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")

	var requeue []model.Notification
	for _, n := range batch {
		if err := w.outbox.Insert(ctx, n); err != nil {
			w.log.Error().Err(err).Str("notification_id", n.ID.String()).Msg("Insert failed, requeueing")
			requeue = append(requeue, n)
		}
	}
	if len(requeue) > 0 {
		w.requeue(ctx, requeue)
	}
}

func (w *NotificationWorker) requeue(ctx context.Context, items []model.Notification) {
	pipe := w.rdb.Pipeline()
	for _, n := range items {
		data, _ := json.Marshal(n)
		pipe.RPush(ctx, config.WorkerKey.NotificationQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue notifications. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(items)).Msg("Requeued failed notifications")
	time.Sleep(w.requeueBackoff)
}

func (w *NotificationWorker) shutdown(buffer []model.Notification) {
	w.log.Info().Int("pending", len(buffer)).Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.flushSafe(shutdownCtx, buffer)
}
