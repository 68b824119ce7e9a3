package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/ielts-mock/internal/config"
	"github.com/stemsi/ielts-mock/internal/model"
)

// RedisQueue pushes notifications onto the queue drained by the
// notification worker.
type RedisQueue struct {
	rdb   *redis.Client
	queue string
}

// NewRedisQueue creates a RedisQueue on the configured notification queue.
func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb, queue: config.WorkerKey.NotificationQueue}
}

func (q *RedisQueue) Send(ctx context.Context, n model.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.queue, data).Err(); err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	return nil
}

// LogSender writes notifications to the log. Used where no queue exists.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, n model.Notification) error {
	s.log.Info().
		Str("kind", string(n.Kind)).
		Str("candidate_id", n.CandidateID).
		Msg(n.Text)
	return nil
}
