package worker

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/ielts-mock/internal/model"
)

var outboxColumns = []string{"id", "kind", "candidate_id", "body", "created_at"}

// PgOutbox writes notifications into the notification_outbox table.
type PgOutbox struct {
	pool *pgxpool.Pool
}

func NewPgOutbox(pool *pgxpool.Pool) *PgOutbox {
	return &PgOutbox{pool: pool}
}

// InsertBatch uses COPY; one bad row fails the whole batch.
func (o *PgOutbox) InsertBatch(ctx context.Context, batch []model.Notification) error {
	rows := make([][]any, 0, len(batch))
	for _, n := range batch {
		rows = append(rows, []any{n.ID, string(n.Kind), n.CandidateID, n.Text, n.CreatedAt})
	}

	_, err := o.pool.CopyFrom(ctx,
		pgx.Identifier{"notification_outbox"},
		outboxColumns,
		pgx.CopyFromRows(rows),
	)
	return err
}

// Insert is idempotent on id so a requeued notification is stored once.
func (o *PgOutbox) Insert(ctx context.Context, n model.Notification) error {
	_, err := o.pool.Exec(ctx,
		`INSERT INTO notification_outbox (id, kind, candidate_id, body, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		n.ID, string(n.Kind), n.CandidateID, n.Text, n.CreatedAt,
	)
	return err
}
