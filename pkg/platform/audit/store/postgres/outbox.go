package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"vendorkyc/pkg/platform/audit/worker"
	txcontext "vendorkyc/pkg/platform/tx"
)

// Outbox reads unpublished outbox rows. Concurrent relays skip each other's
// locked rows.
type Outbox struct {
	db *sql.DB
}

func NewOutbox(db *sql.DB) *Outbox {
	return &Outbox{db: db}
}

func (o *Outbox) RelayBatch(ctx context.Context, limit int, publish func(context.Context, []worker.Message) error) (int, error) {
	var moved int
	err := txcontext.Run(ctx, o.db, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, aggregate_id, event_type, payload, created_at
			FROM outbox
			WHERE published_at IS NULL
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`, limit)
		if err != nil {
			return fmt.Errorf("select outbox batch: %w", err)
		}
		var batch []worker.Message
		for rows.Next() {
			var m worker.Message
			if err := rows.Scan(&m.ID, &m.Key, &m.EventType, &m.Payload, &m.CreatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("scan outbox row: %w", err)
			}
			batch = append(batch, m)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate outbox rows: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		if err := publish(ctx, batch); err != nil {
			return fmt.Errorf("publish outbox batch: %w", err)
		}

		ids := make([]uuid.UUID, len(batch))
		for i, m := range batch {
			ids[i] = m.ID
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`,
			time.Now(), pq.Array(uuidStrings(ids)),
		); err != nil {
			return fmt.Errorf("mark outbox published: %w", err)
		}
		moved = len(batch)
		return nil
	})
	return moved, err
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, u := range ids {
		out[i] = u.String()
	}
	return out
}
