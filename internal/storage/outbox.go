package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/dispatch/internal/model"
)

// insertNotification writes one outbox row. A repeated key is ignored.
func insertNotification(ctx context.Context, db execer, n model.Notification) error {
	const query = `
		INSERT INTO notifications_outbox (key, master_id, channel, event, payload, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
		ON CONFLICT (key) DO NOTHING`

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	payload := n.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	_, err := db.Exec(ctx, query, n.Key, n.MasterID, n.Channel, n.Event, payload, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification %s: %w", n.Event, err)
	}
	return nil
}

func (s *PostgresStorage) EnqueueNotification(ctx context.Context, n model.Notification) error {
	return insertNotification(ctx, s.db, n)
}
