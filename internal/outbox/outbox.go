package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/dispatch/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Store interface {
	EnqueueNotification(ctx context.Context, n model.Notification) error
}

// Outbox enqueues notifications for the external delivery worker.
type Outbox struct {
	store  Store
	logger *zap.SugaredLogger
	now    func() time.Time
}

func New(store Store, logger *zap.SugaredLogger) *Outbox {
	return &Outbox{store: store, logger: logger, now: time.Now}
}

func ToMaster(masterID int64, event string, payload map[string]any) model.Notification {
	id := masterID
	return model.Notification{Key: uuid.New(), MasterID: &id, Event: event, Payload: payload}
}

func ToChannel(channel, event string, payload map[string]any) model.Notification {
	return model.Notification{Key: uuid.New(), Channel: channel, Event: event, Payload: payload}
}

func (o *Outbox) Enqueue(ctx context.Context, n model.Notification) error {
	if n.Key == uuid.Nil {
		n.Key = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = o.now().UTC()
	}
	if err := o.store.EnqueueNotification(ctx, n); err != nil {
		return fmt.Errorf("enqueue %s: %w", n.Event, err)
	}
	return nil
}

// BestEffort enqueues and only logs a failure. The state change that
// triggered the notification is never rolled back because of it.
func (o *Outbox) BestEffort(ctx context.Context, n model.Notification) bool {
	if err := o.Enqueue(ctx, n); err != nil {
		o.logger.Errorw("notification dropped", "event", n.Event, "channel", n.Channel, "master_id", n.MasterID, "error", err)
		return false
	}
	return true
}
