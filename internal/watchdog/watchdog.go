// Package watchdog blocks masters with overdue commissions and pushes
// orders stuck at logist escalation up to admins.
package watchdog

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/dispatch/internal/model"
	"github.com/and161185/dispatch/internal/outbox"
	"go.uber.org/zap"
)

// MinInterval keeps a misconfigured sweep from spinning.
const MinInterval = 30 * time.Second

const blockReason = "commission_overdue"

type Store interface {
	BlockOverdueCommissions(ctx context.Context, now time.Time) ([]model.OverdueBlock, error)
}

type Escalator interface {
	EscalateStale(ctx context.Context) (int, error)
}

type Notifier interface {
	BestEffort(ctx context.Context, n model.Notification) bool
}

type SweepStats struct {
	Blocked      int
	NotifyFailed int
	Escalated    int
}

type Watchdog struct {
	store     Store
	escalator Escalator
	notifier  Notifier
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func New(store Store, escalator Escalator, notifier Notifier, logger *zap.SugaredLogger) *Watchdog {
	return &Watchdog{store: store, escalator: escalator, notifier: notifier, logger: logger, now: time.Now}
}

// Interval clamps a configured interval to MinInterval.
func Interval(d time.Duration) time.Duration {
	if d < MinInterval {
		return MinInterval
	}
	return d
}

// Sweep blocks first and escalates second; a failure in one does not skip
// the other. Notifications about a block are sent at most once: the block
// is committed before they are attempted and is never selected again.
func (w *Watchdog) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats

	blocks, blockErr := w.store.BlockOverdueCommissions(ctx, w.now())
	if blockErr != nil {
		blockErr = fmt.Errorf("block overdue commissions: %w", blockErr)
	}
	for _, b := range blocks {
		stats.Blocked++
		w.logger.Warnw("master blocked for overdue commission",
			"master_id", b.MasterID,
			"commission_id", b.CommissionID,
			"order_id", b.OrderID,
			"amount", b.Amount.StringFixed(2),
			"deadline", b.Deadline,
		)
		stats.NotifyFailed += w.notifyBlock(ctx, b)
	}

	escalated, escErr := w.escalator.EscalateStale(ctx)
	stats.Escalated = escalated
	if escErr != nil {
		escErr = fmt.Errorf("escalate stale orders: %w", escErr)
	}

	if blockErr != nil {
		return stats, blockErr
	}
	return stats, escErr
}

func (w *Watchdog) notifyBlock(ctx context.Context, b model.OverdueBlock) int {
	payload := map[string]any{
		"commission_id": b.CommissionID,
		"order_id":      b.OrderID,
		"master_id":     b.MasterID,
		"amount":        b.Amount.StringFixed(2),
		"deadline":      b.Deadline.UTC().Format(time.RFC3339),
		"reason":        blockReason,
	}

	failed := 0
	if !w.notifier.BestEffort(ctx, outbox.ToChannel(model.ChannelAdmin, model.NotifyCommissionOverdue, payload)) {
		failed++
	}
	if !w.notifier.BestEffort(ctx, outbox.ToMaster(b.MasterID, model.NotifyMasterBlocked, payload)) {
		failed++
	}
	return failed
}
