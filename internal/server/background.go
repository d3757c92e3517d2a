package server

import (
	"context"

	"github.com/and161185/dispatch/internal/config"
	"github.com/and161185/dispatch/internal/distribution"
	"github.com/and161185/dispatch/internal/scheduler"
	"github.com/and161185/dispatch/internal/wakeup"
	"github.com/and161185/dispatch/internal/watchdog"
	"go.uber.org/zap"
)

type Ticker interface {
	Tick(ctx context.Context) (distribution.TickStats, error)
}

type OverdueSweeper interface {
	Sweep(ctx context.Context) (watchdog.SweepStats, error)
}

type WakeupSweeper interface {
	Sweep(ctx context.Context) (wakeup.Stats, error)
}

type CommissionSweeper interface {
	SweepMissing(ctx context.Context) (int, error)
}

type Workers struct {
	Distribution Ticker
	Watchdog     OverdueSweeper
	Wakeup       WakeupSweeper
	Commission   CommissionSweeper
}

// NewJobs registers the periodic sweeps. Each one is its own loop; they only
// meet in the database.
func NewJobs(cfg *config.Config, w Workers, logger *zap.SugaredLogger) *scheduler.Scheduler {
	jobs := scheduler.New(logger)

	jobs.Add("distribution_tick", cfg.TickInterval, func(ctx context.Context) error {
		_, err := w.Distribution.Tick(ctx)
		return err
	})

	jobs.Add("overdue_watchdog", watchdog.Interval(cfg.WatchdogInterval), func(ctx context.Context) error {
		stats, err := w.Watchdog.Sweep(ctx)
		if stats.Blocked > 0 || stats.Escalated > 0 {
			logger.Infow("watchdog sweep", "blocked", stats.Blocked, "notify_failed", stats.NotifyFailed, "escalated", stats.Escalated)
		}
		return err
	})

	jobs.Add("deferred_wakeup", cfg.WakeupInterval, func(ctx context.Context) error {
		stats, err := w.Wakeup.Sweep(ctx)
		if stats.Woken > 0 || stats.Errors > 0 {
			logger.Infow("wakeup sweep", "deferred", stats.Deferred, "woken", stats.Woken, "noticed", stats.Noticed, "errors", stats.Errors)
		}
		return err
	})

	jobs.Add("commission_backstop", cfg.CommissionSweepInterval, func(ctx context.Context) error {
		n, err := w.Commission.SweepMissing(ctx)
		if n > 0 {
			logger.Infow("missing commissions created", "count", n)
		}
		return err
	})

	return jobs
}
