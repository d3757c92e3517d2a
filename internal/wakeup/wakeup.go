// Package wakeup moves deferred orders back into search once their
// city-local window opens.
package wakeup

import (
	"context"
	"fmt"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/and161185/dispatch/internal/events"
	"github.com/and161185/dispatch/internal/model"
	"github.com/and161185/dispatch/internal/outbox"
	"github.com/and161185/dispatch/internal/settings"
	"go.uber.org/zap"
)

const wakeReason = "auto"

type Store interface {
	ListDeferredOrders(ctx context.Context) ([]model.Order, error)
	CityTimezone(ctx context.Context, cityID int64) (string, error)
	WakeDeferredOrder(ctx context.Context, orderID int64, version int, entry model.HistoryEntry) (bool, error)
}

type Settings interface {
	WorkingHours(ctx context.Context) (settings.WorkingHours, error)
}

type Notifier interface {
	BestEffort(ctx context.Context, n model.Notification) bool
}

// SeenSet remembers which deferred orders were already announced.
// Losing it on restart costs at most one repeated notice per order.
type SeenSet struct {
	mu   sync.Mutex
	seen map[int64]struct{}
}

func NewSeenSet() *SeenSet {
	return &SeenSet{seen: make(map[int64]struct{})}
}

// Add reports whether id was not in the set yet.
func (s *SeenSet) Add(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

func (s *SeenSet) Forget(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, id)
}

// Retain drops every id that is not in keep.
func (s *SeenSet) Retain(keep map[int64]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.seen {
		if !keep[id] {
			delete(s.seen, id)
		}
	}
}

func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

type Stats struct {
	Deferred int
	Woken    int
	Noticed  int
	Errors   int
}

type Sweeper struct {
	store    Store
	settings Settings
	notifier Notifier
	events   *events.Log
	logger   *zap.SugaredLogger
	seen     *SeenSet
	now      func() time.Time
}

func NewSweeper(store Store, st Settings, notifier Notifier, ev *events.Log, logger *zap.SugaredLogger) *Sweeper {
	return &Sweeper{
		store:    store,
		settings: st,
		notifier: notifier,
		events:   ev,
		logger:   logger,
		seen:     NewSeenSet(),
		now:      time.Now,
	}
}

func (s *Sweeper) Sweep(ctx context.Context) (Stats, error) {
	var stats Stats

	wh, err := s.settings.WorkingHours(ctx)
	if err != nil {
		return stats, fmt.Errorf("load working hours: %w", err)
	}
	orders, err := s.store.ListDeferredOrders(ctx)
	if err != nil {
		return stats, fmt.Errorf("list deferred orders: %w", err)
	}

	present := make(map[int64]bool, len(orders))
	for _, order := range orders {
		if ctx.Err() != nil {
			break
		}
		present[order.ID] = true
		stats.Deferred++

		woken, noticed, err := s.process(ctx, order, wh)
		if err != nil {
			stats.Errors++
			s.events.Fail(err, zap.Int64("order_id", order.ID), zap.Int64("city_id", order.CityID))
			continue
		}
		if woken {
			stats.Woken++
		}
		if noticed {
			stats.Noticed++
		}
	}
	s.seen.Retain(present)
	return stats, nil
}

func (s *Sweeper) process(ctx context.Context, order model.Order, wh settings.WorkingHours) (woken, noticed bool, err error) {
	now := s.now()
	loc, zone := s.location(ctx, order.CityID, wh.DefaultTimezone)
	target, due := WakeTarget(order.TimeslotStart, now, loc, wh)

	if !due {
		if !s.seen.Add(order.ID) {
			return false, false, nil
		}
		s.notifier.BestEffort(ctx, outbox.ToChannel(model.ChannelLogist, model.NotifyOrderDeferred, map[string]any{
			"order_id": order.ID,
			"city_id":  order.CityID,
			"timezone": zone,
			"wake_at":  target.Format("2006-01-02 15:04"),
		}))
		return false, true, nil
	}

	applied, err := s.store.WakeDeferredOrder(ctx, order.ID, order.Version, model.HistoryEntry{
		OrderID:    order.ID,
		FromStatus: model.OrderDeferred,
		ToStatus:   model.OrderSearching,
		Actor:      model.ActorSystem,
		Reason:     wakeReason,
		Context:    model.WakeContext{Timezone: zone, Target: target.UTC()},
		CreatedAt:  now,
	})
	if err != nil {
		return false, false, fmt.Errorf("wake order: %w", err)
	}
	if !applied {
		return false, false, nil
	}

	s.seen.Forget(order.ID)
	s.events.Emit(events.DeferredWake,
		zap.Int64("order_id", order.ID),
		zap.Int64("city_id", order.CityID),
		zap.String("timezone", zone),
		zap.Time("target", target),
	)
	return true, false, nil
}

// location resolves the city zone, then the default one, then UTC.
func (s *Sweeper) location(ctx context.Context, cityID int64, fallback string) (*time.Location, string) {
	name, err := s.store.CityTimezone(ctx, cityID)
	if err != nil {
		s.logger.Warnw("city timezone lookup failed", "city_id", cityID, "error", err)
	}
	for _, candidate := range []string{name, fallback} {
		if candidate == "" {
			continue
		}
		loc, err := time.LoadLocation(candidate)
		if err == nil {
			return loc, candidate
		}
		s.logger.Warnw("unknown timezone", "city_id", cityID, "timezone", candidate, "error", err)
	}
	return time.UTC, "UTC"
}

// WakeTarget reports when an order may leave DEFERRED and whether that
// moment has come. A slot start wins; otherwise the order waits for the
// local working window [start, end).
func WakeTarget(slotStart *time.Time, now time.Time, loc *time.Location, wh settings.WorkingHours) (time.Time, bool) {
	if slotStart != nil {
		return slotStart.In(loc), !now.Before(*slotStart)
	}

	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), wh.Start.Hour, wh.Start.Minute, 0, 0, loc)
	end := wh.End.Minutes()
	if end <= wh.Start.Minutes() {
		end = 24 * 60
	}

	minutes := local.Hour()*60 + local.Minute()
	switch {
	case minutes < wh.Start.Minutes():
		return start, false
	case minutes < end:
		return start, true
	default:
		return start.AddDate(0, 0, 1), false
	}
}
