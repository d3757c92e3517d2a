package distribution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/dispatch/internal/candidates"
	"github.com/and161185/dispatch/internal/errs"
	"github.com/and161185/dispatch/internal/events"
	"github.com/and161185/dispatch/internal/model"
	"github.com/and161185/dispatch/internal/outbox"
	"github.com/and161185/dispatch/internal/settings"
	"go.uber.org/zap"
)

type Store interface {
	ListDistributableOrders(ctx context.Context) ([]model.Order, error)
	GetOrder(ctx context.Context, id int64) (model.Order, error)

	FindLiveOffer(ctx context.Context, orderID int64, now time.Time) (*model.Offer, error)
	FindAcceptedOffer(ctx context.Context, orderID int64) (*model.Offer, error)
	MaxOfferRound(ctx context.Context, orderID int64) (int, error)
	OfferedMasterIDs(ctx context.Context, orderID int64) ([]int64, error)
	CreateOffer(ctx context.Context, offer model.Offer, n model.Notification) (model.Offer, error)
	GetOffer(ctx context.Context, id int64) (model.Offer, error)
	RespondOffer(ctx context.Context, offerID, masterID int64, to model.OfferState, at time.Time) error

	AssignOrder(ctx context.Context, a model.Assignment) error

	EscalateToLogist(ctx context.Context, orderID int64, at time.Time, n model.Notification) (bool, error)
	EscalateToAdmin(ctx context.Context, orderID int64, at time.Time, n model.Notification) (bool, error)
	ListStaleLogistEscalations(ctx context.Context, before time.Time) ([]model.Order, error)
}

type CandidateFilter interface {
	Evaluate(ctx context.Context, order model.Order, mode candidates.Mode, limit int) (candidates.Evaluation, error)
}

type Settings interface {
	Distribution(ctx context.Context) (settings.Distribution, error)
}

// Engine advances open orders through the offer rounds. Tick is safe to run
// every few seconds forever and from several processes at once: every write
// it makes is a guarded conditional update.
type Engine struct {
	store    Store
	filter   CandidateFilter
	settings Settings
	events   *events.Log
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewEngine(store Store, filter CandidateFilter, st Settings, ev *events.Log, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		store:    store,
		filter:   filter,
		settings: st,
		events:   ev,
		logger:   logger,
		now:      time.Now,
	}
}

type TickStats struct {
	Orders    int
	Waiting   int
	Finalized int
	Offers    int
	Escalated int
	Errors    int
}

type outcome int

const (
	outcomeWaiting outcome = iota
	outcomeFinalized
	outcomeOffered
	outcomeEscalated
	outcomeIdle
)

func (e *Engine) Tick(ctx context.Context) (TickStats, error) {
	var stats TickStats
	started := e.now()
	e.events.Emit(events.TickStart)

	ds, err := e.settings.Distribution(ctx)
	if err != nil {
		e.events.Fail(err, zap.String("stage", "settings"))
		return stats, fmt.Errorf("load distribution settings: %w", err)
	}

	orders, err := e.store.ListDistributableOrders(ctx)
	if err != nil {
		e.events.Fail(err, zap.String("stage", "list_orders"))
		return stats, fmt.Errorf("list distributable orders: %w", err)
	}

	for _, order := range orders {
		if ctx.Err() != nil {
			break
		}
		stats.Orders++

		res, err := e.processOrder(ctx, order, ds)
		if err != nil {
			stats.Errors++
			e.events.Fail(err, zap.Int64("order_id", order.ID), zap.Int64("city_id", order.CityID))
			continue
		}
		switch res {
		case outcomeWaiting:
			stats.Waiting++
		case outcomeFinalized:
			stats.Finalized++
		case outcomeOffered:
			stats.Offers++
		case outcomeEscalated:
			stats.Escalated++
		}
	}

	e.events.Emit(events.TickEnd,
		zap.Int("orders", stats.Orders),
		zap.Int("offers", stats.Offers),
		zap.Int("finalized", stats.Finalized),
		zap.Int("escalated", stats.Escalated),
		zap.Int("errors", stats.Errors),
		zap.Duration("took", e.now().Sub(started)),
	)
	return stats, nil
}

func (e *Engine) processOrder(ctx context.Context, order model.Order, ds settings.Distribution) (outcome, error) {
	now := e.now()
	e.events.Emit(events.OrderFetched,
		zap.Int64("order_id", order.ID),
		zap.Int64("city_id", order.CityID),
		zap.String("status", string(order.Status)),
	)

	live, err := e.store.FindLiveOffer(ctx, order.ID, now)
	if err != nil {
		return 0, fmt.Errorf("find live offer: %w", err)
	}
	if live != nil {
		return outcomeWaiting, nil
	}

	accepted, err := e.store.FindAcceptedOffer(ctx, order.ID)
	if err != nil {
		return 0, fmt.Errorf("find accepted offer: %w", err)
	}
	if accepted != nil {
		return e.finalize(ctx, order, *accepted, now)
	}

	maxRound, err := e.store.MaxOfferRound(ctx, order.ID)
	if err != nil {
		return 0, fmt.Errorf("max offer round: %w", err)
	}

	if maxRound < ds.Rounds {
		offered, err := e.offerNextRound(ctx, order, maxRound+1, ds, now)
		if err != nil {
			return 0, err
		}
		if offered {
			return outcomeOffered, nil
		}
	}

	escalated, err := e.escalate(ctx, order, ds, now)
	if err != nil {
		return 0, err
	}
	if escalated {
		return outcomeEscalated, nil
	}
	return outcomeIdle, nil
}

func (e *Engine) finalize(ctx context.Context, order model.Order, offer model.Offer, now time.Time) (outcome, error) {
	offerID := offer.ID
	err := e.store.AssignOrder(ctx, model.Assignment{
		OrderID:         order.ID,
		MasterID:        offer.MasterID,
		ExpectedStatus:  order.Status,
		ExpectedVersion: order.Version,
		OfferID:         &offerID,
		OfferAccepted:   true,
		At:              now,
		History: model.HistoryEntry{
			Actor:   model.ActorAutoDistribution,
			Reason:  "accepted offer finalized",
			Context: model.OfferAcceptContext{MasterID: offer.MasterID, OfferID: offer.ID, Round: offer.Round, Finalized: true},
		},
	})
	if errors.Is(err, errs.ErrOrderTaken) || errors.Is(err, errs.ErrOfferNotActive) {
		e.logger.Infow("finalize lost race", "order_id", order.ID, "offer_id", offer.ID, "error", err)
		return outcomeIdle, nil
	}
	if err != nil {
		return 0, fmt.Errorf("finalize accepted offer %d: %w", offer.ID, err)
	}
	e.events.Tracef("order %d finalized for master %d from accepted offer %d", order.ID, offer.MasterID, offer.ID)
	return outcomeFinalized, nil
}

func (e *Engine) offerNextRound(ctx context.Context, order model.Order, round int, ds settings.Distribution, now time.Time) (bool, error) {
	e.events.Emit(events.RoundStart, zap.Int64("order_id", order.ID), zap.Int64("city_id", order.CityID), zap.Int("round", round))

	ev, err := e.filter.Evaluate(ctx, order, candidates.ModeAuto, 0)
	if err != nil {
		return false, fmt.Errorf("evaluate candidates: %w", err)
	}

	offered, err := e.store.OfferedMasterIDs(ctx, order.ID)
	if err != nil {
		return false, fmt.Errorf("offered masters: %w", err)
	}

	candidate, ok := pickCandidate(ev.Eligible, offered, order.PreferredMasterID, round)
	if !ok {
		e.events.Emit(events.NoCandidates,
			zap.Int64("order_id", order.ID),
			zap.Int64("city_id", order.CityID),
			zap.Int("round", round),
			zap.Int("rejected", len(ev.Rejected)),
		)
		return false, nil
	}
	e.events.Emit(events.CandidatesFound,
		zap.Int64("order_id", order.ID),
		zap.Int("round", round),
		zap.Int("count", len(ev.Eligible)),
	)

	expires := now.Add(ds.SLA)
	offer, err := e.store.CreateOffer(ctx, model.Offer{
		OrderID:   order.ID,
		MasterID:  candidate.ID,
		Round:     round,
		State:     model.OfferSent,
		SentAt:    now,
		ExpiresAt: expires,
	}, outbox.ToMaster(candidate.ID, model.NotifyNewOffer, map[string]any{
		"order_id":   order.ID,
		"round":      round,
		"expires_at": expires.UTC().Format(time.RFC3339),
	}))
	if errors.Is(err, errs.ErrOfferConflict) {
		// another tick got this round first
		e.logger.Infow("offer round already taken", "order_id", order.ID, "round", round)
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("create offer: %w", err)
	}

	e.events.Emit(events.OfferSent,
		zap.Int64("order_id", order.ID),
		zap.Int64("master_id", candidate.ID),
		zap.Int64("offer_id", offer.ID),
		zap.Int64("city_id", order.CityID),
		zap.Int("round", round),
		zap.Time("expires_at", expires),
	)
	return true, nil
}

// pickCandidate returns the best ranked master not offered in an earlier round.
// In round one a preferred master, when eligible, jumps to the front.
func pickCandidate(eligible []model.CandidateSnapshot, offered []int64, preferred *int64, round int) (model.CandidateSnapshot, bool) {
	seen := make(map[int64]bool, len(offered))
	for _, id := range offered {
		seen[id] = true
	}

	if round == 1 && preferred != nil && !seen[*preferred] {
		for _, c := range eligible {
			if c.ID == *preferred {
				return c, true
			}
		}
	}

	for _, c := range eligible {
		if !seen[c.ID] {
			return c, true
		}
	}
	return model.CandidateSnapshot{}, false
}

func (e *Engine) escalate(ctx context.Context, order model.Order, ds settings.Distribution, now time.Time) (bool, error) {
	if order.EscalatedLogistAt == nil && order.LogistNotifiedAt == nil {
		return e.escalateLogist(ctx, order, now)
	}
	if order.EscalatedLogistAt != nil && order.EscalatedAdminAt == nil && order.AdminNotifiedAt == nil &&
		now.Sub(*order.EscalatedLogistAt) >= ds.EscalateAdminAfter {
		return e.escalateAdmin(ctx, order, now)
	}
	return false, nil
}

func (e *Engine) escalateLogist(ctx context.Context, order model.Order, now time.Time) (bool, error) {
	applied, err := e.store.EscalateToLogist(ctx, order.ID, now, outbox.ToChannel(model.ChannelLogist, model.NotifyEscalationLogist, escalationPayload(order)))
	if err != nil {
		return false, fmt.Errorf("escalate to logist: %w", err)
	}
	if applied {
		e.events.Emit(events.EscalationLogist, zap.Int64("order_id", order.ID), zap.Int64("city_id", order.CityID), zap.Int("round", order.DistRound))
	}
	return applied, nil
}

func (e *Engine) escalateAdmin(ctx context.Context, order model.Order, now time.Time) (bool, error) {
	applied, err := e.store.EscalateToAdmin(ctx, order.ID, now, outbox.ToChannel(model.ChannelAdmin, model.NotifyEscalationAdmin, escalationPayload(order)))
	if err != nil {
		return false, fmt.Errorf("escalate to admin: %w", err)
	}
	if applied {
		e.events.Emit(events.EscalationAdmin, zap.Int64("order_id", order.ID), zap.Int64("city_id", order.CityID), zap.Int("round", order.DistRound))
	}
	return applied, nil
}

func escalationPayload(order model.Order) map[string]any {
	payload := map[string]any{
		"order_id": order.ID,
		"city_id":  order.CityID,
		"category": order.Category,
		"round":    order.DistRound,
	}
	if d := order.SearchDistrict(); d != nil {
		payload["district_id"] = *d
	}
	return payload
}

// EscalateStale promotes to admin every unassigned order that has waited on
// logistics longer than the threshold, whatever its status is now.
func (e *Engine) EscalateStale(ctx context.Context) (int, error) {
	ds, err := e.settings.Distribution(ctx)
	if err != nil {
		return 0, fmt.Errorf("load distribution settings: %w", err)
	}
	now := e.now()

	orders, err := e.store.ListStaleLogistEscalations(ctx, now.Add(-ds.EscalateAdminAfter))
	if err != nil {
		return 0, fmt.Errorf("list stale escalations: %w", err)
	}

	n := 0
	for _, order := range orders {
		applied, err := e.escalateAdmin(ctx, order, now)
		if err != nil {
			e.events.Fail(err, zap.Int64("order_id", order.ID))
			continue
		}
		if applied {
			n++
		}
	}
	return n, nil
}
