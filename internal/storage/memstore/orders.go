package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/and161185/dispatch/internal/errs"
	"github.com/and161185/dispatch/internal/model"
)

func (s *Store) GetOrder(ctx context.Context, id int64) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return model.Order{}, errs.ErrOrderNotFound
	}
	return *o, nil
}

func (s *Store) listOrders(match func(o *model.Order) bool) []model.Order {
	var out []model.Order
	for _, o := range s.orders {
		if match(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListDistributableOrders(ctx context.Context) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listOrders(func(o *model.Order) bool {
		return o.AssignedMasterID == nil && (o.Status == model.OrderSearching || o.Status == model.OrderGuarantee)
	}), nil
}

func (s *Store) ListDeferredOrders(ctx context.Context) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listOrders(func(o *model.Order) bool { return o.Status == model.OrderDeferred }), nil
}

func (s *Store) ListStaleLogistEscalations(ctx context.Context, before time.Time) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listOrders(func(o *model.Order) bool {
		return o.AssignedMasterID == nil &&
			o.EscalatedLogistAt != nil && !o.EscalatedLogistAt.After(before) &&
			o.EscalatedAdminAt == nil && o.AdminNotifiedAt == nil &&
			o.Status != model.OrderCanceled && o.Status != model.OrderClosed
	}), nil
}

func (s *Store) ListOrdersMissingCommission(ctx context.Context, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for _, o := range s.listOrders(func(o *model.Order) bool {
		return o.Status.PaymentEligible() && o.AssignedMasterID != nil && !o.IsGuarantee()
	}) {
		if s.commissionFor(o.ID) == nil {
			ids = append(ids, o.ID)
		}
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	return ids, nil
}

func (s *Store) CityTimezone(ctx context.Context, cityID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timezones[cityID], nil
}

func (s *Store) WakeDeferredOrder(ctx context.Context, orderID int64, version int, entry model.HistoryEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.Status != model.OrderDeferred || o.Version != version {
		return false, nil
	}
	o.Status = model.OrderSearching
	o.EscalatedLogistAt, o.LogistNotifiedAt = nil, nil
	o.EscalatedAdminAt, o.AdminNotifiedAt = nil, nil
	o.Version++
	o.UpdatedAt = entry.CreatedAt
	s.appendHistory(entry)
	return true, nil
}

func (s *Store) EscalateToLogist(ctx context.Context, orderID int64, at time.Time, n model.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.AssignedMasterID != nil || o.EscalatedLogistAt != nil || o.LogistNotifiedAt != nil {
		return false, nil
	}
	if s.notifyErr != nil {
		return false, s.notifyErr
	}
	t := at
	o.EscalatedLogistAt, o.LogistNotifiedAt = &t, &t
	s.notifications = append(s.notifications, n)
	return true, nil
}

func (s *Store) EscalateToAdmin(ctx context.Context, orderID int64, at time.Time, n model.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.AssignedMasterID != nil || o.EscalatedLogistAt == nil || o.EscalatedAdminAt != nil || o.AdminNotifiedAt != nil {
		return false, nil
	}
	if s.notifyErr != nil {
		return false, s.notifyErr
	}
	t := at
	o.EscalatedAdminAt, o.AdminNotifiedAt = &t, &t
	s.notifications = append(s.notifications, n)
	return true, nil
}

func (s *Store) AssignOrder(ctx context.Context, a model.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var offer *model.Offer
	if a.OfferID != nil {
		offer = s.offerByID(*a.OfferID)
		if offer == nil || offer.MasterID != a.MasterID || offer.OrderID != a.OrderID {
			return errs.ErrOfferNotActive
		}
		if a.OfferAccepted {
			if offer.State != model.OfferAccepted {
				return errs.ErrOfferNotActive
			}
		} else if !offer.Live(a.At) {
			return errs.ErrOfferNotActive
		}
	}

	o, ok := s.orders[a.OrderID]
	if !ok || o.Status != a.ExpectedStatus || o.Version != a.ExpectedVersion || o.AssignedMasterID != nil {
		return errs.ErrOrderTaken
	}

	at := a.At
	if offer != nil && offer.State != model.OfferAccepted {
		offer.State = model.OfferAccepted
		offer.RespondedAt = &at
	}

	masterID := a.MasterID
	o.AssignedMasterID = &masterID
	o.Status = model.OrderAssigned
	o.Version++
	o.UpdatedAt = at

	for _, of := range s.offers {
		if of.OrderID != a.OrderID || (offer != nil && of.ID == offer.ID) {
			continue
		}
		if of.State.Active() {
			of.State = model.OfferCanceled
			of.RespondedAt = &at
		}
	}

	entry := a.History
	entry.OrderID = a.OrderID
	entry.FromStatus = a.ExpectedStatus
	entry.ToStatus = model.OrderAssigned
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = at
	}
	s.appendHistory(entry)
	return nil
}

func (s *Store) ListOrderHistory(ctx context.Context, orderID int64) ([]model.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.HistoryEntry
	for _, h := range s.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *Store) appendHistory(entry model.HistoryEntry) {
	entry.ID = s.nextID()
	s.history = append(s.history, entry)
}
