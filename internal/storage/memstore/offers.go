package memstore

import (
	"context"
	"time"

	"github.com/and161185/dispatch/internal/errs"
	"github.com/and161185/dispatch/internal/model"
)

func (s *Store) offerByID(id int64) *model.Offer {
	for _, of := range s.offers {
		if of.ID == id {
			return of
		}
	}
	return nil
}

func (s *Store) GetOffer(ctx context.Context, id int64) (model.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	of := s.offerByID(id)
	if of == nil {
		return model.Offer{}, errs.ErrOfferNotFound
	}
	return *of, nil
}

func (s *Store) FindLiveOffer(ctx context.Context, orderID int64, now time.Time) (*model.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, of := range s.offers {
		if of.OrderID == orderID && of.Live(now) {
			cp := *of
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) FindAcceptedOffer(ctx context.Context, orderID int64) (*model.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, of := range s.offers {
		if of.OrderID == orderID && of.State == model.OfferAccepted {
			cp := *of
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) MaxOfferRound(ctx context.Context, orderID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for _, of := range s.offers {
		if of.OrderID == orderID && of.Round > max {
			max = of.Round
		}
	}
	return max, nil
}

func (s *Store) OfferedMasterIDs(ctx context.Context, orderID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for _, of := range s.offers {
		if of.OrderID == orderID {
			ids = append(ids, of.MasterID)
		}
	}
	return ids, nil
}

func (s *Store) CreateOffer(ctx context.Context, offer model.Offer, n model.Notification) (model.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maxRound := 0
	for _, of := range s.offers {
		if of.OrderID != offer.OrderID {
			continue
		}
		if of.Round > maxRound {
			maxRound = of.Round
		}
		if of.Live(offer.SentAt) {
			return model.Offer{}, errs.ErrOfferConflict
		}
		if of.MasterID == offer.MasterID && of.State.Active() {
			return model.Offer{}, errs.ErrOfferConflict
		}
	}
	if offer.Round != maxRound+1 {
		return model.Offer{}, errs.ErrOfferConflict
	}
	if s.notifyErr != nil {
		return model.Offer{}, s.notifyErr
	}

	offer.ID = s.nextID()
	cp := offer
	s.offers = append(s.offers, &cp)
	if o, ok := s.orders[offer.OrderID]; ok && o.DistRound < offer.Round {
		o.DistRound = offer.Round
	}
	s.notifications = append(s.notifications, n)
	return offer, nil
}

func (s *Store) RespondOffer(ctx context.Context, offerID, masterID int64, to model.OfferState, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	of := s.offerByID(offerID)
	if of == nil {
		return errs.ErrOfferNotFound
	}
	if of.MasterID != masterID || !of.State.Pending() {
		return errs.ErrOfferNotActive
	}
	of.State = to
	if to != model.OfferViewed {
		t := at
		of.RespondedAt = &t
	}
	return nil
}
