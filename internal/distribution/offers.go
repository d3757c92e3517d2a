package distribution

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/dispatch/internal/errs"
	"github.com/and161185/dispatch/internal/model"
)

const (
	CodeAccepted      = "accepted"
	CodeAlreadyTaken  = "already_taken"
	CodeOfferNotFound = "offer_not_found"
	CodeNotYourOffer  = "not_your_offer"
)

type AcceptResult struct {
	OK      bool   `json:"ok"`
	Code    string `json:"code"`
	Reason  string `json:"reason"`
	OrderID int64  `json:"order_id,omitempty"`
}

func taken(orderID int64) AcceptResult {
	return AcceptResult{Code: CodeAlreadyTaken, Reason: "order is no longer available", OrderID: orderID}
}

// AcceptOffer assigns the order to the offer's master. Losing the race to
// another acceptance or a manual assignment is a normal result, not an error.
func (e *Engine) AcceptOffer(ctx context.Context, offerID, masterID int64) (AcceptResult, error) {
	now := e.now()

	offer, err := e.store.GetOffer(ctx, offerID)
	if errors.Is(err, errs.ErrOfferNotFound) {
		return AcceptResult{Code: CodeOfferNotFound, Reason: "offer not found"}, nil
	}
	if err != nil {
		return AcceptResult{}, fmt.Errorf("get offer: %w", err)
	}
	if offer.MasterID != masterID {
		return AcceptResult{Code: CodeNotYourOffer, Reason: "offer belongs to another master", OrderID: offer.OrderID}, nil
	}
	if !offer.Live(now) {
		return taken(offer.OrderID), nil
	}

	order, err := e.store.GetOrder(ctx, offer.OrderID)
	if err != nil {
		return AcceptResult{}, fmt.Errorf("get order: %w", err)
	}
	if order.AssignedMasterID != nil || (order.Status != model.OrderSearching && order.Status != model.OrderGuarantee) {
		return taken(order.ID), nil
	}

	err = e.store.AssignOrder(ctx, model.Assignment{
		OrderID:         order.ID,
		MasterID:        masterID,
		ExpectedStatus:  order.Status,
		ExpectedVersion: order.Version,
		OfferID:         &offer.ID,
		At:              now,
		History: model.HistoryEntry{
			Actor:   model.ActorMaster,
			Reason:  "offer accepted",
			Context: model.OfferAcceptContext{MasterID: masterID, OfferID: offer.ID, Round: offer.Round},
		},
	})
	if errors.Is(err, errs.ErrOrderTaken) || errors.Is(err, errs.ErrOfferNotActive) {
		e.logger.Infow("offer accept lost race", "order_id", order.ID, "offer_id", offer.ID, "master_id", masterID)
		return taken(order.ID), nil
	}
	if err != nil {
		return AcceptResult{}, fmt.Errorf("assign order: %w", err)
	}

	e.events.Tracef("order %d accepted by master %d (offer %d, round %d)", order.ID, masterID, offer.ID, offer.Round)
	return AcceptResult{OK: true, Code: CodeAccepted, Reason: "order assigned", OrderID: order.ID}, nil
}

// DeclineOffer frees the round; the next tick moves on to the next master.
func (e *Engine) DeclineOffer(ctx context.Context, offerID, masterID int64) error {
	if err := e.store.RespondOffer(ctx, offerID, masterID, model.OfferDeclined, e.now()); err != nil {
		return fmt.Errorf("decline offer %d: %w", offerID, err)
	}
	e.logger.Infow("offer declined", "offer_id", offerID, "master_id", masterID)
	return nil
}

func (e *Engine) MarkViewed(ctx context.Context, offerID, masterID int64) error {
	if err := e.store.RespondOffer(ctx, offerID, masterID, model.OfferViewed, e.now()); err != nil {
		return fmt.Errorf("mark offer %d viewed: %w", offerID, err)
	}
	return nil
}
