package model

import "time"

type OfferState string

const (
	OfferSent     OfferState = "SENT"
	OfferViewed   OfferState = "VIEWED"
	OfferAccepted OfferState = "ACCEPTED"
	OfferDeclined OfferState = "DECLINED"
	OfferExpired  OfferState = "EXPIRED"
	OfferCanceled OfferState = "CANCELED"

	OfferStateUnknown OfferState = "UNKNOWN"
)

func ParseOfferState(s string) OfferState {
	switch OfferState(s) {
	case OfferSent, OfferViewed, OfferAccepted, OfferDeclined, OfferExpired, OfferCanceled:
		return OfferState(s)
	}
	return OfferStateUnknown
}

// ActiveOfferStates hold the (order, master) slot.
var ActiveOfferStates = []OfferState{OfferSent, OfferViewed, OfferAccepted}

// PendingOfferStates still await the master's answer.
var PendingOfferStates = []OfferState{OfferSent, OfferViewed}

func (s OfferState) Active() bool {
	return s == OfferSent || s == OfferViewed || s == OfferAccepted
}

func (s OfferState) Pending() bool {
	return s == OfferSent || s == OfferViewed
}

type Offer struct {
	ID          int64
	OrderID     int64
	MasterID    int64
	Round       int
	State       OfferState
	SentAt      time.Time
	ExpiresAt   time.Time
	RespondedAt *time.Time
}

// Live reports whether the offer is pending and inside its SLA window.
// Expired offers are never swept; they simply stop counting here.
func (o Offer) Live(now time.Time) bool {
	return o.State.Pending() && o.ExpiresAt.After(now)
}

// Assignment is the input of the single conditional order transition
// shared by offer acceptance, tick finalisation and manual assignment.
type Assignment struct {
	OrderID         int64
	MasterID        int64
	ExpectedStatus  OrderStatus
	ExpectedVersion int

	// OfferID is set when the transition is driven by an offer.
	OfferID *int64
	// OfferAccepted means the offer is already ACCEPTED and only the
	// order side is left to finalise.
	OfferAccepted bool

	At      time.Time
	History HistoryEntry
}
