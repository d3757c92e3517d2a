package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type ActorType string

const (
	ActorSystem           ActorType = "SYSTEM"
	ActorAdmin            ActorType = "ADMIN"
	ActorMaster           ActorType = "MASTER"
	ActorAutoDistribution ActorType = "AUTO_DISTRIBUTION"
)

// HistoryEntry is one row of the append-only order status log.
type HistoryEntry struct {
	ID         int64          `json:"id"`
	OrderID    int64          `json:"order_id"`
	FromStatus OrderStatus    `json:"from_status"`
	ToStatus   OrderStatus    `json:"to_status"`
	Actor      ActorType      `json:"actor"`
	Reason     string         `json:"reason"`
	Context    HistoryContext `json:"context,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// HistoryContext is the typed payload attached to a history entry.
type HistoryContext interface {
	Kind() string
}

type AssignContext struct {
	MasterID int64  `json:"master_id"`
	StaffID  int64  `json:"staff_id"`
	Action   string `json:"action"`
}

func (AssignContext) Kind() string { return "assign" }

type OfferAcceptContext struct {
	MasterID int64 `json:"master_id"`
	OfferID  int64 `json:"offer_id"`
	Round    int   `json:"round"`
	// Finalized is set when the tick, not the master's action, closed the race window.
	Finalized bool `json:"finalized,omitempty"`
}

func (OfferAcceptContext) Kind() string { return "offer_accept" }

type WakeContext struct {
	Timezone string    `json:"timezone"`
	Target   time.Time `json:"target"`
}

func (WakeContext) Kind() string { return "wake" }

// EncodeContext flattens a context into the generic JSON shape stored in the log.
func EncodeContext(c HistoryContext) ([]byte, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	body, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal history context: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("flatten history context: %w", err)
	}
	fields["kind"] = c.Kind()
	return json.Marshal(fields)
}

// DecodeContext restores the concrete context type. Unknown kinds yield nil.
func DecodeContext(raw []byte) (HistoryContext, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode history context: %w", err)
	}

	switch head.Kind {
	case "assign":
		return decodeAs[AssignContext](raw)
	case "offer_accept":
		return decodeAs[OfferAcceptContext](raw)
	case "wake":
		return decodeAs[WakeContext](raw)
	}
	return nil, nil
}

func decodeAs[T HistoryContext](raw []byte) (HistoryContext, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s context: %w", v.Kind(), err)
	}
	return v, nil
}
