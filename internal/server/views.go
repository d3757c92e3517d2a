package server

import (
	"time"

	"github.com/and161185/dispatch/internal/candidates"
	"github.com/and161185/dispatch/internal/model"
	"github.com/shopspring/decimal"
)

type candidateView struct {
	MasterID     int64           `json:"master_id"`
	FullName     string          `json:"full_name"`
	HasVehicle   bool            `json:"has_vehicle"`
	Rating       float64         `json:"rating"`
	AvgCheck     decimal.Decimal `json:"avg_check"`
	ActiveOrders int             `json:"active_orders"`
	MaxActive    int             `json:"max_active"`
}

type rejectionView struct {
	MasterID int64               `json:"master_id"`
	FullName string              `json:"full_name"`
	Reasons  []candidates.Reason `json:"reasons"`
}

type candidatesResponse struct {
	OrderID  int64           `json:"order_id"`
	Eligible []candidateView `json:"eligible"`
	Rejected []rejectionView `json:"rejected"`
}

func newCandidatesResponse(orderID int64, ev candidates.Evaluation) candidatesResponse {
	resp := candidatesResponse{
		OrderID:  orderID,
		Eligible: make([]candidateView, 0, len(ev.Eligible)),
		Rejected: make([]rejectionView, 0, len(ev.Rejected)),
	}
	for _, c := range ev.Eligible {
		resp.Eligible = append(resp.Eligible, candidateView{
			MasterID:     c.ID,
			FullName:     c.FullName,
			HasVehicle:   c.HasVehicle,
			Rating:       c.Rating,
			AvgCheck:     c.AvgCheck.Round(2),
			ActiveOrders: c.ActiveOrders,
			MaxActive:    c.MaxActive,
		})
	}
	for _, rej := range ev.Rejected {
		resp.Rejected = append(resp.Rejected, rejectionView{
			MasterID: rej.MasterID,
			FullName: rej.Snapshot.FullName,
			Reasons:  rej.Reasons,
		})
	}
	return resp
}

type historyView struct {
	ID         int64                `json:"id"`
	FromStatus model.OrderStatus    `json:"from_status"`
	ToStatus   model.OrderStatus    `json:"to_status"`
	Actor      model.ActorType      `json:"actor"`
	Reason     string               `json:"reason"`
	Kind       string               `json:"kind,omitempty"`
	Context    model.HistoryContext `json:"context,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

func newHistoryResponse(entries []model.HistoryEntry) []historyView {
	out := make([]historyView, 0, len(entries))
	for _, e := range entries {
		v := historyView{
			ID:         e.ID,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			Actor:      e.Actor,
			Reason:     e.Reason,
			Context:    e.Context,
			CreatedAt:  e.CreatedAt,
		}
		if e.Context != nil {
			v.Kind = e.Context.Kind()
		}
		out = append(out, v)
	}
	return out
}
