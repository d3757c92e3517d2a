package assignment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/dispatch/internal/candidates"
	"github.com/and161185/dispatch/internal/errs"
	"github.com/and161185/dispatch/internal/model"
	"go.uber.org/zap"
)

const (
	CodeAssigned        = "assigned"
	CodeOrderNotFound   = "order_not_found"
	CodeAlreadyAssigned = "already_assigned"
	CodeWrongStatus     = "wrong_status"
	CodeIneligible      = "ineligible_master"
	CodeLostRace        = "assigned_by_automation"
)

const actionManualAssign = "manual_assign"

type Store interface {
	GetOrder(ctx context.Context, id int64) (model.Order, error)
	AssignOrder(ctx context.Context, a model.Assignment) error
}

type CandidateFilter interface {
	Evaluate(ctx context.Context, order model.Order, mode candidates.Mode, limit int) (candidates.Evaluation, error)
}

type Result struct {
	OK     bool   `json:"ok"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Service lets staff hand an order to a master without waiting for the
// offer rounds. Eligibility rules are the automatic ones.
type Service struct {
	store  Store
	filter CandidateFilter
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewService(store Store, filter CandidateFilter, logger *zap.SugaredLogger) *Service {
	return &Service{store: store, filter: filter, logger: logger, now: time.Now}
}

func (s *Service) Assign(ctx context.Context, orderID, masterID, staffID int64) (Result, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, errs.ErrOrderNotFound) {
		return Result{Code: CodeOrderNotFound, Reason: "order not found"}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("get order: %w", err)
	}

	if order.AssignedMasterID != nil {
		return Result{Code: CodeAlreadyAssigned, Reason: fmt.Sprintf("order already assigned to master %d", *order.AssignedMasterID)}, nil
	}
	if !order.Status.Assignable() {
		return Result{Code: CodeWrongStatus, Reason: fmt.Sprintf("order in status %s cannot be assigned", order.Status)}, nil
	}

	ev, err := s.filter.Evaluate(ctx, order, candidates.ModeManual, 0)
	if err != nil {
		return Result{}, fmt.Errorf("evaluate candidates: %w", err)
	}
	if !ev.Contains(masterID) {
		if allowed, reason := checkRejection(ev, masterID); !allowed {
			s.logger.Infow("manual assignment rejected", "order_id", orderID, "master_id", masterID, "staff_id", staffID, "reason", reason)
			return Result{Code: CodeIneligible, Reason: reason}, nil
		}
	}

	err = s.store.AssignOrder(ctx, model.Assignment{
		OrderID:         order.ID,
		MasterID:        masterID,
		ExpectedStatus:  order.Status,
		ExpectedVersion: order.Version,
		At:              s.now(),
		History: model.HistoryEntry{
			Actor:   model.ActorAdmin,
			Reason:  "manual assignment",
			Context: model.AssignContext{MasterID: masterID, StaffID: staffID, Action: actionManualAssign},
		},
	})
	if errors.Is(err, errs.ErrOrderTaken) {
		s.logger.Infow("manual assignment lost race", "order_id", orderID, "master_id", masterID, "staff_id", staffID)
		return Result{Code: CodeLostRace, Reason: "order was already assigned by automatic distribution"}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("assign order: %w", err)
	}

	s.logger.Infow("order assigned manually", "order_id", orderID, "master_id", masterID, "staff_id", staffID)
	return Result{OK: true, Code: CodeAssigned, Reason: "order assigned"}, nil
}

// checkRejection explains why the master is not in the eligible set. An open
// offer for this very order does not count against the target master.
func checkRejection(ev candidates.Evaluation, masterID int64) (bool, string) {
	rej, found := ev.RejectionFor(masterID)
	if !found {
		return false, "master is not a candidate for this order"
	}

	var codes []string
	for _, r := range rej.Reasons {
		if r == candidates.ReasonOpenOffer {
			continue
		}
		codes = append(codes, string(r))
	}
	if len(codes) == 0 {
		return true, ""
	}
	return false, "master is not eligible: " + strings.Join(codes, ", ")
}
