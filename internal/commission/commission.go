package commission

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/dispatch/internal/errs"
	"github.com/and161185/dispatch/internal/model"
	"github.com/and161185/dispatch/internal/settings"
	"github.com/and161185/dispatch/internal/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Outcome string

const (
	OutcomeCreated          Outcome = "created"
	OutcomeExisting         Outcome = "existing"
	OutcomeSkippedGuarantee Outcome = "skipped_guarantee"
)

const (
	avgCheckWindow = 7 * 24 * time.Hour
	maxReferralLvl = 2
	sweepBatch     = 100
)

var hundred = decimal.NewFromInt(100)

type Store interface {
	GetOrder(ctx context.Context, id int64) (model.Order, error)
	GetMaster(ctx context.Context, id int64) (model.Master, error)
	MasterAverageCheck(ctx context.Context, masterID int64, since time.Time) (decimal.Decimal, error)
	FindCommissionByOrder(ctx context.Context, orderID int64) (*model.Commission, error)
	InsertCommission(ctx context.Context, c model.Commission) (model.Commission, bool, error)
	InsertReferralReward(ctx context.Context, r model.ReferralReward) (bool, error)
	ListOrdersMissingCommission(ctx context.Context, limit int) ([]int64, error)
}

type Settings interface {
	Commission(ctx context.Context) (settings.Commission, error)
	Requisites(ctx context.Context) (settings.Requisites, error)
}

type Result struct {
	Outcome    Outcome           `json:"outcome"`
	Reason     string            `json:"reason"`
	Commission *model.Commission `json:"commission,omitempty"`
	Rewards    int               `json:"rewards_created"`
}

type Service struct {
	store    Store
	settings Settings
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewService(store Store, st Settings, logger *zap.SugaredLogger) *Service {
	return &Service{store: store, settings: st, logger: logger, now: time.Now}
}

// Rate picks the tier for a trailing average check. Reaching the threshold
// already earns the high-volume rate.
func Rate(avg, threshold, highVolume, standard decimal.Decimal) decimal.Decimal {
	if avg.GreaterThanOrEqual(threshold) {
		return highVolume
	}
	return standard
}

// Amount is total*rate rounded half-up to kopecks. Totals are never negative,
// so Round's half-away-from-zero is half-up here.
func Amount(total, rate decimal.Decimal) decimal.Decimal {
	return total.Mul(rate).Round(2)
}

// Snapshot freezes the owner's requisites with sensitive parts masked.
func Snapshot(r settings.Requisites) model.PaymentSnapshot {
	switch r.Method {
	case model.PaymentCard:
		return model.PaymentSnapshot{Method: model.PaymentCard, CardLast4: utils.CardLast4(r.CardNumber), CardHolder: r.CardHolder}
	case model.PaymentSBP:
		return model.PaymentSnapshot{Method: model.PaymentSBP, SBPPhone: utils.MaskPhone(r.SBPPhone), SBPBank: r.SBPBank}
	default:
		return model.PaymentSnapshot{Method: model.PaymentCash, Comment: r.CashComment}
	}
}

// CreateForOrder is safe to call any number of times for the same order.
// An existing commission is returned as is and its referral rewards are
// topped up, which heals a failure between the two inserts.
func (s *Service) CreateForOrder(ctx context.Context, orderID int64) (Result, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return Result{}, fmt.Errorf("get order %d: %w", orderID, err)
	}

	if order.IsGuarantee() {
		s.logger.Infow("commission skipped for guarantee order", "order_id", orderID, "type", order.Type, "guarantee_source_id", order.GuaranteeSourceID)
		return Result{Outcome: OutcomeSkippedGuarantee, Reason: "guarantee orders carry no commission"}, nil
	}
	if !order.Status.PaymentEligible() {
		return Result{}, fmt.Errorf("order %d in status %s: %w", orderID, order.Status, errs.ErrOrderNotCompleted)
	}
	if order.AssignedMasterID == nil {
		return Result{}, fmt.Errorf("order %d: %w", orderID, errs.ErrNoAssignedMaster)
	}

	existing, err := s.store.FindCommissionByOrder(ctx, orderID)
	if err != nil {
		return Result{}, fmt.Errorf("find commission: %w", err)
	}
	if existing != nil {
		return s.finish(ctx, *existing, OutcomeExisting, "commission already exists")
	}

	c, err := s.build(ctx, order)
	if err != nil {
		return Result{}, err
	}

	c, created, err := s.store.InsertCommission(ctx, c)
	if err != nil {
		return Result{}, fmt.Errorf("insert commission: %w", err)
	}
	if !created {
		return s.finish(ctx, c, OutcomeExisting, "commission already exists")
	}

	s.logger.Infow("commission created",
		"order_id", orderID,
		"master_id", c.MasterID,
		"amount", c.Amount.StringFixed(2),
		"rate", c.Rate.String(),
		"deadline", c.Deadline,
	)
	return s.finish(ctx, c, OutcomeCreated, "commission created")
}

func (s *Service) build(ctx context.Context, order model.Order) (model.Commission, error) {
	cs, err := s.settings.Commission(ctx)
	if err != nil {
		return model.Commission{}, fmt.Errorf("load commission settings: %w", err)
	}
	req, err := s.settings.Requisites(ctx)
	if err != nil {
		return model.Commission{}, fmt.Errorf("load owner requisites: %w", err)
	}
	if req.Method == model.PaymentCard && !utils.IsValidLuhn(utils.Digits(req.CardNumber)) {
		s.logger.Warnw("owner card number fails checksum", "order_id", order.ID)
	}

	now := s.now()
	masterID := *order.AssignedMasterID
	avg, err := s.store.MasterAverageCheck(ctx, masterID, now.Add(-avgCheckWindow))
	if err != nil {
		return model.Commission{}, fmt.Errorf("average check for master %d: %w", masterID, err)
	}

	rate := Rate(avg, cs.Threshold, cs.HighVolumeRate, cs.StandardRate)
	return model.Commission{
		OrderID:   order.ID,
		MasterID:  masterID,
		Amount:    Amount(order.TotalSum, rate),
		Rate:      rate,
		Status:    model.CommissionWaitPay,
		Deadline:  now.Add(cs.Deadline),
		Snapshot:  Snapshot(req),
		CreatedAt: now,
	}, nil
}

func (s *Service) finish(ctx context.Context, c model.Commission, outcome Outcome, reason string) (Result, error) {
	n, err := s.distributeRewards(ctx, c)
	if err != nil {
		return Result{}, fmt.Errorf("referral rewards for commission %d: %w", c.ID, err)
	}
	return Result{Outcome: outcome, Reason: reason, Commission: &c, Rewards: n}, nil
}

// distributeRewards walks up to two referrers. The (commission, level)
// uniqueness makes a repeated walk insert nothing.
func (s *Service) distributeRewards(ctx context.Context, c model.Commission) (int, error) {
	if !c.Amount.IsPositive() {
		return 0, nil
	}
	cs, err := s.settings.Commission(ctx)
	if err != nil {
		return 0, fmt.Errorf("load commission settings: %w", err)
	}
	percents := [maxReferralLvl]decimal.Decimal{cs.Level1Percent, cs.Level2Percent}

	master, err := s.store.GetMaster(ctx, c.MasterID)
	if err != nil {
		return 0, fmt.Errorf("get master %d: %w", c.MasterID, err)
	}

	created := 0
	visited := map[int64]bool{master.ID: true}
	referrerID := master.ReferredByMasterID
	for level := 1; level <= maxReferralLvl && referrerID != nil; level++ {
		if visited[*referrerID] {
			s.logger.Warnw("referral chain loops", "commission_id", c.ID, "master_id", *referrerID)
			break
		}
		visited[*referrerID] = true

		referrer, err := s.store.GetMaster(ctx, *referrerID)
		if err != nil {
			return created, fmt.Errorf("get referrer %d: %w", *referrerID, err)
		}

		percent := percents[level-1]
		if percent.IsPositive() {
			ok, err := s.store.InsertReferralReward(ctx, model.ReferralReward{
				ReferrerID:       referrer.ID,
				ReferredMasterID: master.ID,
				CommissionID:     c.ID,
				Level:            level,
				Percent:          percent,
				Amount:           c.Amount.Mul(percent).Div(hundred).Round(2),
				Status:           model.RewardAccrued,
				CreatedAt:        s.now(),
			})
			if err != nil {
				return created, fmt.Errorf("insert level %d reward: %w", level, err)
			}
			if ok {
				created++
				s.logger.Infow("referral reward accrued", "commission_id", c.ID, "referrer_id", referrer.ID, "level", level)
			}
		}
		referrerID = referrer.ReferredByMasterID
	}
	return created, nil
}

// SweepMissing creates commissions for completed orders that never got one.
func (s *Service) SweepMissing(ctx context.Context) (int, error) {
	ids, err := s.store.ListOrdersMissingCommission(ctx, sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list orders missing commission: %w", err)
	}

	created := 0
	for _, id := range ids {
		res, err := s.CreateForOrder(ctx, id)
		if err != nil {
			s.logger.Errorw("backstop commission failed", "order_id", id, "error", err)
			continue
		}
		if res.Outcome == OutcomeCreated {
			created++
		}
	}
	return created, nil
}
