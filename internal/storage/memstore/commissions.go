package memstore

import (
	"context"
	"time"

	"github.com/and161185/dispatch/internal/model"
)

func (s *Store) commissionFor(orderID int64) *model.Commission {
	for _, c := range s.commissions {
		if c.OrderID == orderID {
			return c
		}
	}
	return nil
}

func (s *Store) FindCommissionByOrder(ctx context.Context, orderID int64) (*model.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.commissionFor(orderID)
	if c == nil {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *Store) InsertCommission(ctx context.Context, c model.Commission) (model.Commission, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.commissionFor(c.OrderID); existing != nil {
		return *existing, false, nil
	}
	c.ID = s.nextID()
	cp := c
	s.commissions = append(s.commissions, &cp)
	return c, true, nil
}

func (s *Store) InsertReferralReward(ctx context.Context, r model.ReferralReward) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rewards {
		if existing.CommissionID == r.CommissionID && existing.Level == r.Level {
			return false, nil
		}
	}
	r.ID = s.nextID()
	s.rewards = append(s.rewards, r)
	return true, nil
}

func (s *Store) BlockOverdueCommissions(ctx context.Context, now time.Time) ([]model.OverdueBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var blocks []model.OverdueBlock
	for _, c := range s.commissions {
		if c.Status != model.CommissionWaitPay || c.BlockedApplied || !c.Deadline.Before(now) {
			continue
		}
		c.Status = model.CommissionOverdue
		c.BlockedApplied = true

		if m, ok := s.masters[c.MasterID]; ok {
			at := now
			m.IsBlocked = true
			m.IsActive = false
			m.BlockedReason = "commission_overdue"
			m.BlockedAt = &at
		}
		blocks = append(blocks, model.OverdueBlock{
			CommissionID: c.ID,
			OrderID:      c.OrderID,
			MasterID:     c.MasterID,
			Amount:       c.Amount,
			Deadline:     c.Deadline,
		})
	}
	return blocks, nil
}
