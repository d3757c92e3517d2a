package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/dispatch/internal/model"
	"github.com/jackc/pgx/v5"
)

const commissionColumns = `id, order_id, master_id, amount, rate, status, deadline,
	paid_amount, payment_snapshot, blocked_applied, created_at`

func scanCommission(row scanner) (model.Commission, error) {
	var c model.Commission
	var status string
	err := row.Scan(&c.ID, &c.OrderID, &c.MasterID, &c.Amount, &c.Rate, &status, &c.Deadline,
		&c.PaidAmount, &c.Snapshot, &c.BlockedApplied, &c.CreatedAt)
	if err != nil {
		return model.Commission{}, err
	}
	c.Status = model.ParseCommissionStatus(status)
	return c, nil
}

func (s *PostgresStorage) FindCommissionByOrder(ctx context.Context, orderID int64) (*model.Commission, error) {
	query := `SELECT ` + commissionColumns + ` FROM commissions WHERE order_id = $1`

	c, err := scanCommission(s.db.QueryRow(ctx, query, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find commission: %w", err)
	}
	return &c, nil
}

// InsertCommission relies on the unique order_id. When the row already
// exists it is returned with created=false.
func (s *PostgresStorage) InsertCommission(ctx context.Context, c model.Commission) (model.Commission, bool, error) {
	const query = `
		INSERT INTO commissions (order_id, master_id, amount, rate, status, deadline, paid_amount, payment_snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING id`

	err := s.db.QueryRow(ctx, query,
		c.OrderID, c.MasterID, c.Amount, c.Rate, string(c.Status), c.Deadline, c.PaidAmount, c.Snapshot, c.CreatedAt,
	).Scan(&c.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		existing, err := s.FindCommissionByOrder(ctx, c.OrderID)
		if err != nil {
			return model.Commission{}, false, err
		}
		if existing == nil {
			return model.Commission{}, false, fmt.Errorf("commission for order %d vanished after conflict", c.OrderID)
		}
		return *existing, false, nil
	}
	if err != nil {
		return model.Commission{}, false, fmt.Errorf("insert commission: %w", err)
	}
	return c, true, nil
}

func (s *PostgresStorage) InsertReferralReward(ctx context.Context, r model.ReferralReward) (bool, error) {
	const query = `
		INSERT INTO referral_rewards (referrer_id, referred_master_id, commission_id, level, percent, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (commission_id, level) DO NOTHING`

	tag, err := s.db.Exec(ctx, query,
		r.ReferrerID, r.ReferredMasterID, r.CommissionID, r.Level, r.Percent, r.Amount, string(r.Status), r.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert referral reward: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// BlockOverdueCommissions locks the due rows with SKIP LOCKED so parallel
// sweeps split the work instead of blocking the same master twice.
func (s *PostgresStorage) BlockOverdueCommissions(ctx context.Context, now time.Time) ([]model.OverdueBlock, error) {
	const selectQuery = `
		SELECT id, order_id, master_id, amount, deadline
		FROM commissions
		WHERE status = 'WAIT_PAY' AND blocked_applied = FALSE AND deadline < $1
		ORDER BY id
		FOR UPDATE SKIP LOCKED`

	const markQuery = `UPDATE commissions SET status = 'OVERDUE', blocked_applied = TRUE WHERE id = $1`

	const blockQuery = `
		UPDATE masters
		SET is_blocked = TRUE, is_active = FALSE, blocked_reason = 'commission_overdue', blocked_at = $2
		WHERE id = $1`

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, selectQuery, now)
	if err != nil {
		return nil, fmt.Errorf("select overdue commissions: %w", err)
	}
	blocks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.OverdueBlock, error) {
		var b model.OverdueBlock
		err := row.Scan(&b.CommissionID, &b.OrderID, &b.MasterID, &b.Amount, &b.Deadline)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan overdue commissions: %w", err)
	}

	for _, b := range blocks {
		if _, err := tx.Exec(ctx, markQuery, b.CommissionID); err != nil {
			return nil, fmt.Errorf("mark commission %d overdue: %w", b.CommissionID, err)
		}
		if _, err := tx.Exec(ctx, blockQuery, b.MasterID, now); err != nil {
			return nil, fmt.Errorf("block master %d: %w", b.MasterID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return blocks, nil
}
