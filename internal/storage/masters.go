package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/dispatch/internal/errs"
	"github.com/and161185/dispatch/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const masterColumns = `m.id, m.city_id, m.full_name, m.is_verified, m.is_active, m.is_on_shift,
	m.break_until, m.is_blocked, m.blocked_reason, m.blocked_at, m.has_vehicle, m.rating,
	m.max_active_orders_override, COALESCE(m.referral_code, ''), m.referred_by_master_id`

// avgCheckExpr is the trailing average of paid, non-guarantee orders.
const avgCheckExpr = `COALESCE((
		SELECT AVG(o.total_sum) FROM orders o
		WHERE o.assigned_master_id = m.id
		  AND o.status IN ('PAYMENT', 'CLOSED')
		  AND o.type <> 'GUARANTEE' AND o.guarantee_source_order_id IS NULL
		  AND o.completed_at >= $1
	), 0)`

func masterDest(m *model.Master) []any {
	return []any{
		&m.ID, &m.CityID, &m.FullName, &m.IsVerified, &m.IsActive, &m.IsOnShift,
		&m.BreakUntil, &m.IsBlocked, &m.BlockedReason, &m.BlockedAt, &m.HasVehicle, &m.Rating,
		&m.MaxActiveOrdersOverride, &m.ReferralCode, &m.ReferredByMasterID,
	}
}

// ListCandidateMasters returns every unblocked master of the city with the
// facts the filter needs. Exclusion itself happens in the filter so every
// reason can be reported.
func (s *PostgresStorage) ListCandidateMasters(ctx context.Context, q model.CandidateQuery) ([]model.CandidateSnapshot, error) {
	query := `
		SELECT ` + masterColumns + `,
			(SELECT COUNT(*) FROM orders o
			 WHERE o.assigned_master_id = m.id
			   AND o.status IN ('ASSIGNED', 'EN_ROUTE', 'WORKING', 'PAYMENT')),
			` + avgCheckExpr + `,
			EXISTS (SELECT 1 FROM master_skills ms WHERE ms.master_id = m.id AND ms.skill_id = $3),
			($4::bigint IS NULL OR EXISTS (
				SELECT 1 FROM master_districts md WHERE md.master_id = m.id AND md.district_id = $4)),
			EXISTS (SELECT 1 FROM offers f
			        WHERE f.order_id = $5 AND f.master_id = m.id
			          AND f.state IN ('SENT', 'VIEWED', 'ACCEPTED'))
		FROM masters m
		WHERE m.city_id = $2 AND m.is_blocked = FALSE
		ORDER BY m.id`

	rows, err := s.db.Query(ctx, query, q.Since, q.CityID, q.SkillID, q.District, q.OrderID)
	if err != nil {
		return nil, fmt.Errorf("list candidate masters: %w", err)
	}
	defer rows.Close()

	var list []model.CandidateSnapshot
	for rows.Next() {
		var c model.CandidateSnapshot
		dest := append(masterDest(&c.Master), &c.ActiveOrders, &c.AvgCheck, &c.HasSkill, &c.CoversDistrict, &c.HasOpenOffer)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.MaxActive = q.DefaultLimit
		if c.MaxActiveOrdersOverride != nil {
			c.MaxActive = *c.MaxActiveOrdersOverride
		}
		list = append(list, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return list, nil
}

func (s *PostgresStorage) GetMaster(ctx context.Context, id int64) (model.Master, error) {
	query := `SELECT ` + masterColumns + ` FROM masters m WHERE m.id = $1`

	var m model.Master
	err := s.db.QueryRow(ctx, query, id).Scan(masterDest(&m)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Master{}, errs.ErrMasterNotFound
	}
	if err != nil {
		return model.Master{}, fmt.Errorf("get master: %w", err)
	}
	return m, nil
}

func (s *PostgresStorage) MasterAverageCheck(ctx context.Context, masterID int64, since time.Time) (decimal.Decimal, error) {
	query := `SELECT ` + avgCheckExpr + ` FROM masters m WHERE m.id = $2`

	var avg decimal.Decimal
	err := s.db.QueryRow(ctx, query, since, masterID).Scan(&avg)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, errs.ErrMasterNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("average check: %w", err)
	}
	return avg, nil
}

func (s *PostgresStorage) GetStaffByLogin(ctx context.Context, login string) (model.Staff, string, error) {
	const query = `SELECT id, login, role, is_active, password_hash FROM staff WHERE login = $1`

	var st model.Staff
	var hash string

	err := s.db.QueryRow(ctx, query, login).Scan(&st.ID, &st.Login, &st.Role, &st.IsActive, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Staff{}, "", errs.ErrStaffNotFound
		}
		return model.Staff{}, "", fmt.Errorf("get staff by login: %w", err)
	}

	return st, hash, nil
}

func (s *PostgresStorage) GetStaffByID(ctx context.Context, id int64) (model.Staff, error) {
	const query = `SELECT id, login, role, is_active FROM staff WHERE id = $1`

	var st model.Staff

	err := s.db.QueryRow(ctx, query, id).Scan(&st.ID, &st.Login, &st.Role, &st.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Staff{}, errs.ErrStaffNotFound
		}
		return model.Staff{}, fmt.Errorf("get staff by id: %w", err)
	}

	return st, nil
}
