package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/dispatch/internal/errs"
	"github.com/and161185/dispatch/internal/model"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, status, type, city_id, district_id, no_district, category,
	assigned_master_id, preferred_master_id, guarantee_source_order_id,
	timeslot_start, timeslot_end, total_sum, dist_round,
	escalated_logist_at, logist_notified_at, escalated_admin_at, admin_notified_at,
	version, created_at, updated_at, completed_at`

func scanOrder(row scanner) (model.Order, error) {
	var o model.Order
	var status, orderType string
	err := row.Scan(
		&o.ID, &status, &orderType, &o.CityID, &o.DistrictID, &o.NoDistrict, &o.Category,
		&o.AssignedMasterID, &o.PreferredMasterID, &o.GuaranteeSourceID,
		&o.TimeslotStart, &o.TimeslotEnd, &o.TotalSum, &o.DistRound,
		&o.EscalatedLogistAt, &o.LogistNotifiedAt, &o.EscalatedAdminAt, &o.AdminNotifiedAt,
		&o.Version, &o.CreatedAt, &o.UpdatedAt, &o.CompletedAt,
	)
	if err != nil {
		return model.Order{}, err
	}
	o.Status = model.ParseOrderStatus(status)
	o.Type = model.OrderType(orderType)
	return o, nil
}

func (s *PostgresStorage) queryOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return orders, nil
}

func (s *PostgresStorage) GetOrder(ctx context.Context, id int64) (model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Order{}, errs.ErrOrderNotFound
	}
	if err != nil {
		return model.Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (s *PostgresStorage) ListDistributableOrders(ctx context.Context) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE status IN ('SEARCHING', 'GUARANTEE') AND assigned_master_id IS NULL
		ORDER BY id`

	orders, err := s.queryOrders(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list distributable orders: %w", err)
	}
	return orders, nil
}

func (s *PostgresStorage) ListDeferredOrders(ctx context.Context) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE status = 'DEFERRED' ORDER BY id`

	orders, err := s.queryOrders(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list deferred orders: %w", err)
	}
	return orders, nil
}

func (s *PostgresStorage) ListStaleLogistEscalations(ctx context.Context, before time.Time) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE assigned_master_id IS NULL
		  AND escalated_logist_at IS NOT NULL AND escalated_logist_at <= $1
		  AND escalated_admin_at IS NULL AND admin_notified_at IS NULL
		  AND status NOT IN ('CANCELED', 'CLOSED')
		ORDER BY id`

	orders, err := s.queryOrders(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("list stale escalations: %w", err)
	}
	return orders, nil
}

func (s *PostgresStorage) ListOrdersMissingCommission(ctx context.Context, limit int) ([]int64, error) {
	const query = `
		SELECT o.id
		FROM orders o
		LEFT JOIN commissions c ON c.order_id = o.id
		WHERE c.id IS NULL
		  AND o.status IN ('PAYMENT', 'CLOSED')
		  AND o.assigned_master_id IS NOT NULL
		  AND o.type <> 'GUARANTEE'
		  AND o.guarantee_source_order_id IS NULL
		ORDER BY o.id
		LIMIT $1`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders missing commission: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan order ids: %w", err)
	}
	return ids, nil
}

func (s *PostgresStorage) WakeDeferredOrder(ctx context.Context, orderID int64, version int, entry model.HistoryEntry) (bool, error) {
	const query = `
		UPDATE orders
		SET status = 'SEARCHING',
		    escalated_logist_at = NULL, logist_notified_at = NULL,
		    escalated_admin_at = NULL, admin_notified_at = NULL,
		    version = version + 1, updated_at = $3
		WHERE id = $1 AND status = 'DEFERRED' AND version = $2`

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, query, orderID, version, entry.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("wake order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	entry.OrderID = orderID
	if err := insertHistory(ctx, tx, entry); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (s *PostgresStorage) EscalateToLogist(ctx context.Context, orderID int64, at time.Time, n model.Notification) (bool, error) {
	const query = `
		UPDATE orders
		SET escalated_logist_at = $2, logist_notified_at = $2
		WHERE id = $1 AND assigned_master_id IS NULL
		  AND escalated_logist_at IS NULL AND logist_notified_at IS NULL`

	return s.escalate(ctx, query, orderID, at, n)
}

func (s *PostgresStorage) EscalateToAdmin(ctx context.Context, orderID int64, at time.Time, n model.Notification) (bool, error) {
	const query = `
		UPDATE orders
		SET escalated_admin_at = $2, admin_notified_at = $2
		WHERE id = $1 AND assigned_master_id IS NULL AND escalated_logist_at IS NOT NULL
		  AND escalated_admin_at IS NULL AND admin_notified_at IS NULL`

	return s.escalate(ctx, query, orderID, at, n)
}

// escalate sets the timestamps and enqueues the alert in one transaction,
// so the alert exists exactly when the timestamps do.
func (s *PostgresStorage) escalate(ctx context.Context, query string, orderID int64, at time.Time, n model.Notification) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, query, orderID, at)
	if err != nil {
		return false, fmt.Errorf("mark escalation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := insertNotification(ctx, tx, n); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// AssignOrder is the one conditional transition to ASSIGNED. Zero rows on
// the order update means someone else got there first.
func (s *PostgresStorage) AssignOrder(ctx context.Context, a model.Assignment) error {
	const acceptOfferQuery = `
		UPDATE offers SET state = 'ACCEPTED', responded_at = $4
		WHERE id = $1 AND order_id = $2 AND master_id = $3
		  AND state IN ('SENT', 'VIEWED') AND expires_at > $4`

	const checkAcceptedQuery = `
		SELECT id FROM offers
		WHERE id = $1 AND order_id = $2 AND master_id = $3 AND state = 'ACCEPTED'
		FOR UPDATE`

	const assignQuery = `
		UPDATE orders
		SET status = 'ASSIGNED', assigned_master_id = $2, version = version + 1, updated_at = $5
		WHERE id = $1 AND status = $3 AND version = $4 AND assigned_master_id IS NULL`

	const cancelOthersQuery = `
		UPDATE offers SET state = 'CANCELED', responded_at = $2
		WHERE order_id = $1 AND state IN ('SENT', 'VIEWED', 'ACCEPTED')
		  AND ($3::bigint IS NULL OR id <> $3)`

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if a.OfferID != nil {
		if a.OfferAccepted {
			var id int64
			err := tx.QueryRow(ctx, checkAcceptedQuery, *a.OfferID, a.OrderID, a.MasterID).Scan(&id)
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrOfferNotActive
			}
			if err != nil {
				return fmt.Errorf("lock accepted offer: %w", err)
			}
		} else {
			tag, err := tx.Exec(ctx, acceptOfferQuery, *a.OfferID, a.OrderID, a.MasterID, a.At)
			if err != nil {
				return fmt.Errorf("accept offer: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return errs.ErrOfferNotActive
			}
		}
	}

	tag, err := tx.Exec(ctx, assignQuery, a.OrderID, a.MasterID, string(a.ExpectedStatus), a.ExpectedVersion, a.At)
	if err != nil {
		return fmt.Errorf("assign order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrOrderTaken
	}

	if _, err := tx.Exec(ctx, cancelOthersQuery, a.OrderID, a.At, a.OfferID); err != nil {
		return fmt.Errorf("cancel other offers: %w", err)
	}

	entry := a.History
	entry.OrderID = a.OrderID
	entry.FromStatus = a.ExpectedStatus
	entry.ToStatus = model.OrderAssigned
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = a.At
	}
	if err := insertHistory(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertHistory(ctx context.Context, db execer, entry model.HistoryEntry) error {
	const query = `
		INSERT INTO order_status_history (order_id, from_status, to_status, actor_type, reason, context, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)`

	raw, err := model.EncodeContext(entry.Context)
	if err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err = db.Exec(ctx, query,
		entry.OrderID, string(entry.FromStatus), string(entry.ToStatus),
		string(entry.Actor), entry.Reason, raw, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListOrderHistory(ctx context.Context, orderID int64) ([]model.HistoryEntry, error) {
	const query = `
		SELECT id, order_id, COALESCE(from_status, ''), to_status, actor_type, reason, context, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY id`

	rows, err := s.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order history: %w", err)
	}
	defer rows.Close()

	var list []model.HistoryEntry
	for rows.Next() {
		var h model.HistoryEntry
		var from, to, actor string
		var raw []byte
		if err := rows.Scan(&h.ID, &h.OrderID, &from, &to, &actor, &h.Reason, &raw, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if from != "" {
			h.FromStatus = model.ParseOrderStatus(from)
		}
		h.ToStatus = model.ParseOrderStatus(to)
		h.Actor = model.ActorType(actor)
		if h.Context, err = model.DecodeContext(raw); err != nil {
			return nil, err
		}
		list = append(list, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return list, nil
}
