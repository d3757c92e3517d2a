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

const offerColumns = `id, order_id, master_id, round, state, sent_at, expires_at, responded_at`

func scanOffer(row scanner) (model.Offer, error) {
	var of model.Offer
	var state string
	if err := row.Scan(&of.ID, &of.OrderID, &of.MasterID, &of.Round, &state, &of.SentAt, &of.ExpiresAt, &of.RespondedAt); err != nil {
		return model.Offer{}, err
	}
	of.State = model.ParseOfferState(state)
	return of, nil
}

// findOffer returns nil when no row matches.
func (s *PostgresStorage) findOffer(ctx context.Context, query string, args ...any) (*model.Offer, error) {
	of, err := scanOffer(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &of, nil
}

func (s *PostgresStorage) GetOffer(ctx context.Context, id int64) (model.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`

	of, err := s.findOffer(ctx, query, id)
	if err != nil {
		return model.Offer{}, fmt.Errorf("get offer: %w", err)
	}
	if of == nil {
		return model.Offer{}, errs.ErrOfferNotFound
	}
	return *of, nil
}

func (s *PostgresStorage) FindLiveOffer(ctx context.Context, orderID int64, now time.Time) (*model.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers
		WHERE order_id = $1 AND state IN ('SENT', 'VIEWED') AND expires_at > $2
		ORDER BY round DESC LIMIT 1`

	of, err := s.findOffer(ctx, query, orderID, now)
	if err != nil {
		return nil, fmt.Errorf("find live offer: %w", err)
	}
	return of, nil
}

func (s *PostgresStorage) FindAcceptedOffer(ctx context.Context, orderID int64) (*model.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers
		WHERE order_id = $1 AND state = 'ACCEPTED'
		ORDER BY round DESC LIMIT 1`

	of, err := s.findOffer(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("find accepted offer: %w", err)
	}
	return of, nil
}

func (s *PostgresStorage) MaxOfferRound(ctx context.Context, orderID int64) (int, error) {
	const query = `SELECT COALESCE(MAX(round), 0) FROM offers WHERE order_id = $1`

	var round int
	if err := s.db.QueryRow(ctx, query, orderID).Scan(&round); err != nil {
		return 0, fmt.Errorf("max offer round: %w", err)
	}
	return round, nil
}

func (s *PostgresStorage) OfferedMasterIDs(ctx context.Context, orderID int64) ([]int64, error) {
	const query = `SELECT DISTINCT master_id FROM offers WHERE order_id = $1`

	rows, err := s.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("offered masters: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan master ids: %w", err)
	}
	return ids, nil
}

// CreateOffer inserts the offer and its notification together. The order row
// is locked first, so a live offer or a round that is not the next one
// returns ErrOfferConflict even when two ticks raced past their reads.
func (s *PostgresStorage) CreateOffer(ctx context.Context, offer model.Offer, n model.Notification) (model.Offer, error) {
	const insertQuery = `
		INSERT INTO offers (order_id, master_id, round, state, sent_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	const roundQuery = `UPDATE orders SET dist_round = GREATEST(dist_round, $2) WHERE id = $1`

	const lockQuery = `SELECT id FROM orders WHERE id = $1 FOR UPDATE`

	const stateQuery = `
		SELECT
			COALESCE(MAX(round), 0),
			COUNT(*) FILTER (WHERE state IN ('SENT', 'VIEWED') AND expires_at > $2)
		FROM offers
		WHERE order_id = $1`

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return model.Offer{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked int64
	if err := tx.QueryRow(ctx, lockQuery, offer.OrderID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Offer{}, errs.ErrOrderNotFound
		}
		return model.Offer{}, fmt.Errorf("lock order: %w", err)
	}

	var maxRound, live int
	if err := tx.QueryRow(ctx, stateQuery, offer.OrderID, offer.SentAt).Scan(&maxRound, &live); err != nil {
		return model.Offer{}, fmt.Errorf("offer state: %w", err)
	}
	if live > 0 || offer.Round != maxRound+1 {
		return model.Offer{}, errs.ErrOfferConflict
	}

	err = tx.QueryRow(ctx, insertQuery,
		offer.OrderID, offer.MasterID, offer.Round, string(offer.State), offer.SentAt, offer.ExpiresAt,
	).Scan(&offer.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Offer{}, errs.ErrOfferConflict
		}
		return model.Offer{}, fmt.Errorf("insert offer: %w", err)
	}

	if _, err := tx.Exec(ctx, roundQuery, offer.OrderID, offer.Round); err != nil {
		return model.Offer{}, fmt.Errorf("bump round: %w", err)
	}

	if err := insertNotification(ctx, tx, n); err != nil {
		return model.Offer{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Offer{}, fmt.Errorf("commit: %w", err)
	}
	return offer, nil
}

func (s *PostgresStorage) RespondOffer(ctx context.Context, offerID, masterID int64, to model.OfferState, at time.Time) error {
	const query = `
		UPDATE offers
		SET state = $3,
		    responded_at = CASE WHEN $3 = 'VIEWED' THEN responded_at ELSE $4 END
		WHERE id = $1 AND master_id = $2 AND state IN ('SENT', 'VIEWED')`

	tag, err := s.db.Exec(ctx, query, offerID, masterID, string(to), at)
	if err != nil {
		return fmt.Errorf("update offer: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := s.GetOffer(ctx, offerID); err != nil {
		return err
	}
	return errs.ErrOfferNotActive
}
