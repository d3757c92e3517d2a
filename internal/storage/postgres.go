package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/dispatch/internal/errs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type PostgresStorage struct {
	db *pgxpool.Pool
}

// execer is satisfied by both the pool and a transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStorage) initSchema(ctx context.Context) error {
	const initSchemaQuery = `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE TABLE IF NOT EXISTS cities (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		timezone TEXT
	);
	CREATE TABLE IF NOT EXISTS districts (
		id BIGSERIAL PRIMARY KEY,
		city_id BIGINT NOT NULL REFERENCES cities(id),
		name TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS skills (
		id BIGSERIAL PRIMARY KEY,
		code TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS category_skills (
		category TEXT PRIMARY KEY,
		skill_id BIGINT NOT NULL REFERENCES skills(id)
	);
	CREATE TABLE IF NOT EXISTS masters (
		id BIGSERIAL PRIMARY KEY,
		city_id BIGINT NOT NULL REFERENCES cities(id),
		full_name TEXT NOT NULL DEFAULT '',
		is_verified BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_on_shift BOOLEAN NOT NULL DEFAULT FALSE,
		break_until TIMESTAMPTZ,
		is_blocked BOOLEAN NOT NULL DEFAULT FALSE,
		blocked_reason TEXT NOT NULL DEFAULT '',
		blocked_at TIMESTAMPTZ,
		has_vehicle BOOLEAN NOT NULL DEFAULT FALSE,
		rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		max_active_orders_override INT,
		referral_code TEXT UNIQUE,
		referred_by_master_id BIGINT REFERENCES masters(id)
	);
	CREATE TABLE IF NOT EXISTS master_skills (
		master_id BIGINT NOT NULL REFERENCES masters(id),
		skill_id BIGINT NOT NULL REFERENCES skills(id),
		PRIMARY KEY (master_id, skill_id)
	);
	CREATE TABLE IF NOT EXISTS master_districts (
		master_id BIGINT NOT NULL REFERENCES masters(id),
		district_id BIGINT NOT NULL REFERENCES districts(id),
		PRIMARY KEY (master_id, district_id)
	);
	CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'CREATED',
		type TEXT NOT NULL DEFAULT 'NORMAL',
		city_id BIGINT NOT NULL REFERENCES cities(id),
		district_id BIGINT REFERENCES districts(id),
		no_district BOOLEAN NOT NULL DEFAULT FALSE,
		category TEXT NOT NULL,
		assigned_master_id BIGINT REFERENCES masters(id),
		preferred_master_id BIGINT REFERENCES masters(id),
		guarantee_source_order_id BIGINT REFERENCES orders(id),
		timeslot_start TIMESTAMPTZ,
		timeslot_end TIMESTAMPTZ,
		total_sum NUMERIC(12,2) NOT NULL DEFAULT 0,
		dist_round INT NOT NULL DEFAULT 0,
		escalated_logist_at TIMESTAMPTZ,
		logist_notified_at TIMESTAMPTZ,
		escalated_admin_at TIMESTAMPTZ,
		admin_notified_at TIMESTAMPTZ,
		version INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS orders_open_idx ON orders (status) WHERE assigned_master_id IS NULL;
	CREATE INDEX IF NOT EXISTS orders_master_idx ON orders (assigned_master_id, status);
	CREATE TABLE IF NOT EXISTS offers (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL REFERENCES orders(id),
		master_id BIGINT NOT NULL REFERENCES masters(id),
		round INT NOT NULL CHECK (round >= 1),
		state TEXT NOT NULL DEFAULT 'SENT',
		sent_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		responded_at TIMESTAMPTZ,
		UNIQUE (order_id, round)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS offers_active_master_idx ON offers (order_id, master_id)
		WHERE state IN ('SENT', 'VIEWED', 'ACCEPTED');
	CREATE TABLE IF NOT EXISTS order_status_history (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL REFERENCES orders(id),
		from_status TEXT,
		to_status TEXT NOT NULL,
		actor_type TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		context JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS order_status_history_order_idx ON order_status_history (order_id, id);
	CREATE TABLE IF NOT EXISTS commissions (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT UNIQUE NOT NULL REFERENCES orders(id),
		master_id BIGINT NOT NULL REFERENCES masters(id),
		amount NUMERIC(12,2) NOT NULL,
		rate NUMERIC(6,4) NOT NULL,
		status TEXT NOT NULL DEFAULT 'WAIT_PAY',
		deadline TIMESTAMPTZ NOT NULL,
		paid_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
		payment_snapshot JSONB NOT NULL DEFAULT '{}',
		blocked_applied BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS commissions_overdue_idx ON commissions (deadline)
		WHERE status = 'WAIT_PAY' AND blocked_applied = FALSE;
	CREATE TABLE IF NOT EXISTS referral_rewards (
		id BIGSERIAL PRIMARY KEY,
		referrer_id BIGINT NOT NULL REFERENCES masters(id),
		referred_master_id BIGINT NOT NULL REFERENCES masters(id),
		commission_id BIGINT NOT NULL REFERENCES commissions(id),
		level SMALLINT NOT NULL CHECK (level IN (1, 2)),
		percent NUMERIC(5,2) NOT NULL,
		amount NUMERIC(12,2) NOT NULL,
		status TEXT NOT NULL DEFAULT 'ACCRUED',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (commission_id, level)
	);
	CREATE TABLE IF NOT EXISTS notifications_outbox (
		id BIGSERIAL PRIMARY KEY,
		key UUID UNIQUE NOT NULL,
		master_id BIGINT REFERENCES masters(id),
		channel TEXT,
		event TEXT NOT NULL,
		payload JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		sent_at TIMESTAMPTZ
	);
	CREATE TABLE IF NOT EXISTS staff (
		id BIGSERIAL PRIMARY KEY,
		login TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'logist',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`

	_, err := s.db.Exec(ctx, initSchemaQuery)
	return err
}

func NewPostgreStorage(ctx context.Context, databaseURI string) (*PostgresStorage, error) {
	db, err := pgxpool.New(ctx, databaseURI)
	if err != nil {
		return nil, err
	}

	storage := &PostgresStorage{db: db}

	if err := storage.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := storage.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStorage) Close() {
	s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (s *PostgresStorage) GetSetting(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT value FROM settings WHERE key = $1`

	var value string
	err := s.db.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *PostgresStorage) CityTimezone(ctx context.Context, cityID int64) (string, error) {
	const query = `SELECT COALESCE(timezone, '') FROM cities WHERE id = $1`

	var tz string
	err := s.db.QueryRow(ctx, query, cityID).Scan(&tz)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get city timezone: %w", err)
	}
	return tz, nil
}

func (s *PostgresStorage) SkillIDForCategory(ctx context.Context, category string) (int64, error) {
	const query = `SELECT skill_id FROM category_skills WHERE category = $1`

	var id int64
	err := s.db.QueryRow(ctx, query, category).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, errs.ErrUnmappedCategory
	}
	if err != nil {
		return 0, fmt.Errorf("get skill for category: %w", err)
	}
	return id, nil
}
