package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/and161185/dispatch/internal/errs"
	"github.com/and161185/dispatch/internal/model"
	"github.com/shopspring/decimal"
)

const (
	KeySLASeconds              = "distribution_sla_seconds"
	KeyRounds                  = "distribution_rounds"
	KeyEscalateAdminAfterMin   = "distribution_escalate_admin_after_min"
	KeyMaxActiveOrders         = "max_active_orders"
	KeyCommissionDeadlineHours = "commission_deadline_hours"
	KeyCommissionThreshold     = "commission_rate_threshold"
	KeyCommissionRateHigh      = "commission_rate_high_volume"
	KeyCommissionRateStandard  = "commission_rate_standard"
	KeyReferralLevel1Percent   = "referral_level1_percent"
	KeyReferralLevel2Percent   = "referral_level2_percent"
	KeyDefaultTimezone         = "timezone_default"
	KeyWorkdayStart            = "workday_start"
	KeyWorkdayEnd              = "workday_end"
	KeyOwnerPaymentMethod      = "owner_payment_method"
	KeyOwnerCardNumber         = "owner_card_number"
	KeyOwnerCardHolder         = "owner_card_holder"
	KeyOwnerSBPPhone           = "owner_sbp_phone"
	KeyOwnerSBPBank            = "owner_sbp_bank"
	KeyOwnerCashComment        = "owner_cash_comment"
)

const DefaultTTL = 2 * time.Minute

type Store interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

type Distribution struct {
	SLA                time.Duration
	Rounds             int
	EscalateAdminAfter time.Duration
	MaxActiveOrders    int
}

type Commission struct {
	Deadline       time.Duration
	Threshold      decimal.Decimal
	HighVolumeRate decimal.Decimal
	StandardRate   decimal.Decimal
	Level1Percent  decimal.Decimal
	Level2Percent  decimal.Decimal
}

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) Minutes() int { return c.Hour*60 + c.Minute }

type WorkingHours struct {
	DefaultTimezone string
	Start           ClockTime
	End             ClockTime
}

type entry struct {
	value   string
	found   bool
	fetched time.Time
}

// Cache is a read-through TTL cache over the settings table.
// Losing it on restart costs one extra read per key.
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

func NewCache(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store:   store,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	now := c.now()

	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if ok && now.Sub(e.fetched) < c.ttl {
		return e.value, e.found, nil
	}

	value, found, err := c.store.GetSetting(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}

	c.mu.Lock()
	c.entries[key] = entry{value: strings.TrimSpace(value), found: found, fetched: now}
	c.mu.Unlock()

	return strings.TrimSpace(value), found, nil
}

func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

func (c *Cache) String(ctx context.Context, key, def string) (string, error) {
	value, found, err := c.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !found || value == "" {
		return def, nil
	}
	return value, nil
}

func (c *Cache) Int(ctx context.Context, key string, def int) (int, error) {
	value, found, err := c.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !found || value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", errs.ErrBadSetting, key, value)
	}
	return n, nil
}

func (c *Cache) Decimal(ctx context.Context, key string, def decimal.Decimal) (decimal.Decimal, error) {
	value, found, err := c.Get(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	if !found || value == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(value, ",", "."))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s=%q", errs.ErrBadSetting, key, value)
	}
	return d, nil
}

func (c *Cache) Clock(ctx context.Context, key string, def ClockTime) (ClockTime, error) {
	value, found, err := c.Get(ctx, key)
	if err != nil {
		return ClockTime{}, err
	}
	if !found || value == "" {
		return def, nil
	}
	t, err := time.Parse("15:04", value)
	if err != nil {
		return ClockTime{}, fmt.Errorf("%w: %s=%q", errs.ErrBadSetting, key, value)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c *Cache) Distribution(ctx context.Context) (Distribution, error) {
	sla, err := c.Int(ctx, KeySLASeconds, 120)
	if err != nil {
		return Distribution{}, err
	}
	rounds, err := c.Int(ctx, KeyRounds, 2)
	if err != nil {
		return Distribution{}, err
	}
	escalate, err := c.Int(ctx, KeyEscalateAdminAfterMin, 10)
	if err != nil {
		return Distribution{}, err
	}
	limit, err := c.Int(ctx, KeyMaxActiveOrders, 1)
	if err != nil {
		return Distribution{}, err
	}

	if sla <= 0 {
		sla = 120
	}
	if rounds < 1 {
		rounds = 1
	}
	if escalate < 0 {
		escalate = 0
	}
	if limit < 1 {
		limit = 1
	}

	return Distribution{
		SLA:                time.Duration(sla) * time.Second,
		Rounds:             rounds,
		EscalateAdminAfter: time.Duration(escalate) * time.Minute,
		MaxActiveOrders:    limit,
	}, nil
}

func (c *Cache) Commission(ctx context.Context) (Commission, error) {
	var cs Commission

	hours, err := c.Int(ctx, KeyCommissionDeadlineHours, 3)
	if err != nil {
		return cs, err
	}
	if hours <= 0 {
		hours = 3
	}
	cs.Deadline = time.Duration(hours) * time.Hour

	if cs.Threshold, err = c.Decimal(ctx, KeyCommissionThreshold, decimal.NewFromInt(7000)); err != nil {
		return cs, err
	}
	if cs.HighVolumeRate, err = c.Decimal(ctx, KeyCommissionRateHigh, decimal.RequireFromString("0.40")); err != nil {
		return cs, err
	}
	if cs.StandardRate, err = c.Decimal(ctx, KeyCommissionRateStandard, decimal.RequireFromString("0.50")); err != nil {
		return cs, err
	}
	if cs.Level1Percent, err = c.Decimal(ctx, KeyReferralLevel1Percent, decimal.NewFromInt(10)); err != nil {
		return cs, err
	}
	if cs.Level2Percent, err = c.Decimal(ctx, KeyReferralLevel2Percent, decimal.NewFromInt(5)); err != nil {
		return cs, err
	}
	return cs, nil
}

func (c *Cache) WorkingHours(ctx context.Context) (WorkingHours, error) {
	var wh WorkingHours
	var err error

	if wh.DefaultTimezone, err = c.String(ctx, KeyDefaultTimezone, "Europe/Moscow"); err != nil {
		return wh, err
	}
	if wh.Start, err = c.Clock(ctx, KeyWorkdayStart, ClockTime{Hour: 10}); err != nil {
		return wh, err
	}
	if wh.End, err = c.Clock(ctx, KeyWorkdayEnd, ClockTime{Hour: 20}); err != nil {
		return wh, err
	}
	return wh, nil
}

// Requisites are the owner's current payment details, unmasked.
type Requisites struct {
	Method      model.PaymentMethod
	CardNumber  string
	CardHolder  string
	SBPPhone    string
	SBPBank     string
	CashComment string
}

func (c *Cache) Requisites(ctx context.Context) (Requisites, error) {
	var r Requisites

	method, err := c.String(ctx, KeyOwnerPaymentMethod, string(model.PaymentCash))
	if err != nil {
		return r, err
	}
	r.Method = model.PaymentMethod(strings.ToLower(method))

	if r.CardNumber, err = c.String(ctx, KeyOwnerCardNumber, ""); err != nil {
		return r, err
	}
	if r.CardHolder, err = c.String(ctx, KeyOwnerCardHolder, ""); err != nil {
		return r, err
	}
	if r.SBPPhone, err = c.String(ctx, KeyOwnerSBPPhone, ""); err != nil {
		return r, err
	}
	if r.SBPBank, err = c.String(ctx, KeyOwnerSBPBank, ""); err != nil {
		return r, err
	}
	if r.CashComment, err = c.String(ctx, KeyOwnerCashComment, ""); err != nil {
		return r, err
	}
	return r, nil
}
