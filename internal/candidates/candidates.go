package candidates

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/and161185/dispatch/internal/events"
	"github.com/and161185/dispatch/internal/model"
	"github.com/and161185/dispatch/internal/settings"
	"go.uber.org/zap"
)

// Mode tags an evaluation for diagnostics only.
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeManual  Mode = "manual"
	ModeInspect Mode = "inspect"
)

type Reason string

const (
	ReasonCity       Reason = "wrong_city"
	ReasonDistrict   Reason = "district_not_covered"
	ReasonUnverified Reason = "unverified"
	ReasonInactive   Reason = "inactive"
	ReasonOffShift   Reason = "off_shift"
	ReasonOnBreak    Reason = "on_break"
	ReasonNoSkill    Reason = "no_skill"
	ReasonLimit      Reason = "active_limit"
	ReasonOpenOffer  Reason = "offer_exists"
)

const avgCheckWindow = 7 * 24 * time.Hour

type Source interface {
	SkillIDForCategory(ctx context.Context, category string) (int64, error)
	ListCandidateMasters(ctx context.Context, q model.CandidateQuery) ([]model.CandidateSnapshot, error)
}

type Settings interface {
	Distribution(ctx context.Context) (settings.Distribution, error)
}

type Rejection struct {
	MasterID int64                   `json:"master_id"`
	Reasons  []Reason                `json:"reasons"`
	Snapshot model.CandidateSnapshot `json:"-"`
}

type Evaluation struct {
	Eligible []model.CandidateSnapshot
	Rejected []Rejection
}

// Contains reports whether the master made it into the eligible set.
func (e Evaluation) Contains(masterID int64) bool {
	for _, c := range e.Eligible {
		if c.ID == masterID {
			return true
		}
	}
	return false
}

func (e Evaluation) RejectionFor(masterID int64) (Rejection, bool) {
	for _, r := range e.Rejected {
		if r.MasterID == masterID {
			return r, true
		}
	}
	return Rejection{}, false
}

type Filter struct {
	source   Source
	settings Settings
	events   *events.Log
	logger   *zap.SugaredLogger
	now      func() time.Time
	newRand  func() *rand.Rand
}

func NewFilter(source Source, st Settings, ev *events.Log, logger *zap.SugaredLogger) *Filter {
	return &Filter{
		source:   source,
		settings: st,
		events:   ev,
		logger:   logger,
		now:      time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// Evaluate returns the ranked eligible masters for the order together with
// every rejected master and all of its reasons. limit <= 0 means no limit.
func (f *Filter) Evaluate(ctx context.Context, order model.Order, mode Mode, limit int) (Evaluation, error) {
	skillID, err := f.source.SkillIDForCategory(ctx, order.Category)
	if err != nil {
		f.logger.Errorw("category has no skill", "order_id", order.ID, "category", order.Category, "mode", mode, "error", err)
		return Evaluation{}, fmt.Errorf("resolve skill for %q: %w", order.Category, err)
	}

	ds, err := f.settings.Distribution(ctx)
	if err != nil {
		return Evaluation{}, fmt.Errorf("load distribution settings: %w", err)
	}

	now := f.now()
	snapshots, err := f.source.ListCandidateMasters(ctx, model.CandidateQuery{
		OrderID:      order.ID,
		CityID:       order.CityID,
		District:     order.SearchDistrict(),
		SkillID:      skillID,
		DefaultLimit: ds.MaxActiveOrders,
		Since:        now.Add(-avgCheckWindow),
	})
	if err != nil {
		return Evaluation{}, fmt.Errorf("list candidate masters: %w", err)
	}

	var ev Evaluation
	for _, snap := range snapshots {
		reasons := Reasons(order, snap, now)
		if len(reasons) == 0 {
			ev.Eligible = append(ev.Eligible, snap)
			continue
		}
		ev.Rejected = append(ev.Rejected, Rejection{MasterID: snap.ID, Reasons: reasons, Snapshot: snap})
		f.logRejection(order, mode, snap, reasons)
	}

	Rank(ev.Eligible, f.newRand())
	if limit > 0 && len(ev.Eligible) > limit {
		ev.Eligible = ev.Eligible[:limit]
	}
	return ev, nil
}

// Reasons evaluates every exclusion predicate without short-circuiting.
func Reasons(order model.Order, c model.CandidateSnapshot, now time.Time) []Reason {
	var reasons []Reason
	if c.CityID != order.CityID {
		reasons = append(reasons, ReasonCity)
	}
	if order.SearchDistrict() != nil && !c.CoversDistrict {
		reasons = append(reasons, ReasonDistrict)
	}
	if !c.IsVerified {
		reasons = append(reasons, ReasonUnverified)
	}
	if !c.IsActive {
		reasons = append(reasons, ReasonInactive)
	}
	if !c.IsOnShift {
		reasons = append(reasons, ReasonOffShift)
	}
	if c.BreakUntil != nil && c.BreakUntil.After(now) {
		reasons = append(reasons, ReasonOnBreak)
	}
	if !c.HasSkill {
		reasons = append(reasons, ReasonNoSkill)
	}
	if c.ActiveOrders >= c.MaxActive {
		reasons = append(reasons, ReasonLimit)
	}
	if c.HasOpenOffer {
		reasons = append(reasons, ReasonOpenOffer)
	}
	return reasons
}

// Rank orders by vehicle, trailing average check and rating, all descending.
// Remaining ties are shuffled so equal masters do not always race in the same order.
func Rank(list []model.CandidateSnapshot, rnd *rand.Rand) {
	keys := make(map[int64]float64, len(list))
	for _, c := range list {
		keys[c.ID] = rnd.Float64()
	}

	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.HasVehicle != b.HasVehicle {
			return a.HasVehicle
		}
		if cmp := a.AvgCheck.Cmp(b.AvgCheck); cmp != 0 {
			return cmp > 0
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		return keys[a.ID] < keys[b.ID]
	})
}

func (f *Filter) logRejection(order model.Order, mode Mode, c model.CandidateSnapshot, reasons []Reason) {
	codes := make([]string, len(reasons))
	for i, r := range reasons {
		codes[i] = string(r)
	}

	f.logger.Infow("candidate rejected",
		"order_id", order.ID,
		"master_id", c.ID,
		"mode", mode,
		"reasons", codes,
		"master", map[string]any{
			"city_id":       c.CityID,
			"verified":      c.IsVerified,
			"active":        c.IsActive,
			"on_shift":      c.IsOnShift,
			"break_until":   c.BreakUntil,
			"has_skill":     c.HasSkill,
			"covers":        c.CoversDistrict,
			"active_orders": c.ActiveOrders,
			"max_active":    c.MaxActive,
			"open_offer":    c.HasOpenOffer,
		},
	)
	if f.events != nil {
		f.events.Tracef("order %d [%s]: master %d rejected: %s", order.ID, mode, c.ID, strings.Join(codes, ","))
	}
}
