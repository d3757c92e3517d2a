package candidates

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/and161185/dispatch/internal/errs"
	"github.com/and161185/dispatch/internal/events"
	"github.com/and161185/dispatch/internal/model"
	"github.com/and161185/dispatch/internal/settings"
	"github.com/and161185/dispatch/internal/storage/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

const skill = int64(3)

func newFilter(t *testing.T, store *memstore.Store) *Filter {
	t.Helper()
	f := NewFilter(store, settings.NewCache(store, time.Minute), events.New(zaptest.NewLogger(t), nil), zaptest.NewLogger(t).Sugar())
	f.newRand = func() *rand.Rand { return rand.New(rand.NewSource(1)) }
	return f
}

func eligibleMaster() model.Master {
	return model.Master{CityID: 1, IsVerified: true, IsActive: true, IsOnShift: true}
}

func TestReasonsCollectsEverything(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	district := int64(5)
	breakUntil := now.Add(time.Hour)
	order := model.Order{ID: 1, CityID: 1, DistrictID: &district}

	snap := model.CandidateSnapshot{
		Master:       model.Master{ID: 2, CityID: 2, BreakUntil: &breakUntil},
		ActiveOrders: 1,
		MaxActive:    1,
		HasOpenOffer: true,
	}

	assert.Equal(t, []Reason{
		ReasonCity, ReasonDistrict, ReasonUnverified, ReasonInactive, ReasonOffShift,
		ReasonOnBreak, ReasonNoSkill, ReasonLimit, ReasonOpenOffer,
	}, Reasons(order, snap, now))
}

func TestReasonsExpiredBreak(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	snap := model.CandidateSnapshot{
		Master:         model.Master{CityID: 1, IsVerified: true, IsActive: true, IsOnShift: true, BreakUntil: &past},
		HasSkill:       true,
		CoversDistrict: true,
		MaxActive:      1,
	}
	assert.Empty(t, Reasons(model.Order{CityID: 1, NoDistrict: true}, snap, now))
}

func TestEvaluateDistrictBypass(t *testing.T) {
	store := memstore.New()
	store.MapCategory("locks", skill)
	covering := store.AddMaster(eligibleMaster(), []int64{skill}, []int64{5})
	elsewhere := store.AddMaster(eligibleMaster(), []int64{skill}, []int64{6})
	f := newFilter(t, store)

	district := int64(5)
	order := model.Order{ID: 100, CityID: 1, DistrictID: &district, Category: "locks"}

	ev, err := f.Evaluate(context.Background(), order, ModeAuto, 0)
	require.NoError(t, err)
	require.True(t, ev.Contains(covering))
	require.False(t, ev.Contains(elsewhere))
	rej, ok := ev.RejectionFor(elsewhere)
	require.True(t, ok)
	require.Equal(t, []Reason{ReasonDistrict}, rej.Reasons)

	order.NoDistrict = true
	ev, err = f.Evaluate(context.Background(), order, ModeAuto, 0)
	require.NoError(t, err)
	require.True(t, ev.Contains(covering))
	require.True(t, ev.Contains(elsewhere))
}

func TestEvaluateSkipsBlockedAndCountsLimit(t *testing.T) {
	store := memstore.New()
	store.MapCategory("locks", skill)
	blocked := eligibleMaster()
	blocked.IsBlocked = true
	blockedID := store.AddMaster(blocked, []int64{skill}, nil)

	two := 2
	roomy := eligibleMaster()
	roomy.MaxActiveOrdersOverride = &two
	roomyID := store.AddMaster(roomy, []int64{skill}, nil)
	busyID := store.AddMaster(eligibleMaster(), []int64{skill}, nil)

	store.AddOrder(model.Order{Status: model.OrderWorking, CityID: 1, AssignedMasterID: &roomyID})
	store.AddOrder(model.Order{Status: model.OrderEnRoute, CityID: 1, AssignedMasterID: &busyID})

	ev, err := newFilter(t, store).Evaluate(context.Background(), model.Order{ID: 9, CityID: 1, NoDistrict: true, Category: "locks"}, ModeInspect, 0)
	require.NoError(t, err)
	require.True(t, ev.Contains(roomyID))
	require.False(t, ev.Contains(busyID))
	_, listed := ev.RejectionFor(blockedID)
	require.False(t, listed)

	rej, _ := ev.RejectionFor(busyID)
	require.Equal(t, []Reason{ReasonLimit}, rej.Reasons)
}

func TestEvaluateRankingAndLimit(t *testing.T) {
	store := memstore.New()
	store.MapCategory("locks", skill)
	now := time.Now()

	slow := eligibleMaster()
	slow.Rating = 5
	slowID := store.AddMaster(slow, []int64{skill}, nil)

	driver := eligibleMaster()
	driver.HasVehicle = true
	driver.Rating = 3
	driverID := store.AddMaster(driver, []int64{skill}, nil)

	earner := eligibleMaster()
	earner.Rating = 4
	earnerID := store.AddMaster(earner, []int64{skill}, nil)
	store.AddOrder(model.Order{
		Status:           model.OrderClosed,
		CityID:           1,
		AssignedMasterID: &earnerID,
		TotalSum:         decimal.NewFromInt(9000),
		CompletedAt:      &now,
	})

	f := newFilter(t, store)
	order := model.Order{ID: 50, CityID: 1, NoDistrict: true, Category: "locks"}

	ev, err := f.Evaluate(context.Background(), order, ModeAuto, 0)
	require.NoError(t, err)
	require.Len(t, ev.Eligible, 3)
	require.Equal(t, []int64{driverID, earnerID, slowID}, []int64{ev.Eligible[0].ID, ev.Eligible[1].ID, ev.Eligible[2].ID})

	ev, err = f.Evaluate(context.Background(), order, ModeAuto, 2)
	require.NoError(t, err)
	require.Len(t, ev.Eligible, 2)
	require.Equal(t, driverID, ev.Eligible[0].ID)
}

func TestRankTiesAreShuffled(t *testing.T) {
	seen := map[int64]bool{}
	for seed := int64(0); seed < 50; seed++ {
		list := []model.CandidateSnapshot{
			{Master: model.Master{ID: 1}},
			{Master: model.Master{ID: 2}},
			{Master: model.Master{ID: 3}},
		}
		Rank(list, rand.New(rand.NewSource(seed)))
		seen[list[0].ID] = true
	}
	assert.Len(t, seen, 3)
}

func TestEvaluateUnmappedCategory(t *testing.T) {
	store := memstore.New()
	store.AddMaster(eligibleMaster(), []int64{skill}, nil)

	core, logs := observer.New(zapcore.ErrorLevel)
	f := NewFilter(store, settings.NewCache(store, time.Minute), nil, zap.New(core).Sugar())

	_, err := f.Evaluate(context.Background(), model.Order{ID: 4, CityID: 1, Category: "unknown"}, ModeAuto, 0)
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrUnmappedCategory))
	require.Equal(t, 1, logs.FilterMessage("category has no skill").Len())
}

func TestEvaluateLogsRejections(t *testing.T) {
	store := memstore.New()
	store.MapCategory("locks", skill)
	unverified := eligibleMaster()
	unverified.IsVerified = false
	id := store.AddMaster(unverified, nil, nil)

	core, logs := observer.New(zapcore.InfoLevel)
	f := NewFilter(store, settings.NewCache(store, time.Minute), nil, zap.New(core).Sugar())

	_, err := f.Evaluate(context.Background(), model.Order{ID: 4, CityID: 1, NoDistrict: true, Category: "locks"}, ModeManual, 0)
	require.NoError(t, err)

	entries := logs.FilterMessage("candidate rejected").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, id, fields["master_id"])
	assert.Equal(t, ModeManual, fields["mode"])
	assert.Equal(t, []interface{}{"unverified", "no_skill"}, fields["reasons"])
}
