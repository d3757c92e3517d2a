package distribution

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/and161185/dispatch/internal/candidates"
	"github.com/and161185/dispatch/internal/events"
	"github.com/and161185/dispatch/internal/model"
	"github.com/and161185/dispatch/internal/settings"
	"github.com/and161185/dispatch/internal/storage/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testCity  = int64(1)
	testSkill = int64(10)
)

type fixture struct {
	store  *memstore.Store
	engine *Engine
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memstore.New()
	store.MapCategory("plumbing", testSkill)

	logger := zaptest.NewLogger(t).Sugar()
	ev := events.New(zaptest.NewLogger(t), nil)
	cache := settings.NewCache(store, time.Minute)
	filter := candidates.NewFilter(store, cache, ev, logger)

	f := &fixture{
		store: store,
		now:   time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	f.engine = NewEngine(store, filter, cache, ev, logger)
	f.engine.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) master(mut func(m *model.Master)) int64 {
	m := model.Master{
		CityID:     testCity,
		FullName:   "master",
		IsVerified: true,
		IsActive:   true,
		IsOnShift:  true,
		Rating:     4.5,
	}
	if mut != nil {
		mut(&m)
	}
	return f.store.AddMaster(m, []int64{testSkill}, nil)
}

func (f *fixture) order(mut func(o *model.Order)) int64 {
	o := model.Order{
		Status:     model.OrderSearching,
		CityID:     testCity,
		NoDistrict: true,
		Category:   "plumbing",
		TotalSum:   decimal.NewFromInt(5000),
	}
	if mut != nil {
		mut(&o)
	}
	return f.store.AddOrder(o)
}

func (f *fixture) tick(t *testing.T) TickStats {
	t.Helper()
	stats, err := f.engine.Tick(context.Background())
	require.NoError(t, err)
	return stats
}

func TestTickOffersBestRankedMaster(t *testing.T) {
	f := newFixture(t)
	f.master(nil)
	withCar := f.master(func(m *model.Master) { m.HasVehicle = true; m.Rating = 3.0 })
	orderID := f.order(nil)

	stats := f.tick(t)
	require.Equal(t, 1, stats.Offers)

	offers := f.store.Offers(orderID)
	require.Len(t, offers, 1)
	require.Equal(t, withCar, offers[0].MasterID)
	require.Equal(t, 1, offers[0].Round)
	require.Equal(t, model.OfferSent, offers[0].State)
	require.Equal(t, f.now.Add(120*time.Second), offers[0].ExpiresAt)

	sent := f.store.Notifications(model.NotifyNewOffer)
	require.Len(t, sent, 1)
	require.Equal(t, withCar, *sent[0].MasterID)
}

func TestTickWaitsForLiveOffer(t *testing.T) {
	f := newFixture(t)
	f.master(nil)
	f.master(nil)
	orderID := f.order(nil)

	f.tick(t)
	f.now = f.now.Add(30 * time.Second)
	stats := f.tick(t)

	require.Equal(t, 1, stats.Waiting)
	require.Len(t, f.store.Offers(orderID), 1)
}

func TestRoundsAreMonotonicAndBounded(t *testing.T) {
	f := newFixture(t)
	f.store.SetSetting(settings.KeyRounds, "2")
	for i := 0; i < 4; i++ {
		f.master(nil)
	}
	orderID := f.order(nil)

	for i := 0; i < 6; i++ {
		f.tick(t)
		f.now = f.now.Add(3 * time.Minute)
	}

	offers := f.store.Offers(orderID)
	require.Len(t, offers, 2)
	seenMasters := map[int64]bool{}
	for i, of := range offers {
		require.Equal(t, i+1, of.Round)
		require.False(t, seenMasters[of.MasterID], "master offered twice")
		seenMasters[of.MasterID] = true
	}

	order := f.store.Order(orderID)
	require.NotNil(t, order.EscalatedLogistAt)
	require.Equal(t, 2, order.DistRound)
}

func TestDeclineStartsNextRound(t *testing.T) {
	f := newFixture(t)
	f.master(nil)
	f.master(nil)
	orderID := f.order(nil)

	f.tick(t)
	first := f.store.Offers(orderID)[0]
	require.NoError(t, f.engine.DeclineOffer(context.Background(), first.ID, first.MasterID))

	f.tick(t)
	offers := f.store.Offers(orderID)
	require.Len(t, offers, 2)
	require.Equal(t, model.OfferDeclined, offers[0].State)
	require.Equal(t, 2, offers[1].Round)
	require.NotEqual(t, first.MasterID, offers[1].MasterID)
}

func TestEscalationHappensExactlyOnce(t *testing.T) {
	f := newFixture(t)
	f.master(func(m *model.Master) { m.IsOnShift = false })
	orderID := f.order(nil)

	for i := 0; i < 5; i++ {
		f.tick(t)
		f.now = f.now.Add(time.Minute)
	}
	require.Len(t, f.store.Notifications(model.NotifyEscalationLogist), 1)
	require.Len(t, f.store.Notifications(model.NotifyEscalationAdmin), 0)

	logistAt := *f.store.Order(orderID).EscalatedLogistAt

	f.now = f.now.Add(10 * time.Minute)
	for i := 0; i < 5; i++ {
		f.tick(t)
		f.now = f.now.Add(time.Minute)
	}

	order := f.store.Order(orderID)
	require.Equal(t, logistAt, *order.EscalatedLogistAt)
	require.NotNil(t, order.EscalatedAdminAt)
	require.Len(t, f.store.Notifications(model.NotifyEscalationLogist), 1)
	require.Len(t, f.store.Notifications(model.NotifyEscalationAdmin), 1)
}

func TestEscalateStaleCoversOrdersOutsideTick(t *testing.T) {
	f := newFixture(t)
	escalated := f.now.Add(-time.Hour)
	orderID := f.order(func(o *model.Order) {
		o.Status = model.OrderDeferred
		o.EscalatedLogistAt = &escalated
		o.LogistNotifiedAt = &escalated
	})

	n, err := f.engine.EscalateStale(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = f.engine.EscalateStale(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, n)

	require.NotNil(t, f.store.Order(orderID).EscalatedAdminAt)
	require.Len(t, f.store.Notifications(model.NotifyEscalationAdmin), 1)
}

func TestPreferredMasterGetsFirstRound(t *testing.T) {
	f := newFixture(t)
	f.master(func(m *model.Master) { m.HasVehicle = true; m.Rating = 5 })
	original := f.master(func(m *model.Master) { m.Rating = 2 })
	source := int64(999)
	orderID := f.order(func(o *model.Order) {
		o.Status = model.OrderGuarantee
		o.Type = model.OrderTypeGuarantee
		o.GuaranteeSourceID = &source
		o.PreferredMasterID = &original
		o.TotalSum = decimal.Zero
	})

	f.tick(t)
	offers := f.store.Offers(orderID)
	require.Len(t, offers, 1)
	require.Equal(t, original, offers[0].MasterID)
}

func TestTickFinalizesAcceptedOffer(t *testing.T) {
	f := newFixture(t)
	masterID := f.master(nil)
	orderID := f.order(nil)
	f.store.AddOffer(model.Offer{
		OrderID:   orderID,
		MasterID:  masterID,
		Round:     1,
		State:     model.OfferAccepted,
		SentAt:    f.now.Add(-time.Minute),
		ExpiresAt: f.now.Add(time.Minute),
	})

	stats := f.tick(t)
	require.Equal(t, 1, stats.Finalized)

	order := f.store.Order(orderID)
	require.Equal(t, model.OrderAssigned, order.Status)
	require.Equal(t, masterID, *order.AssignedMasterID)
	require.Equal(t, 1, order.Version)
}

func TestUnmappedCategoryOnlyAbortsItsOrder(t *testing.T) {
	f := newFixture(t)
	f.master(nil)
	bad := f.order(func(o *model.Order) { o.Category = "unknown" })
	good := f.order(nil)

	stats := f.tick(t)
	require.Equal(t, 1, stats.Errors)
	require.Equal(t, 1, stats.Offers)
	require.Empty(t, f.store.Offers(bad))
	require.Len(t, f.store.Offers(good), 1)
}

func TestConcurrentAcceptHasOneWinner(t *testing.T) {
	f := newFixture(t)
	masterID := f.master(nil)
	orderID := f.order(nil)
	f.tick(t)
	offer := f.store.Offers(orderID)[0]

	const attempts = 20
	results := make([]AcceptResult, attempts)
	failures := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], failures[i] = f.engine.AcceptOffer(context.Background(), offer.ID, masterID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for i, r := range results {
		require.NoError(t, failures[i])
		if r.OK {
			wins++
			continue
		}
		require.Equal(t, CodeAlreadyTaken, r.Code)
	}
	require.Equal(t, 1, wins)
	require.Equal(t, model.OrderAssigned, f.store.Order(orderID).Status)
}

func TestAcceptCancelsOtherOffers(t *testing.T) {
	f := newFixture(t)
	a := f.master(nil)
	b := f.master(nil)
	orderID := f.order(nil)
	stale := f.store.AddOffer(model.Offer{OrderID: orderID, MasterID: b, Round: 1, State: model.OfferViewed, SentAt: f.now, ExpiresAt: f.now.Add(-time.Second)})
	live := f.store.AddOffer(model.Offer{OrderID: orderID, MasterID: a, Round: 2, State: model.OfferSent, SentAt: f.now, ExpiresAt: f.now.Add(time.Minute)})

	res, err := f.engine.AcceptOffer(context.Background(), live, a)
	require.NoError(t, err)
	require.True(t, res.OK)

	for _, of := range f.store.Offers(orderID) {
		switch of.ID {
		case stale:
			require.Equal(t, model.OfferCanceled, of.State)
		case live:
			require.Equal(t, model.OfferAccepted, of.State)
		}
	}
}

func TestAcceptExpiredOffer(t *testing.T) {
	f := newFixture(t)
	masterID := f.master(nil)
	orderID := f.order(nil)
	f.tick(t)
	offer := f.store.Offers(orderID)[0]

	f.now = f.now.Add(5 * time.Minute)
	res, err := f.engine.AcceptOffer(context.Background(), offer.ID, masterID)
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Equal(t, CodeAlreadyTaken, res.Code)
	require.Nil(t, f.store.Order(orderID).AssignedMasterID)
}

func TestAcceptForeignOffer(t *testing.T) {
	f := newFixture(t)
	f.master(nil)
	orderID := f.order(nil)
	f.tick(t)
	offer := f.store.Offers(orderID)[0]

	res, err := f.engine.AcceptOffer(context.Background(), offer.ID, offer.MasterID+100)
	require.NoError(t, err)
	require.Equal(t, CodeNotYourOffer, res.Code)
}

func TestPickCandidate(t *testing.T) {
	eligible := []model.CandidateSnapshot{
		{Master: model.Master{ID: 1}},
		{Master: model.Master{ID: 2}},
		{Master: model.Master{ID: 3}},
	}
	preferred := int64(3)

	c, ok := pickCandidate(eligible, nil, &preferred, 1)
	require.True(t, ok)
	require.Equal(t, int64(3), c.ID)

	c, ok = pickCandidate(eligible, []int64{3}, &preferred, 2)
	require.True(t, ok)
	require.Equal(t, int64(1), c.ID)

	_, ok = pickCandidate(eligible, []int64{1, 2, 3}, nil, 3)
	require.False(t, ok)

	missing := int64(9)
	c, ok = pickCandidate(eligible, nil, &missing, 1)
	require.True(t, ok)
	require.Equal(t, int64(1), c.ID)
}

// interleavingStore runs between once, right after the first live-offer read.
type interleavingStore struct {
	*memstore.Store
	once    sync.Once
	between func()
}

func (s *interleavingStore) FindLiveOffer(ctx context.Context, orderID int64, now time.Time) (*model.Offer, error) {
	live, err := s.Store.FindLiveOffer(ctx, orderID, now)
	s.once.Do(s.between)
	return live, err
}

func TestInterleavedTicksKeepOneLiveOffer(t *testing.T) {
	f := newFixture(t)
	f.master(nil)
	f.master(nil)
	orderID := f.order(nil)

	racing := &interleavingStore{Store: f.store, between: func() { f.tick(t) }}
	logger := zaptest.NewLogger(t).Sugar()
	ev := events.New(zaptest.NewLogger(t), nil)
	cache := settings.NewCache(f.store, time.Minute)
	other := NewEngine(racing, candidates.NewFilter(f.store, cache, ev, logger), cache, ev, logger)
	other.now = func() time.Time { return f.now }

	_, err := other.Tick(context.Background())
	require.NoError(t, err)

	offers := f.store.Offers(orderID)
	require.Len(t, offers, 1)
	require.Equal(t, 1, offers[0].Round)
	require.True(t, offers[0].Live(f.now))
}
