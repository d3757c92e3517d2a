// Package memstore keeps the whole dispatch state in process memory.
// Every write takes the single mutex, which gives the same all-or-nothing
// conditional updates the Postgres store gets from row locks.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/and161185/dispatch/internal/errs"
	"github.com/and161185/dispatch/internal/model"
	"github.com/shopspring/decimal"
)

type masterRow struct {
	model.Master
	skills    map[int64]bool
	districts map[int64]bool
}

type staffRow struct {
	model.Staff
	hash string
}

type Store struct {
	mu sync.Mutex

	settings   map[string]string
	categories map[string]int64
	timezones  map[int64]string

	masters       map[int64]*masterRow
	orders        map[int64]*model.Order
	offers        []*model.Offer
	history       []model.HistoryEntry
	commissions   []*model.Commission
	rewards       []model.ReferralReward
	notifications []model.Notification
	staff         map[int64]*staffRow

	notifyErr error
	seq       int64
}

func New() *Store {
	return &Store{
		settings:   make(map[string]string),
		categories: make(map[string]int64),
		timezones:  make(map[int64]string),
		masters:    make(map[int64]*masterRow),
		orders:     make(map[int64]*model.Order),
		staff:      make(map[int64]*staffRow),
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// Seeding helpers.

func (s *Store) SetSetting(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
}

func (s *Store) MapCategory(category string, skillID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[category] = skillID
}

func (s *Store) SetCityTimezone(cityID int64, tz string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timezones[cityID] = tz
}

func (s *Store) AddMaster(m model.Master, skills []int64, districts []int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == 0 {
		m.ID = s.nextID()
	}
	row := &masterRow{Master: m, skills: map[int64]bool{}, districts: map[int64]bool{}}
	for _, id := range skills {
		row.skills[id] = true
	}
	for _, id := range districts {
		row.districts[id] = true
	}
	s.masters[m.ID] = row
	return m.ID
}

func (s *Store) AddOrder(o model.Order) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		o.ID = s.nextID()
	}
	if o.Type == "" {
		o.Type = model.OrderTypeNormal
	}
	s.orders[o.ID] = &o
	return o.ID
}

func (s *Store) AddOffer(o model.Offer) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		o.ID = s.nextID()
	}
	s.offers = append(s.offers, &o)
	return o.ID
}

func (s *Store) AddCommission(c model.Commission) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.nextID()
	}
	s.commissions = append(s.commissions, &c)
	return c.ID
}

func (s *Store) AddStaff(st model.Staff, passwordHash string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == 0 {
		st.ID = s.nextID()
	}
	s.staff[st.ID] = &staffRow{Staff: st, hash: passwordHash}
	return st.ID
}

// FailNotifications makes every following enqueue fail with err.
func (s *Store) FailNotifications(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyErr = err
}

// Inspection helpers.

func (s *Store) Order(id int64) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.orders[id]
}

func (s *Store) Master(id int64) model.Master {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.masters[id].Master
}

func (s *Store) Offers(orderID int64) []model.Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Offer
	for _, of := range s.offers {
		if of.OrderID == orderID {
			out = append(out, *of)
		}
	}
	return out
}

func (s *Store) Notifications(event string) []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Notification
	for _, n := range s.notifications {
		if event == "" || n.Event == event {
			out = append(out, n)
		}
	}
	return out
}

func (s *Store) Commissions() []model.Commission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Commission, 0, len(s.commissions))
	for _, c := range s.commissions {
		out = append(out, *c)
	}
	return out
}

func (s *Store) Rewards() []model.ReferralReward {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ReferralReward(nil), s.rewards...)
}

// Settings.

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

// Candidates.

func (s *Store) SkillIDForCategory(ctx context.Context, category string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.categories[category]
	if !ok {
		return 0, errs.ErrUnmappedCategory
	}
	return id, nil
}

func (s *Store) ListCandidateMasters(ctx context.Context, q model.CandidateQuery) ([]model.CandidateSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.masters))
	for id := range s.masters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []model.CandidateSnapshot
	for _, id := range ids {
		m := s.masters[id]
		if m.CityID != q.CityID || m.IsBlocked {
			continue
		}
		snap := model.CandidateSnapshot{Master: m.Master}
		snap.MaxActive = q.DefaultLimit
		if m.MaxActiveOrdersOverride != nil {
			snap.MaxActive = *m.MaxActiveOrdersOverride
		}
		for _, o := range s.orders {
			if o.AssignedMasterID != nil && *o.AssignedMasterID == id && o.Status.Occupied() {
				snap.ActiveOrders++
			}
		}
		snap.AvgCheck = s.avgCheck(id, q.Since)
		snap.HasSkill = m.skills[q.SkillID]
		snap.CoversDistrict = q.District == nil || m.districts[*q.District]
		for _, of := range s.offers {
			if of.OrderID == q.OrderID && of.MasterID == id && of.State.Active() {
				snap.HasOpenOffer = true
			}
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *Store) avgCheck(masterID int64, since time.Time) decimal.Decimal {
	var sum decimal.Decimal
	n := 0
	for _, o := range s.orders {
		if o.AssignedMasterID == nil || *o.AssignedMasterID != masterID || !o.Status.PaymentEligible() || o.IsGuarantee() {
			continue
		}
		if o.CompletedAt == nil || o.CompletedAt.Before(since) {
			continue
		}
		sum = sum.Add(o.TotalSum)
		n++
	}
	if n == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(n)))
}

// Masters.

func (s *Store) GetMaster(ctx context.Context, id int64) (model.Master, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.masters[id]
	if !ok {
		return model.Master{}, errs.ErrMasterNotFound
	}
	return m.Master, nil
}

func (s *Store) MasterAverageCheck(ctx context.Context, masterID int64, since time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avgCheck(masterID, since), nil
}

// Staff.

func (s *Store) GetStaffByLogin(ctx context.Context, login string) (model.Staff, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.staff {
		if st.Login == login {
			return st.Staff, st.hash, nil
		}
	}
	return model.Staff{}, "", errs.ErrStaffNotFound
}

func (s *Store) GetStaffByID(ctx context.Context, id int64) (model.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.staff[id]
	if !ok {
		return model.Staff{}, errs.ErrStaffNotFound
	}
	return st.Staff, nil
}

// Outbox.

func (s *Store) EnqueueNotification(ctx context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notifyErr != nil {
		return s.notifyErr
	}
	s.notifications = append(s.notifications, n)
	return nil
}
