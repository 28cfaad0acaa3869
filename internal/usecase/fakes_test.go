package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"leadcall-service/internal/domain/entity"
	"leadcall-service/internal/domain/repository"
	"leadcall-service/internal/infrastructure/otpcache"
	"leadcall-service/pkg/logger"
	"leadcall-service/pkg/metrics"
)

// Prometheus collectors register globally, so the whole test binary shares
// one set.
var testMetrics = metrics.NewMetrics("leadcall_test")

// fakeBookingRepo is an in-memory BookingRepository whose conditional updates
// mirror the store's filters: check and mutate under one lock, ErrNoMatch
// when the precondition fails.
type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[string]*entity.Booking
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[string]*entity.Booking)}
}

func (r *fakeBookingRepo) find(key string) *entity.Booking {
	if b, ok := r.bookings[key]; ok {
		return b
	}
	for _, b := range r.bookings {
		if b.BookingID == key {
			return b
		}
	}
	return nil
}

func clone(b *entity.Booking) *entity.Booking {
	out := *b
	out.Services = append([]entity.ServiceItem(nil), b.Services...)
	out.RejectedVendors = append([]string(nil), b.RejectedVendors...)
	out.LaterVendors = append([]string(nil), b.LaterVendors...)
	if b.Cancellation != nil {
		c := *b.Cancellation
		out.Cancellation = &c
	}
	return &out
}

func (r *fakeBookingRepo) Create(ctx context.Context, booking *entity.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	if booking.Payment.Status == "" {
		booking.Payment.Status = entity.PaymentStatusPending
	}
	r.bookings[booking.ID] = clone(booking)
	return nil
}

func (r *fakeBookingRepo) FindByKey(ctx context.Context, key string) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.find(key)
	if b == nil {
		return nil, nil
	}
	return clone(b), nil
}

func (r *fakeBookingRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, b := range r.bookings {
		if b.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *fakeBookingRepo) ListByUser(ctx context.Context, userID string) ([]*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.bookings {
		if b.UserID == userID {
			out = append(out, clone(b))
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) ListByVendor(ctx context.Context, vendorID string) ([]*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.bookings {
		if b.VendorID == vendorID {
			out = append(out, clone(b))
		}
	}
	return out, nil
}

// update applies mutate to the matched booking iff match holds, under the
// lock, returning the post-image.
func (r *fakeBookingRepo) update(key string, match func(*entity.Booking) bool, mutate func(*entity.Booking)) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.find(key)
	if b == nil || !match(b) {
		return nil, repository.ErrNoMatch
	}
	mutate(b)
	b.UpdatedAt = time.Now()
	return clone(b), nil
}

func (r *fakeBookingRepo) AcceptLead(ctx context.Context, key, vendorID, startOTP, completionOTP string) (*entity.Booking, error) {
	return r.update(key,
		func(b *entity.Booking) bool { return b.Status == entity.StatusPendingAcceptance },
		func(b *entity.Booking) {
			b.Status = entity.StatusPending
			b.VendorID = vendorID
			b.OTP.StartOTP = startOTP
			b.OTP.CompletionOTP = completionOTP
		})
}

func (r *fakeBookingRepo) AddRejectedVendor(ctx context.Context, key, vendorID string) (*entity.Booking, error) {
	return r.update(key,
		func(b *entity.Booking) bool { return b.Status == entity.StatusPendingAcceptance },
		func(b *entity.Booking) {
			b.RejectedVendors = addToSet(b.RejectedVendors, vendorID)
			b.LaterVendors = removeFrom(b.LaterVendors, vendorID)
		})
}

func (r *fakeBookingRepo) AddLaterVendor(ctx context.Context, key, vendorID string) (*entity.Booking, error) {
	return r.update(key,
		func(b *entity.Booking) bool { return b.Status == entity.StatusPendingAcceptance },
		func(b *entity.Booking) {
			b.LaterVendors = addToSet(b.LaterVendors, vendorID)
			b.RejectedVendors = removeFrom(b.RejectedVendors, vendorID)
		})
}

func (r *fakeBookingRepo) MarkOnTheWay(ctx context.Context, key, vendorID string) (*entity.Booking, error) {
	return r.update(key,
		func(b *entity.Booking) bool {
			return b.Status == entity.StatusPending && b.VendorID == vendorID
		},
		func(b *entity.Booking) { b.Status = entity.StatusOnTheWay })
}

func (r *fakeBookingRepo) MarkArrived(ctx context.Context, key, vendorID string, at time.Time, travelCharge float64) (*entity.Booking, error) {
	return r.update(key,
		func(b *entity.Booking) bool {
			return b.Status == entity.StatusOnTheWay && b.VendorID == vendorID
		},
		func(b *entity.Booking) {
			b.Status = entity.StatusArrived
			b.VendorArrivedAt = &at
			b.Pricing.TravelCharge = travelCharge
			b.Pricing.TotalPrice += travelCharge
		})
}

func (r *fakeBookingRepo) StartWork(ctx context.Context, key, vendorID, code string, at time.Time) (*entity.Booking, error) {
	return r.update(key,
		func(b *entity.Booking) bool {
			return b.Status == entity.StatusArrived && b.VendorID == vendorID && b.OTP.StartOTP == code
		},
		func(b *entity.Booking) {
			b.Status = entity.StatusOngoing
			b.WorkStartedAt = &at
		})
}

func (r *fakeBookingRepo) SetCompletionCode(ctx context.Context, key, vendorID, code string) (*entity.Booking, error) {
	return r.update(key,
		func(b *entity.Booking) bool {
			return b.Status == entity.StatusOngoing && b.VendorID == vendorID
		},
		func(b *entity.Booking) { b.OTP.CompletionOTP = code })
}

func (r *fakeBookingRepo) CompleteWork(ctx context.Context, key, vendorID, code, paymentMethod string, at time.Time) (*entity.Booking, error) {
	return r.update(key,
		func(b *entity.Booking) bool {
			return b.Status == entity.StatusOngoing && b.VendorID == vendorID && b.OTP.CompletionOTP == code
		},
		func(b *entity.Booking) {
			b.Status = entity.StatusCompleted
			b.WorkCompletedAt = &at
			b.Payment.Method = paymentMethod
			b.Payment.Status = entity.PaymentStatusCompleted
		})
}

func (r *fakeBookingRepo) Cancel(ctx context.Context, key, userID string, record entity.Cancellation) (*entity.Booking, error) {
	return r.update(key,
		func(b *entity.Booking) bool {
			return b.UserID == userID && contains(entity.CancellableStatuses, b.Status)
		},
		func(b *entity.Booking) {
			b.Status = entity.StatusCancelled
			rec := record
			b.Cancellation = &rec
			b.CancelCount++
		})
}

func (r *fakeBookingRepo) Reschedule(ctx context.Context, key, userID string, date time.Time, timeStr string, limit int) (*entity.Booking, error) {
	return r.update(key,
		func(b *entity.Booking) bool {
			return b.UserID == userID &&
				contains(entity.ReschedulableStatuses, b.Status) &&
				b.RescheduleCount < limit
		},
		func(b *entity.Booking) {
			b.ScheduledDate = date
			b.ScheduledTime = timeStr
			b.RescheduleCount++
		})
}

func addToSet(set []string, v string) []string {
	if contains(set, v) {
		return set
	}
	return append(set, v)
}

func removeFrom(set []string, v string) []string {
	out := set[:0]
	for _, s := range set {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// fakeVendorRepo applies the same eligibility predicates as the store
type fakeVendorRepo struct {
	mu      sync.Mutex
	vendors map[string]*entity.Vendor
}

func newFakeVendorRepo(vendors ...*entity.Vendor) *fakeVendorRepo {
	r := &fakeVendorRepo{vendors: make(map[string]*entity.Vendor)}
	for _, v := range vendors {
		r.vendors[v.ID] = v
	}
	return r
}

func (r *fakeVendorRepo) FindByID(ctx context.Context, id string) (*entity.Vendor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vendors[id]
	if !ok {
		return nil, nil
	}
	out := *v
	return &out, nil
}

func (r *fakeVendorRepo) FindCandidates(ctx context.Context, subcategoryID, pincode string, excluded []string, now time.Time) ([]*entity.Vendor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Vendor
	for _, v := range r.vendors {
		if !v.IsVerified || !v.IsActive || v.IsSuspended || v.IsBlocked {
			continue
		}
		if v.RegistrationStep != entity.RegistrationCompleted {
			continue
		}
		if !contains(v.SelectedSubcategories, subcategoryID) || !contains(v.WorkPincodes, pincode) {
			continue
		}
		if !v.PlanActive(now) || !v.UnderQuota(now) {
			continue
		}
		if contains(excluded, v.ID) {
			continue
		}
		cp := *v
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeVendorRepo) ConsumeQuota(ctx context.Context, vendorID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vendors[vendorID]
	if !ok {
		return repository.ErrNoMatch
	}
	if v.CreditPlan.LastLeadResetDate == nil || !sameDay(*v.CreditPlan.LastLeadResetDate, now) {
		reset := now
		v.CreditPlan.LastLeadResetDate = &reset
		v.CreditPlan.DailyLeadsCount = 1
		return nil
	}
	v.CreditPlan.DailyLeadsCount++
	return nil
}

func (r *fakeVendorRepo) leadsCount(vendorID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vendors[vendorID].CreditPlan.DailyLeadsCount
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*entity.User
}

func newFakeUserRepo(users ...*entity.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*entity.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

func (r *fakeUserRepo) MarkVerified(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.IsVerified = true
	}
	return nil
}

type fakeCatalogRepo struct {
	services map[string]*entity.CatalogService
}

func (r *fakeCatalogRepo) GetService(ctx context.Context, id string) (*entity.CatalogService, error) {
	return r.services[id], nil
}

// fakeNotifier records every delivered event. Broadcast is asynchronous, so
// assertions go through waitForEvent.
type fakeNotifier struct {
	mu     sync.Mutex
	events []pushedEvent
}

type pushedEvent struct {
	to    entity.Recipient
	event *entity.Event
}

func (n *fakeNotifier) Name() string { return "fake" }

func (n *fakeNotifier) Push(ctx context.Context, to entity.Recipient, event *entity.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, pushedEvent{to: to, event: event})
	return nil
}

func (n *fakeNotifier) pushed() []pushedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]pushedEvent(nil), n.events...)
}

func waitForEvent(t *testing.T, n *fakeNotifier, eventType string) *pushedEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, p := range n.pushed() {
			if p.event.Type == eventType {
				return &p
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %q event delivered", eventType)
	return nil
}

// testEnv bundles the engine with its fakes, frozen at a fixed clock
type testEnv struct {
	bookings  *fakeBookingRepo
	vendors   *fakeVendorRepo
	users     *fakeUserRepo
	notifier  *fakeNotifier
	otps      *otpcache.Cache
	guard     *PolicyGuard
	matcher   *LeadMatcher
	lifecycle *BookingLifecycle
	now       time.Time
}

func defaultPolicy() PolicyConfig {
	return PolicyConfig{
		RescheduleLimit:      2,
		CancellationLockMins: 60,
		GracePeriodMins:      30,
		FirstBookingDevOTP:   "1234",
	}
}

func newTestEnv(t *testing.T, vendors ...*entity.Vendor) *testEnv {
	t.Helper()

	env := &testEnv{
		bookings: newFakeBookingRepo(),
		vendors:  newFakeVendorRepo(vendors...),
		users:    newFakeUserRepo(&entity.User{ID: "user-1", PhoneNumber: "9000000001", IsVerified: true}),
		notifier: &fakeNotifier{},
		otps:     otpcache.NewCache(),
		now:      time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}

	log := logger.NewNop()
	broadcaster := NewBroadcaster([]repository.Notifier{env.notifier}, log, testMetrics)

	env.guard = NewPolicyGuard(env.bookings, env.users, env.otps, defaultPolicy(), log)
	env.guard.now = func() time.Time { return env.now }

	catalog := &fakeCatalogRepo{services: map[string]*entity.CatalogService{
		"svc-1": {ID: "svc-1", SubcategoryID: "sub-plumbing", Title: "Tap Repair", AdminPrice: 199, IsAdminPriced: true},
		"svc-2": {ID: "svc-2", SubcategoryID: "sub-plumbing", Title: "Pipe Inspection"},
	}}

	env.matcher = NewLeadMatcher(env.bookings, env.vendors, catalog, env.guard, broadcaster, log, testMetrics)
	env.matcher.now = func() time.Time { return env.now }

	env.lifecycle = NewBookingLifecycle(env.bookings, env.guard, broadcaster, LifecycleConfig{
		TravelCharge:    50,
		RescheduleLimit: 2,
	}, log, testMetrics)
	env.lifecycle.now = func() time.Time { return env.now }

	return env
}

// eligibleVendor builds a vendor who passes every candidate predicate
func eligibleVendor(id string) *entity.Vendor {
	reset := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	return &entity.Vendor{
		ID:                    id,
		VendorID:              "V-" + id,
		Name:                  "Vendor " + id,
		WorkPincodes:          []string{"560001"},
		SelectedSubcategories: []string{"sub-plumbing"},
		RegistrationStep:      entity.RegistrationCompleted,
		IsVerified:            true,
		IsActive:              true,
		CreditPlan: entity.CreditPlan{
			ExpiryDate:        time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
			DailyLimit:        5,
			DailyLeadsCount:   0,
			LastLeadResetDate: &reset,
		},
	}
}

// seedBooking inserts a booking directly, bypassing the matcher
func (env *testEnv) seedBooking(t *testing.T, b *entity.Booking) *entity.Booking {
	t.Helper()
	if b.ID == "" {
		b.ID = "bk-" + b.BookingID
	}
	if err := env.bookings.Create(context.Background(), b); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	return b
}

func pendingLead(user string) *entity.Booking {
	return &entity.Booking{
		BookingID:     "B100001AA",
		UserID:        user,
		SubcategoryID: "sub-plumbing",
		Status:        entity.StatusPendingAcceptance,
		ScheduledDate: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		ScheduledTime: "14:00",
		Location:      entity.Location{Address: "12 MG Road", Pincode: "560001"},
		Pricing:       entity.Pricing{BasePrice: 199, TotalPrice: 199},
	}
}
