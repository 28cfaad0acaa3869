package usecase

import (
	"context"
	"testing"
	"time"

	"leadcall-service/internal/domain/entity"
	"leadcall-service/pkg/apperror"
)

func validLeadRequest() LeadRequest {
	return LeadRequest{
		Services:   []LeadServiceInput{{ServiceID: "svc-1", Quantity: 1}},
		Date:       "2026-03-12",
		Time:       "14:00",
		Address:    "12 MG Road",
		Pincode:    "560001",
		TotalPrice: 199,
		OTP:        "1234", // dev code passes the first-booking gate
	}
}

func TestRequestLeadOffersEligibleVendors(t *testing.T) {
	env := newTestEnv(t, eligibleVendor("vendor-1"), eligibleVendor("vendor-2"))

	result, err := env.matcher.RequestLead(context.Background(), "user-1", validLeadRequest())
	if err != nil {
		t.Fatalf("RequestLead: %v", err)
	}

	if result.Booking.Status != entity.StatusPendingAcceptance {
		t.Fatalf("status = %q, want pending_acceptance", result.Booking.Status)
	}
	if result.Booking.SubcategoryID != "sub-plumbing" {
		t.Fatalf("subcategory = %q, want derived from the first service", result.Booking.SubcategoryID)
	}
	if result.Offered != 2 {
		t.Fatalf("offered = %d, want 2", result.Offered)
	}

	p := waitForEvent(t, env.notifier, entity.EventLeadOffer)
	if p.to.Kind != entity.KindVendor {
		t.Fatalf("offer sent to %s, want a vendor", p.to.Key())
	}
	if _, leaked := p.event.Data["startOTP"]; leaked {
		t.Fatal("offer payload must not carry codes")
	}
}

func TestRequestLeadIneligibleVendorsFiltered(t *testing.T) {
	unverified := eligibleVendor("v-unverified")
	unverified.IsVerified = false

	suspended := eligibleVendor("v-suspended")
	suspended.IsSuspended = true

	wrongPin := eligibleVendor("v-wrong-pin")
	wrongPin.WorkPincodes = []string{"110011"}

	wrongSub := eligibleVendor("v-wrong-sub")
	wrongSub.SelectedSubcategories = []string{"sub-electrical"}

	expired := eligibleVendor("v-expired")
	expired.CreditPlan.ExpiryDate = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	incomplete := eligibleVendor("v-incomplete")
	incomplete.RegistrationStep = "KYC_PENDING"

	exhausted := eligibleVendor("v-exhausted")
	exhausted.CreditPlan.DailyLeadsCount = exhausted.CreditPlan.DailyLimit

	env := newTestEnv(t,
		eligibleVendor("v-good"),
		unverified, suspended, wrongPin, wrongSub, expired, incomplete, exhausted,
	)

	result, err := env.matcher.RequestLead(context.Background(), "user-1", validLeadRequest())
	if err != nil {
		t.Fatalf("RequestLead: %v", err)
	}
	if result.Offered != 1 {
		t.Fatalf("offered = %d, want only the fully eligible vendor", result.Offered)
	}
}

func TestRequestLeadNoVendorsStillCreatesBooking(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.matcher.RequestLead(context.Background(), "user-1", validLeadRequest())
	if err != nil {
		t.Fatalf("RequestLead: %v", err)
	}
	if result.Offered != 0 {
		t.Fatalf("offered = %d, want 0", result.Offered)
	}

	stored, _ := env.bookings.FindByKey(context.Background(), result.Booking.BookingID)
	if stored == nil || stored.Status != entity.StatusPendingAcceptance {
		t.Fatal("booking must persist as an open lead even with nobody to offer it to")
	}
}

func TestRequestLeadValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*LeadRequest)
	}{
		{"no services", func(r *LeadRequest) { r.Services = nil }},
		{"bad date", func(r *LeadRequest) { r.Date = "12/03/2026" }},
		{"bad time", func(r *LeadRequest) { r.Time = "2pm" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validLeadRequest()
			tc.mutate(&req)
			_, err := env.matcher.RequestLead(ctx, "user-1", req)
			if !apperror.IsKind(err, apperror.KindInvalid) {
				t.Fatalf("err = %v, want invalid", err)
			}
		})
	}
}

func TestRequestLeadUnknownService(t *testing.T) {
	env := newTestEnv(t)
	req := validLeadRequest()
	req.Services = []LeadServiceInput{{ServiceID: "svc-missing", Quantity: 1}}

	_, err := env.matcher.RequestLead(context.Background(), "user-1", req)
	if !apperror.IsKind(err, apperror.KindNotFound) {
		t.Fatalf("err = %v, want not-found", err)
	}
}

func TestRequestLeadAdminPricing(t *testing.T) {
	env := newTestEnv(t, eligibleVendor("vendor-1"))
	req := validLeadRequest()
	req.Services = []LeadServiceInput{
		{ServiceID: "svc-1", Quantity: 3}, // admin priced at 199
		{ServiceID: "svc-2"},              // not admin priced, zero quantity defaults to 1
	}

	result, err := env.matcher.RequestLead(context.Background(), "user-1", req)
	if err != nil {
		t.Fatalf("RequestLead: %v", err)
	}

	items := result.Booking.Services
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].FinalPrice != 597 || !items[0].IsPriceConfirmed {
		t.Fatalf("admin priced item = %+v, want 3 x 199 confirmed", items[0])
	}
	if items[1].Quantity != 1 || items[1].IsPriceConfirmed {
		t.Fatalf("unpriced item = %+v, want quantity 1, unconfirmed", items[1])
	}
}

func TestOfferConsumesQuota(t *testing.T) {
	env := newTestEnv(t, eligibleVendor("vendor-1"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		req := validLeadRequest()
		if _, err := env.matcher.RequestLead(ctx, "user-1", req); err != nil {
			t.Fatalf("RequestLead #%d: %v", i+1, err)
		}
	}

	if got := env.vendors.leadsCount("vendor-1"); got != 3 {
		t.Fatalf("dailyLeadsCount = %d, want one per offer", got)
	}
}

func TestQuotaExhaustionStopsOffers(t *testing.T) {
	v := eligibleVendor("vendor-1")
	v.CreditPlan.DailyLimit = 2
	env := newTestEnv(t, v)
	ctx := context.Background()

	var offered int
	for i := 0; i < 4; i++ {
		result, err := env.matcher.RequestLead(ctx, "user-1", validLeadRequest())
		if err != nil {
			t.Fatalf("RequestLead #%d: %v", i+1, err)
		}
		offered += result.Offered
	}

	if offered != 2 {
		t.Fatalf("total offers = %d, want capped at the daily limit", offered)
	}
}

func TestQuotaRollsOverOnNewDay(t *testing.T) {
	v := eligibleVendor("vendor-1")
	v.CreditPlan.DailyLimit = 1
	yesterday := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	v.CreditPlan.LastLeadResetDate = &yesterday
	v.CreditPlan.DailyLeadsCount = 1 // spent yesterday
	env := newTestEnv(t, v)

	result, err := env.matcher.RequestLead(context.Background(), "user-1", validLeadRequest())
	if err != nil {
		t.Fatalf("RequestLead: %v", err)
	}
	if result.Offered != 1 {
		t.Fatalf("offered = %d, yesterday's count must not block today's offer", result.Offered)
	}
	if got := env.vendors.leadsCount("vendor-1"); got != 1 {
		t.Fatalf("dailyLeadsCount = %d, want reset to 1", got)
	}
}

func TestRetrySearchSkipsExcludedVendors(t *testing.T) {
	env := newTestEnv(t, eligibleVendor("vendor-1"), eligibleVendor("vendor-2"))
	ctx := context.Background()

	result, err := env.matcher.RequestLead(ctx, "user-1", validLeadRequest())
	if err != nil {
		t.Fatalf("RequestLead: %v", err)
	}
	key := result.Booking.BookingID

	if _, err := env.lifecycle.RejectLead(ctx, "vendor-1", key); err != nil {
		t.Fatalf("RejectLead: %v", err)
	}
	if _, err := env.lifecycle.DeferLead(ctx, "vendor-2", key); err != nil {
		t.Fatalf("DeferLead: %v", err)
	}

	_, err = env.matcher.RetrySearch(ctx, "user-1", key)
	if !apperror.IsKind(err, apperror.KindUnavailable) {
		t.Fatalf("err = %v, want unavailable once everyone declined or deferred", err)
	}
}

func TestRetrySearchFindsNewVendors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.matcher.RequestLead(ctx, "user-1", validLeadRequest())
	if err != nil {
		t.Fatalf("RequestLead: %v", err)
	}

	// A vendor comes online after the initial empty search
	env.vendors.mu.Lock()
	env.vendors.vendors["vendor-late"] = eligibleVendor("vendor-late")
	env.vendors.mu.Unlock()

	search, err := env.matcher.RetrySearch(ctx, "user-1", result.Booking.BookingID)
	if err != nil {
		t.Fatalf("RetrySearch: %v", err)
	}
	if !search.Found || search.Count != 1 {
		t.Fatalf("search = %+v, want the late vendor found", search)
	}
}

func TestRetrySearchOnlyForOpenLeads(t *testing.T) {
	env := newTestEnv(t, eligibleVendor("vendor-1"))
	ctx := context.Background()

	result, err := env.matcher.RequestLead(ctx, "user-1", validLeadRequest())
	if err != nil {
		t.Fatalf("RequestLead: %v", err)
	}
	key := result.Booking.BookingID

	if _, err := env.lifecycle.AcceptLead(ctx, "vendor-1", key); err != nil {
		t.Fatalf("AcceptLead: %v", err)
	}

	if _, err := env.matcher.RetrySearch(ctx, "user-1", key); !apperror.IsKind(err, apperror.KindConflict) {
		t.Fatalf("err = %v, want conflict for an accepted booking", err)
	}
	if _, err := env.matcher.RetrySearch(ctx, "user-2", key); !apperror.IsKind(err, apperror.KindNotFound) {
		t.Fatalf("err = %v, want not-found for a foreign user", err)
	}
}

func TestFirstBookingRequiresOTP(t *testing.T) {
	env := newTestEnv(t, eligibleVendor("vendor-1"))
	ctx := context.Background()

	// No prior bookings and no OTP
	req := validLeadRequest()
	req.OTP = ""
	_, err := env.matcher.RequestLead(ctx, "user-1", req)
	if !apperror.IsKind(err, apperror.KindInvalid) {
		t.Fatalf("err = %v, want invalid without an OTP", err)
	}

	// Wrong OTP
	req.OTP = "9999"
	if _, err := env.matcher.RequestLead(ctx, "user-1", req); !apperror.IsKind(err, apperror.KindInvalid) {
		t.Fatalf("err = %v, want invalid for a wrong OTP", err)
	}

	// Cached OTP for the user's phone number
	env.otps.Set("otp:booking:9000000001", "4321", time.Minute)
	req.OTP = "4321"
	if _, err := env.matcher.RequestLead(ctx, "user-1", req); err != nil {
		t.Fatalf("RequestLead with cached OTP: %v", err)
	}

	// Second booking skips the gate entirely
	req.OTP = ""
	if _, err := env.matcher.RequestLead(ctx, "user-1", req); err != nil {
		t.Fatalf("second RequestLead: %v", err)
	}
}
