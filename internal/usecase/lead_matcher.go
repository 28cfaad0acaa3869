package usecase

import (
	"context"
	"fmt"
	"time"

	"leadcall-service/internal/domain/entity"
	"leadcall-service/internal/domain/repository"
	"leadcall-service/pkg/apperror"
	"leadcall-service/pkg/logger"
	"leadcall-service/pkg/metrics"
	"leadcall-service/pkg/utils"
)

// LeadServiceInput is one requested service line on an incoming lead
type LeadServiceInput struct {
	ServiceID string `json:"serviceId"`
	Quantity  int    `json:"quantity"`
}

// LeadRequest is the payload for creating a lead
type LeadRequest struct {
	Services   []LeadServiceInput `json:"services"`
	Date       string             `json:"date"`
	Time       string             `json:"time"`
	Address    string             `json:"address"`
	Latitude   float64            `json:"latitude"`
	Longitude  float64            `json:"longitude"`
	Pincode    string             `json:"pincode"`
	TotalPrice float64            `json:"totalPrice"`
	OTP        string             `json:"otp"`
}

// OfferResult is what the lead-request flow returns: the created booking and
// how many vendors were offered it. Zero offered means the lead stays open
// and the user should retry the search later.
type OfferResult struct {
	Booking *entity.Booking
	Offered int
}

// SearchResult reports a retried vendor search
type SearchResult struct {
	Found     bool   `json:"found"`
	Count     int    `json:"count"`
	BookingID string `json:"bookingID"`
}

// LeadMatcher owns the offer side of the engine: validating an incoming
// request, filtering eligible vendors, consuming their quota and fanning the
// offer out.
type LeadMatcher struct {
	bookingRepo repository.BookingRepository
	vendorRepo  repository.VendorRepository
	catalogRepo repository.CatalogRepository
	guard       *PolicyGuard
	broadcaster *Broadcaster
	logger      logger.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewLeadMatcher creates a new lead matcher
func NewLeadMatcher(
	bookingRepo repository.BookingRepository,
	vendorRepo repository.VendorRepository,
	catalogRepo repository.CatalogRepository,
	guard *PolicyGuard,
	broadcaster *Broadcaster,
	log logger.Logger,
	m *metrics.Metrics,
) *LeadMatcher {
	return &LeadMatcher{
		bookingRepo: bookingRepo,
		vendorRepo:  vendorRepo,
		catalogRepo: catalogRepo,
		guard:       guard,
		broadcaster: broadcaster,
		logger:      log,
		metrics:     m,
		now:         time.Now,
	}
}

// RequestLead validates and persists a new lead, then offers it to every
// eligible vendor. The booking is created even when nobody is available
// right now; the caller surfaces that condition and the user can retry.
func (m *LeadMatcher) RequestLead(ctx context.Context, userID string, req LeadRequest) (*OfferResult, error) {
	if len(req.Services) == 0 {
		return nil, apperror.Invalid("at least one service is required for booking")
	}

	scheduledDate, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, apperror.Invalid("invalid date format provided")
	}
	if _, err := utils.CombineDateTime(scheduledDate, req.Time); err != nil {
		return nil, apperror.Invalid("invalid time format provided")
	}

	if err := m.guard.VerifyFirstBooking(ctx, userID, req.OTP); err != nil {
		return nil, err
	}

	items, subcategoryID, err := m.resolveServices(ctx, req.Services)
	if err != nil {
		return nil, err
	}

	booking := &entity.Booking{
		ID:            utils.NewDocumentID(),
		BookingID:     utils.GenerateBookingID(),
		UserID:        userID,
		SubcategoryID: subcategoryID,
		Services:      items,
		Status:        entity.StatusPendingAcceptance,
		ScheduledDate: scheduledDate,
		ScheduledTime: req.Time,
		Location: entity.Location{
			Address:   req.Address,
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			Pincode:   req.Pincode,
		},
		Pricing: entity.Pricing{
			BasePrice:  req.TotalPrice,
			TotalPrice: req.TotalPrice,
		},
	}

	if err := m.bookingRepo.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}
	m.metrics.LeadsRequested.Inc()

	offered, err := m.offerLead(ctx, booking)
	if err != nil {
		// The booking exists; a failed search leaves it open for retry
		m.logger.Error("Vendor search failed after lead creation",
			"bookingID", booking.BookingID, "error", err)
		offered = 0
	}

	m.logger.Info("Lead created",
		"bookingID", booking.BookingID,
		"subcategory", subcategoryID,
		"pincode", req.Pincode,
		"offered", offered)

	return &OfferResult{Booking: booking, Offered: offered}, nil
}

// RetrySearch re-runs the vendor search for a still-unaccepted lead
func (m *LeadMatcher) RetrySearch(ctx context.Context, userID, key string) (*SearchResult, error) {
	booking, err := m.bookingRepo.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if booking == nil || booking.UserID != userID {
		return nil, apperror.NotFound("booking not found")
	}
	if booking.Status != entity.StatusPendingAcceptance {
		return nil, apperror.Conflict("search can only be retried for pending bookings")
	}

	offered, err := m.offerLead(ctx, booking)
	if err != nil {
		return nil, err
	}
	if offered == 0 {
		return nil, apperror.Unavailable("no vendors available for this request right now")
	}

	return &SearchResult{
		Found:     true,
		Count:     offered,
		BookingID: booking.BookingID,
	}, nil
}

// resolveServices prices the requested line items against the catalog and
// derives the lead's subcategory from the first service.
func (m *LeadMatcher) resolveServices(ctx context.Context, inputs []LeadServiceInput) ([]entity.ServiceItem, string, error) {
	items := make([]entity.ServiceItem, 0, len(inputs))
	subcategoryID := ""

	for _, in := range inputs {
		svc, err := m.catalogRepo.GetService(ctx, in.ServiceID)
		if err != nil {
			return nil, "", fmt.Errorf("failed to look up service: %w", err)
		}
		if svc == nil {
			return nil, "", apperror.NotFound("service with ID %s not found", in.ServiceID)
		}

		quantity := in.Quantity
		if quantity <= 0 {
			quantity = 1
		}

		item := entity.ServiceItem{
			ServiceID: svc.ID,
			Quantity:  quantity,
		}
		if svc.IsAdminPriced {
			item.AdminPrice = svc.AdminPrice
			item.FinalPrice = svc.AdminPrice * float64(quantity)
			item.IsPriceConfirmed = true
		}
		items = append(items, item)

		if subcategoryID == "" {
			subcategoryID = svc.SubcategoryID
		}
	}

	return items, subcategoryID, nil
}

// offerLead finds the candidate set, consumes each candidate's quota and
// broadcasts the offer. Quota is spent at offer time, not at acceptance:
// being shown the lead is what costs a vendor one of their daily leads.
func (m *LeadMatcher) offerLead(ctx context.Context, booking *entity.Booking) (int, error) {
	started := m.now()

	candidates, err := m.vendorRepo.FindCandidates(
		ctx,
		booking.SubcategoryID,
		booking.Location.Pincode,
		booking.ExcludedVendors(),
		started,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to find candidates: %w", err)
	}
	if len(candidates) == 0 {
		m.logger.Info("No vendors found for booking", "bookingID", booking.BookingID)
		return 0, nil
	}

	event := entity.NewEvent(entity.EventLeadOffer, booking.BookingID, map[string]interface{}{
		"subcategory":   booking.SubcategoryID,
		"pincode":       booking.Location.Pincode,
		"scheduledDate": booking.ScheduledDate,
		"scheduledTime": booking.ScheduledTime,
		"totalPrice":    booking.Pricing.TotalPrice,
	})

	for _, vendor := range candidates {
		// Applied per vendor, never transactionally across the set: one
		// failed counter must not block the other offers.
		if err := m.vendorRepo.ConsumeQuota(ctx, vendor.ID, started); err != nil {
			m.logger.Error("Failed to consume vendor quota",
				"vendorID", vendor.ID, "bookingID", booking.BookingID, "error", err)
		}

		m.broadcaster.Broadcast(entity.Recipient{ID: vendor.ID, Kind: entity.KindVendor}, event)
		m.metrics.OffersBroadcast.Inc()
	}

	m.metrics.MatchingTime.Observe(time.Since(started).Seconds())

	return len(candidates), nil
}
