package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadcall-service/internal/domain/entity"
	"leadcall-service/internal/domain/repository"
	"leadcall-service/pkg/apperror"
	"leadcall-service/pkg/logger"
	"leadcall-service/pkg/metrics"
	"leadcall-service/pkg/utils"
)

// LifecycleConfig holds the lifecycle's tunable values
type LifecycleConfig struct {
	TravelCharge    float64
	RescheduleLimit int
}

// BookingLifecycle drives a booking through its state machine. Every
// transition goes through a conditional update whose precondition lives in
// the store's filter, so of any set of racing callers at most one applies;
// the rest are classified into NotFound/Forbidden/Conflict by re-reading the
// document.
type BookingLifecycle struct {
	bookingRepo repository.BookingRepository
	guard       *PolicyGuard
	broadcaster *Broadcaster
	cfg         LifecycleConfig
	logger      logger.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewBookingLifecycle creates a new booking lifecycle
func NewBookingLifecycle(
	bookingRepo repository.BookingRepository,
	guard *PolicyGuard,
	broadcaster *Broadcaster,
	cfg LifecycleConfig,
	log logger.Logger,
	m *metrics.Metrics,
) *BookingLifecycle {
	return &BookingLifecycle{
		bookingRepo: bookingRepo,
		guard:       guard,
		broadcaster: broadcaster,
		cfg:         cfg,
		logger:      log,
		metrics:     m,
		now:         time.Now,
	}
}

// AcceptLead resolves the acceptance race. The store's conditional update is
// the single source of truth for who won; the winner gets the booking with
// freshly generated start and completion codes, losers get a conflict.
func (l *BookingLifecycle) AcceptLead(ctx context.Context, vendorID, key string) (*entity.Booking, error) {
	startOTP := utils.GenerateNumericOTP()
	completionOTP := utils.GenerateNumericOTP()

	booking, err := l.bookingRepo.AcceptLead(ctx, key, vendorID, startOTP, completionOTP)
	if err != nil {
		if errors.Is(err, repository.ErrNoMatch) {
			l.metrics.AcceptConflicts.Inc()
			return nil, l.classify(ctx, key, func(b *entity.Booking) error {
				if b.Status != entity.StatusPendingAcceptance {
					return apperror.Conflict("lead already accepted by another vendor")
				}
				return apperror.Conflict("unable to accept lead")
			})
		}
		return nil, fmt.Errorf("failed to accept lead: %w", err)
	}

	l.metrics.AcceptWins.Inc()
	l.metrics.Transitions.WithLabelValues(entity.StatusPending).Inc()
	l.logger.Info("Lead accepted", "bookingID", booking.BookingID, "vendorID", vendorID)

	// The codes are relayed to the requesting user, never to the vendor
	l.notifyUser(booking, entity.EventLeadAccepted, map[string]interface{}{
		"vendor":   vendorID,
		"status":   booking.Status,
		"startOTP": booking.OTP.StartOTP,
	})

	return booking, nil
}

// RejectLead records an explicit decline; the lead stays open to others
func (l *BookingLifecycle) RejectLead(ctx context.Context, vendorID, key string) (*entity.Booking, error) {
	booking, err := l.bookingRepo.AddRejectedVendor(ctx, key, vendorID)
	if err != nil {
		if errors.Is(err, repository.ErrNoMatch) {
			return nil, l.classify(ctx, key, func(b *entity.Booking) error {
				return apperror.Conflict("lead is no longer open, booking is %s", b.Status)
			})
		}
		return nil, fmt.Errorf("failed to reject lead: %w", err)
	}

	l.logger.Info("Lead rejected", "bookingID", booking.BookingID, "vendorID", vendorID)
	return booking, nil
}

// DeferLead records a "later" response; the vendor may still come back
func (l *BookingLifecycle) DeferLead(ctx context.Context, vendorID, key string) (*entity.Booking, error) {
	booking, err := l.bookingRepo.AddLaterVendor(ctx, key, vendorID)
	if err != nil {
		if errors.Is(err, repository.ErrNoMatch) {
			return nil, l.classify(ctx, key, func(b *entity.Booking) error {
				return apperror.Conflict("lead is no longer open, booking is %s", b.Status)
			})
		}
		return nil, fmt.Errorf("failed to defer lead: %w", err)
	}

	l.logger.Info("Lead deferred", "bookingID", booking.BookingID, "vendorID", vendorID)
	return booking, nil
}

// MarkOnTheWay moves pending -> on_the_way
func (l *BookingLifecycle) MarkOnTheWay(ctx context.Context, vendorID, key string) (*entity.Booking, error) {
	booking, err := l.bookingRepo.MarkOnTheWay(ctx, key, vendorID)
	if err != nil {
		if errors.Is(err, repository.ErrNoMatch) {
			return nil, l.classifyStaged(ctx, key, vendorID, entity.StatusPending)
		}
		return nil, fmt.Errorf("failed to mark on the way: %w", err)
	}

	l.afterTransition(booking, nil)
	return booking, nil
}

// MarkArrived moves on_the_way -> arrived and applies the travel charge
func (l *BookingLifecycle) MarkArrived(ctx context.Context, vendorID, key string) (*entity.Booking, error) {
	booking, err := l.bookingRepo.MarkArrived(ctx, key, vendorID, l.now(), l.cfg.TravelCharge)
	if err != nil {
		if errors.Is(err, repository.ErrNoMatch) {
			return nil, l.classifyStaged(ctx, key, vendorID, entity.StatusOnTheWay)
		}
		return nil, fmt.Errorf("failed to mark arrived: %w", err)
	}

	l.afterTransition(booking, map[string]interface{}{
		"travelCharge": booking.Pricing.TravelCharge,
	})
	return booking, nil
}

// StartWork moves arrived -> ongoing, gated by the start code. A wrong code
// fails without touching the document and without invalidating the code.
func (l *BookingLifecycle) StartWork(ctx context.Context, vendorID, key, code string) (*entity.Booking, error) {
	booking, err := l.bookingRepo.StartWork(ctx, key, vendorID, code, l.now())
	if err != nil {
		if errors.Is(err, repository.ErrNoMatch) {
			return nil, l.classify(ctx, key, func(b *entity.Booking) error {
				if b.VendorID != vendorID {
					return apperror.Forbidden("booking is assigned to another vendor")
				}
				if b.Status != entity.StatusArrived {
					return apperror.Conflict("cannot start work while booking is %s", b.Status)
				}
				return apperror.Conflict("invalid start code")
			})
		}
		return nil, fmt.Errorf("failed to start work: %w", err)
	}

	l.afterTransition(booking, nil)
	return booking, nil
}

// RequestCompletionCode refreshes the completion code and relays it to the
// requesting user. Idempotent as far as booking state goes.
func (l *BookingLifecycle) RequestCompletionCode(ctx context.Context, vendorID, key string) (*entity.Booking, error) {
	code := utils.GenerateNumericOTP()

	booking, err := l.bookingRepo.SetCompletionCode(ctx, key, vendorID, code)
	if err != nil {
		if errors.Is(err, repository.ErrNoMatch) {
			return nil, l.classifyStaged(ctx, key, vendorID, entity.StatusOngoing)
		}
		return nil, fmt.Errorf("failed to set completion code: %w", err)
	}

	l.notifyUser(booking, entity.EventCompletionCode, map[string]interface{}{
		"completionOTP": booking.OTP.CompletionOTP,
	})
	return booking, nil
}

// CompleteWork moves ongoing -> completed, gated by the completion code, and
// records how the job was paid.
func (l *BookingLifecycle) CompleteWork(ctx context.Context, vendorID, key, code, paymentMethod string) (*entity.Booking, error) {
	if !entity.ValidPaymentMethod(paymentMethod) {
		return nil, apperror.Invalid("payment method must be one of cash, upi, other")
	}

	booking, err := l.bookingRepo.CompleteWork(ctx, key, vendorID, code, paymentMethod, l.now())
	if err != nil {
		if errors.Is(err, repository.ErrNoMatch) {
			return nil, l.classify(ctx, key, func(b *entity.Booking) error {
				if b.VendorID != vendorID {
					return apperror.Forbidden("booking is assigned to another vendor")
				}
				if b.Status != entity.StatusOngoing {
					return apperror.Conflict("cannot complete work while booking is %s", b.Status)
				}
				return apperror.Conflict("invalid completion code")
			})
		}
		return nil, fmt.Errorf("failed to complete work: %w", err)
	}

	l.afterTransition(booking, map[string]interface{}{
		"paymentMethod": paymentMethod,
	})
	return booking, nil
}

// Cancel cancels a booking on the user's behalf, subject to the lock window
func (l *BookingLifecycle) Cancel(ctx context.Context, userID, key, reason string) (*entity.Booking, error) {
	current, err := l.bookingRepo.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if current == nil || current.UserID != userID {
		return nil, apperror.NotFound("booking not found")
	}
	if current.Status == entity.StatusOngoing {
		return nil, apperror.Conflict("cannot cancel while work is in progress")
	}
	if err := l.guard.CheckCancellable(current); err != nil {
		return nil, err
	}

	record := entity.Cancellation{
		CancelledBy: entity.CancelledByUser,
		Reason:      reason,
		CancelledAt: l.now(),
	}

	booking, err := l.bookingRepo.Cancel(ctx, key, userID, record)
	if err != nil {
		if errors.Is(err, repository.ErrNoMatch) {
			// Lost a race with another transition since the check above
			return nil, l.classify(ctx, key, func(b *entity.Booking) error {
				return apperror.Conflict("booking is already %s", b.Status)
			})
		}
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	l.metrics.Transitions.WithLabelValues(entity.StatusCancelled).Inc()
	l.logger.Info("Booking cancelled", "bookingID", booking.BookingID, "reason", reason)

	if booking.VendorID != "" {
		l.broadcaster.Broadcast(
			entity.Recipient{ID: booking.VendorID, Kind: entity.KindVendor},
			entity.NewEvent(entity.EventBookingCancelled, booking.BookingID, map[string]interface{}{
				"reason": reason,
			}),
		)
	}

	return booking, nil
}

// Reschedule replaces the scheduled date/time, bounded by the policy limit
func (l *BookingLifecycle) Reschedule(ctx context.Context, userID, key, dateStr, timeStr string) (*entity.Booking, error) {
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, apperror.Invalid("invalid date format provided")
	}
	if _, err := utils.CombineDateTime(date, timeStr); err != nil {
		return nil, apperror.Invalid("invalid time format provided")
	}

	booking, err := l.bookingRepo.Reschedule(ctx, key, userID, date, timeStr, l.cfg.RescheduleLimit)
	if err != nil {
		if errors.Is(err, repository.ErrNoMatch) {
			return nil, l.classify(ctx, key, func(b *entity.Booking) error {
				if b.UserID != userID {
					return apperror.NotFound("booking not found")
				}
				if err := l.guard.CheckReschedulable(b); err != nil {
					return err
				}
				return apperror.Conflict("cannot reschedule while booking is %s", b.Status)
			})
		}
		return nil, fmt.Errorf("failed to reschedule booking: %w", err)
	}

	l.logger.Info("Booking rescheduled",
		"bookingID", booking.BookingID,
		"date", dateStr,
		"time", timeStr,
		"rescheduleCount", booking.RescheduleCount)

	if booking.VendorID != "" {
		l.broadcaster.Broadcast(
			entity.Recipient{ID: booking.VendorID, Kind: entity.KindVendor},
			entity.NewEvent(entity.EventBookingRescheduled, booking.BookingID, map[string]interface{}{
				"scheduledDate": dateStr,
				"scheduledTime": timeStr,
			}),
		)
	}

	return booking, nil
}

// CategorizedBookings groups a party's bookings by lifecycle phase
type CategorizedBookings struct {
	Pending   []*entity.Booking `json:"pending"`
	Active    []*entity.Booking `json:"active"`
	Completed []*entity.Booking `json:"completed"`
	Cancelled []*entity.Booking `json:"cancelled"`
}

// ListBookings returns the caller's bookings grouped by phase
func (l *BookingLifecycle) ListBookings(ctx context.Context, principal entity.Principal) (*CategorizedBookings, error) {
	var bookings []*entity.Booking
	var err error

	if principal.Kind == entity.KindVendor {
		bookings, err = l.bookingRepo.ListByVendor(ctx, principal.ID)
	} else {
		bookings, err = l.bookingRepo.ListByUser(ctx, principal.ID)
	}
	if err != nil {
		return nil, err
	}

	out := &CategorizedBookings{
		Pending:   []*entity.Booking{},
		Active:    []*entity.Booking{},
		Completed: []*entity.Booking{},
		Cancelled: []*entity.Booking{},
	}
	for _, b := range bookings {
		switch b.Status {
		case entity.StatusPendingAcceptance, entity.StatusPending:
			out.Pending = append(out.Pending, b)
		case entity.StatusOnTheWay, entity.StatusArrived, entity.StatusOngoing:
			out.Active = append(out.Active, b)
		case entity.StatusCompleted:
			out.Completed = append(out.Completed, b)
		case entity.StatusCancelled:
			out.Cancelled = append(out.Cancelled, b)
		}
	}

	return out, nil
}

// GetBooking returns a booking visible to the caller
func (l *BookingLifecycle) GetBooking(ctx context.Context, principal entity.Principal, key string) (*entity.Booking, error) {
	booking, err := l.bookingRepo.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, apperror.NotFound("booking not found")
	}

	switch principal.Kind {
	case entity.KindAdmin:
	case entity.KindVendor:
		if booking.VendorID != principal.ID {
			return nil, apperror.Forbidden("booking is assigned to another vendor")
		}
	default:
		if booking.UserID != principal.ID {
			return nil, apperror.NotFound("booking not found")
		}
	}

	return booking, nil
}

// classify turns a failed conditional update into a precise domain error by
// re-reading the document.
func (l *BookingLifecycle) classify(ctx context.Context, key string, check func(*entity.Booking) error) error {
	booking, err := l.bookingRepo.FindByKey(ctx, key)
	if err != nil {
		return err
	}
	if booking == nil {
		return apperror.NotFound("booking not found")
	}
	return check(booking)
}

// classifyStaged is the common classification for plain staged transitions
func (l *BookingLifecycle) classifyStaged(ctx context.Context, key, vendorID, expected string) error {
	return l.classify(ctx, key, func(b *entity.Booking) error {
		if b.VendorID != vendorID {
			return apperror.Forbidden("booking is assigned to another vendor")
		}
		return apperror.Conflict("booking is %s, expected %s", b.Status, expected)
	})
}

// afterTransition records metrics and pushes a status event to the user
func (l *BookingLifecycle) afterTransition(booking *entity.Booking, extra map[string]interface{}) {
	l.metrics.Transitions.WithLabelValues(booking.Status).Inc()
	l.logger.Info("Booking transitioned",
		"bookingID", booking.BookingID, "status", booking.Status)

	data := map[string]interface{}{"status": booking.Status}
	for k, v := range extra {
		data[k] = v
	}
	l.notifyUser(booking, entity.EventBookingStatus, data)
}

func (l *BookingLifecycle) notifyUser(booking *entity.Booking, eventType string, data map[string]interface{}) {
	l.broadcaster.Broadcast(
		entity.Recipient{ID: booking.UserID, Kind: entity.KindUser},
		entity.NewEvent(eventType, booking.BookingID, data),
	)
}
