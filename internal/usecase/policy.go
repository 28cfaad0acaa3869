package usecase

import (
	"context"
	"fmt"
	"time"

	"leadcall-service/internal/domain/entity"
	"leadcall-service/internal/domain/repository"
	"leadcall-service/internal/infrastructure/otpcache"
	"leadcall-service/pkg/apperror"
	"leadcall-service/pkg/logger"
	"leadcall-service/pkg/utils"
)

// PolicyConfig holds the tunable policy knobs
type PolicyConfig struct {
	RescheduleLimit      int
	CancellationLockMins int
	GracePeriodMins      int
	FirstBookingDevOTP   string
}

// PolicyGuard enforces reschedule limits, the cancellation lock window and
// the first-booking verification gate.
type PolicyGuard struct {
	bookingRepo repository.BookingRepository
	userRepo    repository.UserRepository
	otps        *otpcache.Cache
	cfg         PolicyConfig
	logger      logger.Logger
	now         func() time.Time
}

// NewPolicyGuard creates a new policy guard
func NewPolicyGuard(
	bookingRepo repository.BookingRepository,
	userRepo repository.UserRepository,
	otps *otpcache.Cache,
	cfg PolicyConfig,
	log logger.Logger,
) *PolicyGuard {
	return &PolicyGuard{
		bookingRepo: bookingRepo,
		userRepo:    userRepo,
		otps:        otps,
		cfg:         cfg,
		logger:      log,
		now:         time.Now,
	}
}

// CheckCancellable rejects cancellation inside the lock window. Past the
// scheduled time the vendor may still be mid-arrival, so cancellation stays
// locked for the grace period, then reopens for good (cleanup path).
func (g *PolicyGuard) CheckCancellable(booking *entity.Booking) error {
	if booking.IsTerminal() {
		return apperror.Conflict("booking is already %s", booking.Status)
	}

	scheduledAt, err := utils.CombineDateTime(booking.ScheduledDate, booking.ScheduledTime)
	if err != nil {
		// An unparseable schedule must not trap the booking forever
		g.logger.Warn("Unparseable schedule on booking, allowing cancellation",
			"bookingID", booking.BookingID, "error", err)
		return nil
	}

	now := g.now()
	if now.Before(scheduledAt) {
		remaining := utils.MinutesUntil(now, scheduledAt)
		if remaining < g.cfg.CancellationLockMins {
			return apperror.Conflict(
				"cancellation is locked within %d minutes of the scheduled time",
				g.cfg.CancellationLockMins)
		}
		return nil
	}

	if utils.MinutesUntil(scheduledAt, now) < g.cfg.GracePeriodMins {
		return apperror.Conflict(
			"cancellation reopens %d minutes after the scheduled time",
			g.cfg.GracePeriodMins)
	}

	return nil
}

// CheckReschedulable rejects further reschedules at the limit
func (g *PolicyGuard) CheckReschedulable(booking *entity.Booking) error {
	if booking.IsTerminal() {
		return apperror.Conflict("cannot reschedule a %s booking", booking.Status)
	}
	if booking.RescheduleCount >= g.cfg.RescheduleLimit {
		return apperror.Conflict(
			"maximum reschedule limit (%d) reached for this booking",
			g.cfg.RescheduleLimit)
	}
	return nil
}

// VerifyFirstBooking gates the very first booking a user ever creates behind
// a verified one-time code. Subsequent bookings skip the check entirely.
func (g *PolicyGuard) VerifyFirstBooking(ctx context.Context, userID, otp string) error {
	count, err := g.bookingRepo.CountByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to count user bookings: %w", err)
	}
	if count > 0 {
		return nil
	}

	if otp == "" {
		return apperror.Invalid("OTP verification is required for your first booking")
	}

	user, err := g.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return apperror.NotFound("user not found")
	}

	if otp != g.cfg.FirstBookingDevOTP {
		otpKey := "otp:booking:" + user.PhoneNumber
		stored := g.otps.Get(otpKey)
		if stored == "" || stored != otp {
			return apperror.Invalid("invalid OTP")
		}
		g.otps.Del(otpKey)
	}

	if !user.IsVerified {
		if err := g.userRepo.MarkVerified(ctx, userID); err != nil {
			return fmt.Errorf("failed to mark user verified: %w", err)
		}
	}

	return nil
}
