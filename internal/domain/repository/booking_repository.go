package repository

import (
	"context"
	"errors"
	"time"

	"leadcall-service/internal/domain/entity"
)

// ErrNoMatch is returned by conditional updates whose filter matched no
// document: either the target does not exist or its current state no longer
// satisfies the precondition. Callers re-read the document to tell the two
// apart.
var ErrNoMatch = errors.New("no document matched the update condition")

// BookingRepository defines storage operations for the booking aggregate.
// Every lifecycle mutation is a single conditional update filtered on the
// expected current status (and, where relevant, the assigned party and the
// submitted one-time code), so concurrent callers cannot double-apply.
type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error

	// FindByKey resolves either the internal id or the human bookingID
	FindByKey(ctx context.Context, key string) (*entity.Booking, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.Booking, error)
	ListByVendor(ctx context.Context, vendorID string) ([]*entity.Booking, error)

	// AcceptLead binds the vendor and issues codes iff the booking is still
	// pending_acceptance. Returns the updated booking or ErrNoMatch.
	AcceptLead(ctx context.Context, key, vendorID, startOTP, completionOTP string) (*entity.Booking, error)

	// AddRejectedVendor / AddLaterVendor maintain the mutually exclusive
	// exclusion sets while the lead is still unassigned.
	AddRejectedVendor(ctx context.Context, key, vendorID string) (*entity.Booking, error)
	AddLaterVendor(ctx context.Context, key, vendorID string) (*entity.Booking, error)

	MarkOnTheWay(ctx context.Context, key, vendorID string) (*entity.Booking, error)
	MarkArrived(ctx context.Context, key, vendorID string, at time.Time, travelCharge float64) (*entity.Booking, error)
	StartWork(ctx context.Context, key, vendorID, code string, at time.Time) (*entity.Booking, error)
	SetCompletionCode(ctx context.Context, key, vendorID, code string) (*entity.Booking, error)
	CompleteWork(ctx context.Context, key, vendorID, code, paymentMethod string, at time.Time) (*entity.Booking, error)

	Cancel(ctx context.Context, key, userID string, record entity.Cancellation) (*entity.Booking, error)
	Reschedule(ctx context.Context, key, userID string, date time.Time, timeStr string, limit int) (*entity.Booking, error)
}
