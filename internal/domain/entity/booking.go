package entity

import (
	"time"
)

// Booking status values. A booking starts life as a lead
// (pending_acceptance) and keeps the same document once a vendor is bound.
const (
	StatusPendingAcceptance = "pending_acceptance"
	StatusPending           = "pending"
	StatusOnTheWay          = "on_the_way"
	StatusArrived           = "arrived"
	StatusOngoing           = "ongoing"
	StatusCompleted         = "completed"
	StatusCancelled         = "cancelled"
)

// Payment methods accepted on completion
const (
	PaymentMethodCash  = "cash"
	PaymentMethodUPI   = "upi"
	PaymentMethodOther = "other"
)

// Payment status values
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusRefunded  = "refunded"
)

// Parties who may cancel a booking
const (
	CancelledByUser   = "user"
	CancelledByVendor = "vendor"
	CancelledBySystem = "system"
)

// ServiceItem is one requested service line on a booking
type ServiceItem struct {
	ServiceID        string  `bson:"service" json:"service"`
	Quantity         int     `bson:"quantity" json:"quantity"`
	AdminPrice       float64 `bson:"adminPrice" json:"adminPrice"`
	FinalPrice       float64 `bson:"finalPrice" json:"finalPrice"`
	IsPriceConfirmed bool    `bson:"isPriceConfirmed" json:"isPriceConfirmed"`
}

// Location is where the service is performed
type Location struct {
	Address   string  `bson:"address" json:"address"`
	Latitude  float64 `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude float64 `bson:"longitude,omitempty" json:"longitude,omitempty"`
	Pincode   string  `bson:"pincode" json:"pincode"`
}

// Pricing is the booking's price snapshot, immutable after completion
type Pricing struct {
	BasePrice         float64 `bson:"basePrice" json:"basePrice"`
	TravelCharge      float64 `bson:"travelCharge" json:"travelCharge"`
	AdditionalCharges float64 `bson:"additionalCharges" json:"additionalCharges"`
	TotalPrice        float64 `bson:"totalPrice" json:"totalPrice"`
}

// Payment records how the completed work was settled
type Payment struct {
	Method string `bson:"method,omitempty" json:"method,omitempty"`
	Status string `bson:"status" json:"status"`
}

// OTPCodes holds the one-time codes gating the start and completion stages.
// They are relayed to the requesting user out-of-band and must never appear
// in vendor-facing responses.
type OTPCodes struct {
	StartOTP      string `bson:"startOTP,omitempty" json:"-"`
	CompletionOTP string `bson:"completionOTP,omitempty" json:"-"`
}

// Cancellation records who cancelled a booking, when and why
type Cancellation struct {
	CancelledBy string    `bson:"cancelledBy" json:"cancelledBy"`
	Reason      string    `bson:"reason,omitempty" json:"reason,omitempty"`
	CancelledAt time.Time `bson:"cancelledAt" json:"cancelledAt"`
}

// Booking is the central aggregate: a lead before acceptance, a booking after
type Booking struct {
	ID              string        `bson:"_id,omitempty" json:"id"`
	BookingID       string        `bson:"bookingID" json:"bookingID"`
	UserID          string        `bson:"user" json:"user"`
	VendorID        string        `bson:"vendor,omitempty" json:"vendor,omitempty"`
	SubcategoryID   string        `bson:"subcategory,omitempty" json:"subcategory,omitempty"`
	Services        []ServiceItem `bson:"services" json:"services"`
	Status          string        `bson:"status" json:"status"`
	ScheduledDate   time.Time     `bson:"scheduledDate" json:"scheduledDate"`
	ScheduledTime   string        `bson:"scheduledTime" json:"scheduledTime"`
	Location        Location      `bson:"location" json:"location"`
	Pricing         Pricing       `bson:"pricing" json:"pricing"`
	Payment         Payment       `bson:"payment" json:"payment"`
	OTP             OTPCodes      `bson:"otp" json:"-"`
	Cancellation    *Cancellation `bson:"cancellation,omitempty" json:"cancellation,omitempty"`
	RescheduleCount int           `bson:"rescheduleCount" json:"rescheduleCount"`
	CancelCount     int           `bson:"cancelCount" json:"cancelCount"`
	VendorArrivedAt *time.Time    `bson:"vendorArrivedAt,omitempty" json:"vendorArrivedAt,omitempty"`
	WorkStartedAt   *time.Time    `bson:"workStartedAt,omitempty" json:"workStartedAt,omitempty"`
	WorkCompletedAt *time.Time    `bson:"workCompletedAt,omitempty" json:"workCompletedAt,omitempty"`
	RejectedVendors []string      `bson:"rejectedVendors,omitempty" json:"-"`
	LaterVendors    []string      `bson:"laterVendors,omitempty" json:"-"`
	CreatedAt       time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// IsTerminal reports whether the booking can no longer transition
func (b *Booking) IsTerminal() bool {
	return b.Status == StatusCompleted || b.Status == StatusCancelled
}

// ExcludedVendors returns the vendors who declined or deferred this lead
func (b *Booking) ExcludedVendors() []string {
	out := make([]string, 0, len(b.RejectedVendors)+len(b.LaterVendors))
	out = append(out, b.RejectedVendors...)
	out = append(out, b.LaterVendors...)
	return out
}

// ValidPaymentMethod reports whether m is an accepted payment method
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodUPI, PaymentMethodOther:
		return true
	}
	return false
}

// CancellableStatuses are the states a user may cancel from
var CancellableStatuses = []string{
	StatusPendingAcceptance, StatusPending, StatusOnTheWay, StatusArrived,
}

// ReschedulableStatuses are the states a user may reschedule from
var ReschedulableStatuses = []string{
	StatusPendingAcceptance, StatusPending, StatusOnTheWay, StatusArrived,
}
