package entity

import (
	"time"
)

// Push event types delivered over the broadcast channel
const (
	EventLeadOffer          = "lead_offer"
	EventLeadAccepted       = "lead_accepted"
	EventBookingStatus      = "booking_status"
	EventBookingCancelled   = "booking_cancelled"
	EventBookingRescheduled = "booking_rescheduled"
	EventCompletionCode     = "completion_code"
)

// Recipient identifies who a push event is addressed to
type Recipient struct {
	ID   string
	Kind PrincipalKind
}

// Key returns the registry key for the recipient
func (r Recipient) Key() string {
	return r.Kind.String() + ":" + r.ID
}

// Event is a best-effort push notification payload
type Event struct {
	Type      string                 `json:"type"`
	BookingID string                 `json:"bookingID"`
	Data      map[string]interface{} `json:"data,omitempty"`
	At        time.Time              `json:"at"`
}

// NewEvent builds an event stamped with the current time
func NewEvent(eventType, bookingID string, data map[string]interface{}) *Event {
	return &Event{
		Type:      eventType,
		BookingID: bookingID,
		Data:      data,
		At:        time.Now(),
	}
}
