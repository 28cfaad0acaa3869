package httpapi

import (
	"net/http"

	"leadcall-service/internal/domain/entity"
	"leadcall-service/internal/usecase"
	"leadcall-service/pkg/logger"

	"github.com/gin-gonic/gin"
)

// BookingHandler exposes the lead and lifecycle operations over HTTP
type BookingHandler struct {
	matcher   *usecase.LeadMatcher
	lifecycle *usecase.BookingLifecycle
	logger    logger.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(matcher *usecase.LeadMatcher, lifecycle *usecase.BookingLifecycle, log logger.Logger) *BookingHandler {
	return &BookingHandler{
		matcher:   matcher,
		lifecycle: lifecycle,
		logger:    log,
	}
}

// RequestLead handles POST /bookings/request
func (h *BookingHandler) RequestLead(c *gin.Context) {
	var req usecase.LeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := currentPrincipal(c)
	result, err := h.matcher.RequestLead(c.Request.Context(), p.ID, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	message := "Request sent, waiting for vendor confirmation."
	if result.Offered == 0 {
		message = "Request placed, but no vendors are currently available. Retry the search shortly."
	}

	c.JSON(http.StatusCreated, gin.H{
		"booking": result.Booking,
		"offered": result.Offered,
		"message": message,
	})
}

// RetrySearch handles POST /bookings/:id/retry-search
func (h *BookingHandler) RetrySearch(c *gin.Context) {
	p := currentPrincipal(c)
	result, err := h.matcher.RetrySearch(c.Request.Context(), p.ID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListBookings handles GET /bookings
func (h *BookingHandler) ListBookings(c *gin.Context) {
	result, err := h.lifecycle.ListBookings(c.Request.Context(), currentPrincipal(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetBooking handles GET /bookings/:id. Only the requesting user sees the
// one-time codes.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	p := currentPrincipal(c)
	booking, err := h.lifecycle.GetBooking(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if p.Kind == entity.KindUser {
		c.JSON(http.StatusOK, gin.H{
			"booking": booking,
			"otp": gin.H{
				"startOTP":      booking.OTP.StartOTP,
				"completionOTP": booking.OTP.CompletionOTP,
			},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// AcceptLead handles POST /bookings/:id/accept
func (h *BookingHandler) AcceptLead(c *gin.Context) {
	p := currentPrincipal(c)
	booking, err := h.lifecycle.AcceptLead(c.Request.Context(), p.ID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// RejectLead handles POST /bookings/:id/reject
func (h *BookingHandler) RejectLead(c *gin.Context) {
	p := currentPrincipal(c)
	booking, err := h.lifecycle.RejectLead(c.Request.Context(), p.ID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookingID": booking.BookingID, "status": booking.Status})
}

// DeferLead handles POST /bookings/:id/later
func (h *BookingHandler) DeferLead(c *gin.Context) {
	p := currentPrincipal(c)
	booking, err := h.lifecycle.DeferLead(c.Request.Context(), p.ID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookingID": booking.BookingID, "status": booking.Status})
}

// MarkOnTheWay handles POST /bookings/:id/on-the-way
func (h *BookingHandler) MarkOnTheWay(c *gin.Context) {
	p := currentPrincipal(c)
	booking, err := h.lifecycle.MarkOnTheWay(c.Request.Context(), p.ID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// MarkArrived handles POST /bookings/:id/arrived
func (h *BookingHandler) MarkArrived(c *gin.Context) {
	p := currentPrincipal(c)
	booking, err := h.lifecycle.MarkArrived(c.Request.Context(), p.ID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// StartWork handles POST /bookings/:id/start
func (h *BookingHandler) StartWork(c *gin.Context) {
	var in struct {
		OTP string `json:"otp" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := currentPrincipal(c)
	booking, err := h.lifecycle.StartWork(c.Request.Context(), p.ID, c.Param("id"), in.OTP)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// RequestCompletionCode handles POST /bookings/:id/completion-code
func (h *BookingHandler) RequestCompletionCode(c *gin.Context) {
	p := currentPrincipal(c)
	booking, err := h.lifecycle.RequestCompletionCode(c.Request.Context(), p.ID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	// Code goes to the user out-of-band, never into this response
	c.JSON(http.StatusOK, gin.H{"bookingID": booking.BookingID, "message": "Completion code sent to the customer."})
}

// CompleteWork handles POST /bookings/:id/complete
func (h *BookingHandler) CompleteWork(c *gin.Context) {
	var in struct {
		OTP           string `json:"otp" binding:"required"`
		PaymentMethod string `json:"paymentMethod" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := currentPrincipal(c)
	booking, err := h.lifecycle.CompleteWork(c.Request.Context(), p.ID, c.Param("id"), in.OTP, in.PaymentMethod)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// Cancel handles POST /bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	var in struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := currentPrincipal(c)
	booking, err := h.lifecycle.Cancel(c.Request.Context(), p.ID, c.Param("id"), in.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

// Reschedule handles POST /bookings/:id/reschedule
func (h *BookingHandler) Reschedule(c *gin.Context) {
	var in struct {
		Date string `json:"date" binding:"required"`
		Time string `json:"time" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := currentPrincipal(c)
	booking, err := h.lifecycle.Reschedule(c.Request.Context(), p.ID, c.Param("id"), in.Date, in.Time)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}
