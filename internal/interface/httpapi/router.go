package httpapi

import (
	"leadcall-service/internal/domain/entity"
	"leadcall-service/pkg/logger"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the HTTP surface: user and vendor booking routes plus the
// event stream. Metrics and health live on the plain mux in main, outside
// the authenticated surface.
func NewRouter(
	jwtSecret string,
	bookings *BookingHandler,
	stream *StreamHandler,
	log logger.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api/v1")
	api.Use(PrincipalAuth(jwtSecret, log))

	api.GET("/events", stream.Stream)
	api.GET("/bookings", bookings.ListBookings)
	api.GET("/bookings/:id", bookings.GetBooking)

	user := api.Group("/bookings")
	user.Use(RequireKind(entity.KindUser))
	{
		user.POST("/request", bookings.RequestLead)
		user.POST("/:id/retry-search", bookings.RetrySearch)
		user.POST("/:id/cancel", bookings.Cancel)
		user.POST("/:id/reschedule", bookings.Reschedule)
	}

	vendor := api.Group("/bookings")
	vendor.Use(RequireKind(entity.KindVendor))
	{
		vendor.POST("/:id/accept", bookings.AcceptLead)
		vendor.POST("/:id/reject", bookings.RejectLead)
		vendor.POST("/:id/later", bookings.DeferLead)
		vendor.POST("/:id/on-the-way", bookings.MarkOnTheWay)
		vendor.POST("/:id/arrived", bookings.MarkArrived)
		vendor.POST("/:id/start", bookings.StartWork)
		vendor.POST("/:id/completion-code", bookings.RequestCompletionCode)
		vendor.POST("/:id/complete", bookings.CompleteWork)
	}

	return router
}
