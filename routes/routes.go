package routes

import (
	"strings"
	"time"

	"tourbook/handlers"
	"tourbook/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/healthz", handlers.Health)
}

// RegisterBookingRoutes sets up the customer booking endpoints.
func RegisterBookingRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	bookingGroup := r.Group("/api/bookings")
	{
		bookingGroup.Use(middleware.JWTAuthMiddleware())
		bookingGroup.POST("", hb.Bookings.CreateBooking)
		bookingGroup.GET("/:id", hb.Bookings.GetBooking)
		bookingGroup.POST("/:id/cancel", hb.Bookings.CancelBooking)
	}
}

// RegisterPaymentRoutes sets up redirect retrieval and gateway callbacks.
// Callbacks are authenticated by their signatures, not by JWT.
func RegisterPaymentRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/payments")
	{
		api.GET("/vnpay/ipn", hb.Payments.VNPayIPN)
		api.POST("/vnpay/ipn", hb.Payments.VNPayIPN)
		api.GET("/vnpay/return", hb.Payments.VNPayReturn)
		api.POST("/stripe/webhook", hb.Payments.StripeWebhook)

		protected := api.Group("")
		protected.Use(middleware.JWTAuthMiddleware())
		protected.GET("/:id/redirect", hb.Bookings.PaymentRedirect)
	}
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
// origins is a comma-separated allow list; empty or "*" allows any origin.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle, origins string) {
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" && o != "*" {
			corsConfig.AllowOrigins = append(corsConfig.AllowOrigins, o)
		}
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowCredentials = true
	}
	r.Use(cors.New(corsConfig))

	RegisterHealthRoute(r)
	RegisterBookingRoutes(r, hb)
	RegisterPaymentRoutes(r, hb)
}
