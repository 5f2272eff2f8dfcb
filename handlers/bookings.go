package handlers

import (
	"errors"
	"net/http"

	"tourbook/middleware"
	"tourbook/models"
	"tourbook/services/booking"
	"tourbook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BookingHandler serves the customer-facing booking endpoints.
type BookingHandler struct {
	Workflow booking.Workflow
	Logger   *zap.Logger
}

func NewBookingHandler(workflow booking.Workflow, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{Workflow: workflow, Logger: logger}
}

type bookingResponse struct {
	Booking     models.Booking  `json:"booking"`
	Payment     *models.Payment `json:"payment,omitempty"`
	Stage       booking.Stage   `json:"stage,omitempty"`
	RedirectURL string          `json:"redirect_url,omitempty"`
}

type stageErrorResponse struct {
	utils.ErrorResponse
	Stage booking.Stage `json:"stage"`
}

// CreateBooking handles POST /api/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req models.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	req.UserID = c.GetString(middleware.UserIDKey)
	req.ClientIP = middleware.ClientIP(c)

	res, err := h.Workflow.CreateBooking(c.Request.Context(), req)
	if err != nil {
		var se *booking.StageError
		var de *models.DomainError
		if errors.As(err, &se) && errors.As(err, &de) {
			c.JSON(utils.StatusFor(de.Kind), stageErrorResponse{
				ErrorResponse: utils.ErrorResponse{Message: de.Message, Code: de.Code},
				Stage:         se.Stage,
			})
			return
		}
		utils.DomainErrorJSON(c, err)
		return
	}

	status := http.StatusCreated
	if res.Stage == booking.StageAwaitingPayment {
		status = http.StatusAccepted
	}
	c.JSON(status, bookingResponse{
		Booking:     res.Booking,
		Payment:     &res.Payment,
		Stage:       res.Stage,
		RedirectURL: res.RedirectURL,
	})
}

// GetBooking handles GET /api/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	b, p, err := h.Workflow.GetBooking(c.Request.Context(), c.Param("id"), c.GetString(middleware.UserIDKey))
	if err != nil {
		utils.DomainErrorJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingResponse{Booking: *b, Payment: p})
}

// CancelBooking handles POST /api/bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	b, err := h.Workflow.CancelBooking(c.Request.Context(), c.Param("id"), c.GetString(middleware.UserIDKey))
	if err != nil {
		utils.DomainErrorJSON(c, err)
		return
	}
	getLogger(c, h.Logger).Info("booking cancelled by customer", zap.String("bookingId", b.ID))
	c.JSON(http.StatusOK, bookingResponse{Booking: *b})
}

// PaymentRedirect handles GET /api/payments/:id/redirect.
func (h *BookingHandler) PaymentRedirect(c *gin.Context) {
	url, err := h.Workflow.RedirectFor(c.Request.Context(), booking.RedirectQuery{
		PaymentID: c.Param("id"),
		UserID:    c.GetString(middleware.UserIDKey),
		ClientIP:  middleware.ClientIP(c),
		Locale:    c.Query("locale"),
	})
	if err != nil {
		utils.DomainErrorJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"redirect_url": url})
}
