package handlers

import (
	"errors"
	"io"
	"net/http"

	"tourbook/middleware"
	"tourbook/models"
	"tourbook/services/payment"
	"tourbook/services/reconcile"
	"tourbook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

// PaymentHandler receives gateway callbacks. Nothing reaches the reconciler
// until the gateway adapter has verified the signature.
type PaymentHandler struct {
	Reconciler reconcile.Reconciler
	VNPay      *payment.VNPay  // nil when VNPay is disabled
	Stripe     *payment.Stripe // nil when Stripe is disabled
	Logger     *zap.Logger
}

func NewPaymentHandler(r reconcile.Reconciler, vnpay *payment.VNPay, stripe *payment.Stripe, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{Reconciler: r, VNPay: vnpay, Stripe: stripe, Logger: logger}
}

// VNPayIPN handles GET and POST /api/payments/vnpay/ipn. The signed fields
// may arrive in the query or a form body. VNPay expects a 200 with an RspCode
// body whatever the outcome.
func (h *PaymentHandler) VNPayIPN(c *gin.Context) {
	if h.VNPay == nil {
		c.JSON(http.StatusOK, reconcile.IPNResponse{RspCode: "99", Message: "Gateway disabled"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	if err := c.Request.ParseForm(); err != nil {
		getLogger(c, h.Logger).Warn("vnpay ipn unreadable", zap.String("ip", middleware.ClientIP(c)), zap.Error(err))
		c.JSON(http.StatusOK, reconcile.IPNResponse{RspCode: "99", Message: "Invalid request"})
		return
	}
	cb, err := h.VNPay.VerifyCallback(c.Request.Form)
	if err != nil {
		getLogger(c, h.Logger).Warn("vnpay ipn rejected", zap.String("ip", middleware.ClientIP(c)), zap.Error(err))
		c.JSON(http.StatusOK, reconcile.IPNResponseFor(err))
		return
	}
	_, err = h.Reconciler.Reconcile(c.Request.Context(), cb)
	c.JSON(http.StatusOK, reconcile.IPNResponseFor(err))
}

// VNPayReturn handles GET /api/payments/vnpay/return, where the customer's
// browser lands. It only reports what the signed query says; settlement is
// left to the IPN.
func (h *PaymentHandler) VNPayReturn(c *gin.Context) {
	if h.VNPay == nil {
		utils.DomainErrorJSON(c, models.ErrUnsupportedGateway)
		return
	}
	cb, err := h.VNPay.VerifyCallback(c.Request.URL.Query())
	if err != nil {
		utils.DomainErrorJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reference":     cb.Reference(),
		"success":       cb.Success(),
		"response_code": cb.ResponseCode(),
	})
}

// StripeWebhook handles POST /api/payments/stripe/webhook.
func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	if h.Stripe == nil {
		utils.DomainErrorJSON(c, models.ErrUnsupportedGateway)
		return
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "unreadable body", err.Error())
		return
	}
	cb, err := h.Stripe.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
	if errors.Is(err, payment.ErrIgnoredEvent) {
		c.Status(http.StatusOK)
		return
	}
	if err != nil {
		getLogger(c, h.Logger).Warn("stripe webhook rejected", zap.Error(err))
		utils.DomainErrorJSON(c, err)
		return
	}

	_, err = h.Reconciler.Reconcile(c.Request.Context(), cb)
	switch {
	case err == nil, errors.Is(err, models.ErrAlreadyReconciled):
		// duplicates are acknowledged so Stripe stops retrying
		c.Status(http.StatusOK)
	default:
		utils.DomainErrorJSON(c, err)
	}
}

// Health handles GET /healthz.
func Health(c *gin.Context) {
	status := utils.GetHealthStatus()
	code := http.StatusOK
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
