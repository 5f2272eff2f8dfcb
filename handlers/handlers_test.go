package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"tourbook/config"
	"tourbook/database/repository"
	memoryRepo "tourbook/database/repository/memory"
	"tourbook/handlers"
	"tourbook/models"
	"tourbook/routes"
	"tourbook/services/booking"
	"tourbook/services/inventory"
	"tourbook/services/payment"
	"tourbook/services/pricing"
	"tourbook/services/reconcile"
	"tourbook/services/voucher"
	"tourbook/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

const (
	hashSecret   = "HANDLER_TEST_SECRET"
	stripeSecret = "whsec_handler_test"
	payURL       = "https://sandbox.vnpayment.test/pay"
	departure    = "2025-07-01"
)

func init() {
	gin.SetMode(gin.TestMode)
	config.AppConfig.JWTSecret = "handler-test-jwt"
}

type server struct {
	router   *gin.Engine
	store    *memoryRepo.MemoryStore
	notifier *countingNotifier
}

type countingNotifier struct {
	mu     sync.Mutex
	events []models.NotificationEvent
}

func (n *countingNotifier) Notify(ctx context.Context, b models.BookingNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, b.Event)
	return nil
}

func newServer(t *testing.T) *server {
	return newServerWithStripe(t, nil)
}

func newServerWithStripe(t *testing.T, stripe *payment.Stripe) *server {
	t.Helper()
	ctx := context.Background()
	store := memoryRepo.NewMemoryStore()
	require.NoError(t, store.SaveProduct(ctx, &models.Product{
		ID: "tour-x", Kind: models.ProductTour, Name: "Tour X", Days: 3, Nights: 2,
		Prices: []models.PriceEntry{{EffectiveFrom: "2025-01-01", UnitPrice: 1_000_000}},
	}))
	require.NoError(t, store.SaveAvailability(ctx, &models.Availability{
		ID: "av-x", Product: models.TourRef("tour-x"), Date: departure, MaxSlots: 2, AvailableSlots: 2, IsActive: true,
	}))

	logger := zap.NewNop()
	vnpay := payment.NewVNPay(payment.VNPayConfig{TmnCode: "TMN", HashSecret: hashSecret, PayURL: payURL})
	ledger := &inventory.DefaultLedger{Logger: logger}
	notifier := &countingNotifier{}
	reconciler := &reconcile.DefaultReconciler{Store: store, Ledger: ledger, Notifier: notifier, Logger: logger}
	registry := payment.NewRegistry(vnpay)
	if stripe != nil {
		registry = payment.NewRegistry(vnpay, stripe)
	}
	workflow := &booking.DefaultWorkflow{
		Store:      store,
		Ledger:     ledger,
		Pricing:    &pricing.DefaultCalculator{},
		Vouchers:   &voucher.DefaultEvaluator{Logger: logger},
		Gateways:   registry,
		Reconciler: reconciler,
		Logger:     logger,
		Currency:   "VND",
		PendingTTL: 30 * time.Minute,
		Now:        func() time.Time { return time.Date(2025, 6, 20, 9, 0, 0, 0, time.UTC) },
	}

	r := gin.New()
	routes.RegisterRoutes(r, &handlers.HandlerBundle{
		Bookings: handlers.NewBookingHandler(workflow, logger),
		Payments: handlers.NewPaymentHandler(reconciler, vnpay, stripe, logger),
	}, "*")
	return &server{router: r, store: store, notifier: notifier}
}

func (s *server) do(t *testing.T, method, target string, body any, user string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		token, err := utils.GenerateToken(user, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type created struct {
	Booking     models.Booking `json:"booking"`
	Payment     models.Payment `json:"payment"`
	Stage       string         `json:"stage"`
	RedirectURL string         `json:"redirect_url"`
}

func (s *server) book(t *testing.T, user string, adults int) created {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/bookings", map[string]any{
		"product": map[string]string{"kind": "tour", "id": "tour-x"},
		"date":    departure,
		"adults":  adults,
		"method":  "vnpay",
	}, user)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var out created
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func signedIPN(ref string, amount int64, code string) string {
	params := map[string]string{
		"vnp_TmnCode":       "TMN",
		"vnp_TxnRef":        ref,
		"vnp_Amount":        strconv.FormatInt(amount*100, 10),
		"vnp_ResponseCode":  code,
		"vnp_TransactionNo": "14226112",
	}
	v := url.Values{}
	for k, val := range params {
		v.Set(k, val)
	}
	v.Set("vnp_SecureHash", payment.Sign(hashSecret, payment.Canonicalize(params)))
	return v.Encode()
}

func ipn(t *testing.T, s *server, query string) reconcile.IPNResponse {
	t.Helper()
	w := s.do(t, http.MethodGet, "/api/payments/vnpay/ipn?"+query, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var out reconcile.IPNResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestBookingRequiresToken(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodPost, "/api/bookings", map[string]any{"date": departure}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateBookingReturnsRedirect(t *testing.T) {
	s := newServer(t)
	out := s.book(t, "u1", 2)

	assert.Equal(t, "AwaitingPayment", out.Stage)
	assert.Equal(t, models.BookingPending, out.Booking.Status)
	assert.Equal(t, int64(2_000_000), out.Payment.Amount)
	assert.True(t, strings.HasPrefix(out.RedirectURL, payURL+"?"), out.RedirectURL)
	assert.Contains(t, out.RedirectURL, "vnp_Amount=200000000")

	w := s.do(t, http.MethodGet, "/api/bookings/"+out.Booking.ID, nil, "u1")
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/api/bookings/"+out.Booking.ID, nil, "someone-else")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateBookingReportsStage(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodPost, "/api/bookings", map[string]any{
		"product": map[string]string{"kind": "tour", "id": "tour-x"},
		"date":    departure,
		"adults":  3,
		"method":  "vnpay",
	}, "u1")
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Initiated", body["stage"])
	assert.Equal(t, "InsufficientInventory", body["code"])
}

func TestCreateBookingRejectsBadInput(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodPost, "/api/bookings", map[string]any{
		"product": map[string]string{"kind": "tour", "id": "tour-x"},
		"date":    "01/07/2025",
		"adults":  1,
		"method":  "vnpay",
	}, "u1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVNPayIPNSettlesOnce(t *testing.T) {
	s := newServer(t)
	out := s.book(t, "u1", 2)
	query := signedIPN(out.Payment.Reference, out.Payment.Amount, "00")

	assert.Equal(t, "00", ipn(t, s, query).RspCode)
	assert.Equal(t, "02", ipn(t, s, query).RspCode)

	b, err := s.store.GetBooking(context.Background(), out.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, b.Status)
}

func TestVNPayIPNAcceptsFormPost(t *testing.T) {
	s := newServer(t)
	out := s.book(t, "u1", 1)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/vnpay/ipn",
		strings.NewReader(signedIPN(out.Payment.Reference, out.Payment.Amount, "00")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp reconcile.IPNResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "00", resp.RspCode)

	p, err := s.store.GetPayment(context.Background(), out.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, p.Status)
}

func TestVNPayIPNRejects(t *testing.T) {
	s := newServer(t)
	out := s.book(t, "u1", 1)

	assert.Equal(t, "01", ipn(t, s, signedIPN("UNKNOWN", out.Payment.Amount, "00")).RspCode)
	assert.Equal(t, "04", ipn(t, s, signedIPN(out.Payment.Reference, 1, "00")).RspCode)

	tampered := strings.Replace(signedIPN(out.Payment.Reference, out.Payment.Amount, "24"),
		"vnp_ResponseCode=24", "vnp_ResponseCode=00", 1)
	assert.Equal(t, "97", ipn(t, s, tampered).RspCode)

	p, err := s.store.GetPayment(context.Background(), out.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, p.Status)
}

func TestVNPayReturnOnlyReports(t *testing.T) {
	s := newServer(t)
	out := s.book(t, "u1", 1)

	w := s.do(t, http.MethodGet, "/api/payments/vnpay/return?"+signedIPN(out.Payment.Reference, out.Payment.Amount, "00"), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)

	p, err := s.store.GetPayment(context.Background(), out.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, p.Status)
}

func TestCancelReleasesSlots(t *testing.T) {
	s := newServer(t)
	out := s.book(t, "u1", 2)

	w := s.do(t, http.MethodPost, "/api/bookings/"+out.Booking.ID+"/cancel", nil, "u1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	a, err := s.store.GetAvailability(context.Background(), models.TourRef("tour-x"), departure)
	require.NoError(t, err)
	assert.Equal(t, 2, a.AvailableSlots)

	w = s.do(t, http.MethodGet, "/api/payments/"+out.Payment.ID+"/redirect", nil, "u1")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStripeWebhookDisabled(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodPost, "/api/payments/stripe/webhook", map[string]string{}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// seedStripePayment stores a pending Stripe booking for one guest.
func seedStripePayment(t *testing.T, s *server) models.Payment {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	paymentID := "pay-stripe-1"
	p := models.Payment{
		ID: paymentID, BookingID: "bk-stripe-1", Amount: 1_000_000, Currency: "VND",
		Method: models.MethodStripe, Status: models.PaymentPending, Reference: "REFSTRIPE1",
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.InsertBooking(ctx, &models.Booking{
			ID: p.BookingID, UserID: "u1", Product: models.TourRef("tour-x"), StartDate: departure, EndDate: "2025-07-03",
			Adults: 1, TotalPrice: p.Amount, Currency: "VND", Status: models.BookingPending,
			PaymentID: &paymentID, CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			return err
		}
		pp := p
		return tx.InsertPayment(ctx, &pp)
	}))
	return p
}

func stripeWebhook(t *testing.T, s *server, eventType string, p models.Payment, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	payload := []byte(fmt.Sprintf(`{
  "id": "evt_handler_1",
  "object": "event",
  "type": %q,
  "data": {"object": {
    "id": "cs_test_handler",
    "object": "checkout.session",
    "client_reference_id": %q,
    "payment_status": "paid",
    "amount_total": %d
  }}
}`, eventType, p.Reference, p.Amount))
	header := "t=1,v1=deadbeef"
	if sign {
		header = webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload: payload, Secret: stripeSecret, Timestamp: time.Now(),
		}).Header
	}
	req := httptest.NewRequest(http.MethodPost, "/api/payments/stripe/webhook", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", header)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestStripeWebhookSettlesOnce(t *testing.T) {
	s := newServerWithStripe(t, payment.NewStripe(payment.StripeConfig{WebhookSecret: stripeSecret}))
	p := seedStripePayment(t, s)

	assert.Equal(t, http.StatusOK, stripeWebhook(t, s, "checkout.session.completed", p, true).Code)
	// Stripe redelivers; the duplicate is acknowledged
	assert.Equal(t, http.StatusOK, stripeWebhook(t, s, "checkout.session.completed", p, true).Code)

	b, err := s.store.GetBooking(context.Background(), p.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, b.Status)
	got, err := s.store.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, got.Status)
	assert.Equal(t, []models.NotificationEvent{models.EventBookingConfirmed}, s.notifier.events)
}

func TestStripeWebhookIgnoresAndRejects(t *testing.T) {
	s := newServerWithStripe(t, payment.NewStripe(payment.StripeConfig{WebhookSecret: stripeSecret}))
	p := seedStripePayment(t, s)

	assert.Equal(t, http.StatusOK, stripeWebhook(t, s, "customer.created", p, true).Code)
	assert.Equal(t, http.StatusUnauthorized, stripeWebhook(t, s, "checkout.session.completed", p, false).Code)

	got, err := s.store.GetPayment(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, got.Status)
	assert.Empty(t, s.notifier.events)
}

func TestHealthz(t *testing.T) {
	s := newServer(t)
	utils.CheckHealth(context.Background(), s.store, nil)
	w := s.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}
