package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	memoryRepo "tourbook/database/repository/memory"
	"tourbook/models"
	"tourbook/services/inventory"
	"tourbook/services/payment"
	"tourbook/services/pricing"
	"tourbook/services/reconcile"
	"tourbook/services/voucher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	tourX = models.TourRef("tour-x")
	tourY = models.TourRef("tour-y")
	clock = time.Date(2025, 6, 20, 9, 0, 0, 0, time.UTC)
)

const departure = "2025-07-01"

type fakeGateway struct {
	mu    sync.Mutex
	fail  bool
	calls int
	last  payment.RedirectRequest
}

func (g *fakeGateway) Method() models.PaymentMethod { return models.MethodVNPay }
func (g *fakeGateway) RedirectTTL() time.Duration { return 15 * time.Minute }

func (g *fakeGateway) BuildRedirect(ctx context.Context, p models.Payment, req payment.RedirectRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.last = req
	if g.fail {
		return "", errors.New("gateway unreachable")
	}
	return "https://pay.test/" + p.Reference, nil
}

type mapCache struct {
	mu   sync.Mutex
	m    map[string]string
	ttls map[string]time.Duration
}

func (c *mapCache) Get(ctx context.Context, id string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[id]
	return v, ok, nil
}

func (c *mapCache) Set(ctx context.Context, id, url string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[id] = url
	if c.ttls == nil {
		c.ttls = map[string]time.Duration{}
	}
	c.ttls[id] = ttl
	return nil
}

func (c *mapCache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, id)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.NotificationEvent
}

func (r *recordingNotifier) Notify(ctx context.Context, n models.BookingNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n.Event)
	return nil
}

type harness struct {
	store    *memoryRepo.MemoryStore
	wf       *DefaultWorkflow
	gateway  *fakeGateway
	cache    *mapCache
	notifier *recordingNotifier
	now      time.Time
}

func newHarness(t *testing.T, slots int) *harness {
	t.Helper()
	ctx := context.Background()
	store := memoryRepo.NewMemoryStore()
	logger := zap.NewNop()

	for _, p := range []models.Product{
		{ID: "tour-x", Kind: models.ProductTour, Name: "Tour X", Days: 3, Nights: 2,
			Prices: []models.PriceEntry{{EffectiveFrom: "2025-01-01", UnitPrice: 1_000_000}}},
		{ID: "tour-y", Kind: models.ProductTour, Name: "Tour Y", Days: 1,
			Prices: []models.PriceEntry{{EffectiveFrom: "2025-01-01", UnitPrice: 500_000}}},
		{ID: "tour-z", Kind: models.ProductTour, Name: "Tour Z (unpriced)", Days: 1},
	} {
		p := p
		require.NoError(t, store.SaveProduct(ctx, &p))
		require.NoError(t, store.SaveAvailability(ctx, &models.Availability{
			ID: "av-" + p.ID, Product: p.Ref(), Date: departure,
			MaxSlots: slots, AvailableSlots: slots, IsActive: true,
		}))
	}

	vouchers := &voucher.DefaultEvaluator{Logger: logger}
	pct, limit := 10.0, 1
	require.NoError(t, vouchers.Create(ctx, store, &models.Voucher{
		Code:               "SUMMER10",
		DiscountPercentage: &pct,
		StartDate:          time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:            time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC),
		UsageLimit:         &limit,
		ApplicableProducts: []models.ProductRef{tourX},
	}))

	h := &harness{
		store:    store,
		gateway:  &fakeGateway{},
		cache:    &mapCache{m: map[string]string{}},
		notifier: &recordingNotifier{},
		now:      clock,
	}
	ledger := &inventory.DefaultLedger{Logger: logger}
	h.wf = &DefaultWorkflow{
		Store:     store,
		Ledger:    ledger,
		Pricing:   &pricing.DefaultCalculator{},
		Vouchers:  vouchers,
		Gateways:  payment.NewRegistry(h.gateway),
		Redirects: h.cache,
		Reconciler: &reconcile.DefaultReconciler{
			Store: store, Ledger: ledger, Notifier: h.notifier, Logger: logger,
		},
		Notifier:   h.notifier,
		Validate:   NewValidator(),
		Logger:     logger,
		Currency:   "VND",
		PendingTTL: 30 * time.Minute,
		Now:        func() time.Time { return h.now },
	}
	return h
}

func request(ref models.ProductRef, method models.PaymentMethod) models.BookingRequest {
	return models.BookingRequest{
		UserID: "user-1", Product: ref, Date: departure,
		Adults: 1, Method: method, ClientIP: "10.0.0.9",
	}
}

func (h *harness) slots(t *testing.T, ref models.ProductRef) int {
	t.Helper()
	a, err := h.store.GetAvailability(context.Background(), ref, departure)
	require.NoError(t, err)
	return a.AvailableSlots
}

func TestLastSlotGoesToExactlyOneBooking(t *testing.T) {
	h := newHarness(t, 1)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = h.wf.CreateBooking(context.Background(), request(tourX, models.MethodVNPay))
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, models.ErrInsufficientInventory):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, 0, h.slots(t, tourX))
}

func TestAsynchronousBookingAwaitsPayment(t *testing.T) {
	h := newHarness(t, 10)
	req := request(tourX, models.MethodVNPay)
	req.Adults, req.Children = 2, 2

	res, err := h.wf.CreateBooking(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StageAwaitingPayment, res.Stage)
	assert.Equal(t, models.BookingPending, res.Booking.Status)
	assert.Equal(t, models.PaymentPending, res.Payment.Status)
	assert.EqualValues(t, 3_000_000, res.Booking.TotalPrice)
	assert.Equal(t, res.Booking.TotalPrice, res.Payment.Amount)
	assert.Equal(t, "2025-07-03", res.Booking.EndDate)
	assert.Equal(t, "https://pay.test/"+res.Payment.Reference, res.RedirectURL)
	assert.Equal(t, 6, h.slots(t, tourX))
	assert.Empty(t, h.notifier.events)

	stored, p, err := h.wf.GetBooking(context.Background(), res.Booking.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, res.Booking.ID, stored.ID)
	assert.Equal(t, res.Payment.ID, p.ID)
}

func TestSynchronousMethodsConfirmImmediately(t *testing.T) {
	for _, m := range []models.PaymentMethod{models.MethodCash, models.MethodBankTransfer, models.MethodCreditCard} {
		t.Run(string(m), func(t *testing.T) {
			h := newHarness(t, 5)
			res, err := h.wf.CreateBooking(context.Background(), request(tourY, m))
			require.NoError(t, err)
			assert.Equal(t, StageConfirmed, res.Stage)
			assert.Equal(t, models.BookingConfirmed, res.Booking.Status)
			assert.Equal(t, models.PaymentCompleted, res.Payment.Status)
			assert.NotNil(t, res.Payment.CompletedAt)
			assert.Empty(t, res.RedirectURL)
			assert.Equal(t, []models.NotificationEvent{models.EventBookingConfirmed}, h.notifier.events)
			assert.Zero(t, h.gateway.calls)
		})
	}
}

func TestSummer10Scenario(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()

	reqY := request(tourY, models.MethodCash)
	reqY.VoucherCode = "SUMMER10"
	_, err := h.wf.CreateBooking(ctx, reqY)
	assert.ErrorIs(t, err, models.ErrVoucherNotApplicable)
	assert.Equal(t, 10, h.slots(t, tourY))

	reqX := request(tourX, models.MethodCash)
	reqX.Adults = 2
	reqX.VoucherCode = "SUMMER10"
	res, err := h.wf.CreateBooking(ctx, reqX)
	require.NoError(t, err)
	assert.EqualValues(t, 2_000_000, res.Booking.Subtotal)
	assert.EqualValues(t, 200_000, res.Booking.Discount)
	assert.EqualValues(t, 1_800_000, res.Booking.TotalPrice)
	assert.EqualValues(t, 1_800_000, res.Payment.Amount)
	require.NotNil(t, res.Booking.VoucherID)

	_, err = h.wf.CreateBooking(ctx, reqX)
	assert.ErrorIs(t, err, models.ErrUsageLimitReached)
	assert.Equal(t, 8, h.slots(t, tourX))

	n, err := h.store.CountVoucherUsages(ctx, *res.Booking.VoucherID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFailureRollsBackReservation(t *testing.T) {
	h := newHarness(t, 4)
	_, err := h.wf.CreateBooking(context.Background(), request(models.TourRef("tour-z"), models.MethodCash))
	require.ErrorIs(t, err, models.ErrNoPriceAvailable)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageInventoryReserved, se.Stage)
	assert.Equal(t, models.KindPricingUnavailable, models.KindOf(err))
	assert.Equal(t, 4, h.slots(t, models.TourRef("tour-z")))
}

func TestRejectsBeforeTransaction(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()

	cases := map[string]func(r *models.BookingRequest){
		"no adults":     func(r *models.BookingRequest) { r.Adults = 0 },
		"bad date":      func(r *models.BookingRequest) { r.Date = "01/07/2025" },
		"bad kind":      func(r *models.BookingRequest) { r.Product.Kind = "cruise" },
		"no user":       func(r *models.BookingRequest) { r.UserID = "" },
		"bad method":    func(r *models.BookingRequest) { r.Method = "bitcoin" },
		"negative kids": func(r *models.BookingRequest) { r.Children = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := request(tourX, models.MethodCash)
			mutate(&req)
			_, err := h.wf.CreateBooking(ctx, req)
			assert.Equal(t, models.KindInputValidation, models.KindOf(err))
		})
	}

	_, err := h.wf.CreateBooking(ctx, request(tourX, models.MethodStripe))
	assert.ErrorIs(t, err, models.ErrUnsupportedGateway)

	_, err = h.wf.CreateBooking(ctx, models.BookingRequest{
		UserID: "user-1", Product: tourX, Date: "2025-07-02", Adults: 1, Method: models.MethodCash,
	})
	assert.ErrorIs(t, err, models.ErrDateNotAvailable)
	assert.Equal(t, 4, h.slots(t, tourX))
}

func TestRedirectFailureKeepsBooking(t *testing.T) {
	h := newHarness(t, 3)
	h.gateway.fail = true
	ctx := context.Background()

	res, err := h.wf.CreateBooking(ctx, request(tourX, models.MethodVNPay))
	require.NoError(t, err)
	assert.Empty(t, res.RedirectURL)
	assert.Equal(t, 2, h.slots(t, tourX))

	h.gateway.fail = false
	q := RedirectQuery{PaymentID: res.Payment.ID, UserID: "user-1"}
	url, err := h.wf.RedirectFor(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.test/"+res.Payment.Reference, url)

	// served from cache the second time
	_, err = h.wf.RedirectFor(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, h.gateway.calls)

	_, err = h.wf.RedirectFor(ctx, RedirectQuery{PaymentID: res.Payment.ID, UserID: "someone-else"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCancelBooking(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()

	req := request(tourX, models.MethodVNPay)
	req.Adults = 2
	res, err := h.wf.CreateBooking(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, h.slots(t, tourX))

	_, err = h.wf.CancelBooking(ctx, res.Booking.ID, "intruder")
	assert.ErrorIs(t, err, models.ErrNotFound)

	b, err := h.wf.CancelBooking(ctx, res.Booking.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, b.Status)
	assert.Equal(t, 3, h.slots(t, tourX))
	assert.Contains(t, h.notifier.events, models.EventBookingCancelled)

	_, err = h.wf.CancelBooking(ctx, res.Booking.ID, "user-1")
	assert.ErrorIs(t, err, models.ErrNotCancellable)
	assert.Equal(t, 3, h.slots(t, tourX))

	_, err = h.wf.RedirectFor(ctx, RedirectQuery{PaymentID: res.Payment.ID, UserID: "user-1"})
	assert.ErrorIs(t, err, models.ErrAlreadyReconciled)

	confirmed, err := h.wf.CreateBooking(ctx, request(tourY, models.MethodCash))
	require.NoError(t, err)
	_, err = h.wf.CancelBooking(ctx, confirmed.Booking.ID, "user-1")
	assert.ErrorIs(t, err, models.ErrNotCancellable)
}

func TestExpireStale(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()

	old, err := h.wf.CreateBooking(ctx, request(tourX, models.MethodVNPay))
	require.NoError(t, err)
	_, err = h.wf.CreateBooking(ctx, request(tourY, models.MethodCash))
	require.NoError(t, err)

	h.now = clock.Add(20 * time.Minute)
	fresh, err := h.wf.CreateBooking(ctx, request(tourX, models.MethodVNPay))
	require.NoError(t, err)
	assert.Equal(t, 3, h.slots(t, tourX))

	h.now = clock.Add(40 * time.Minute)
	n, err := h.wf.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 4, h.slots(t, tourX))

	b, p, err := h.wf.GetBooking(ctx, old.Booking.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, b.Status)
	assert.Equal(t, models.PaymentFailed, p.Status)
	assert.Equal(t, "payment window expired", p.FailureReason)

	b, _, err = h.wf.GetBooking(ctx, fresh.Booking.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, b.Status)

	// running again is a no-op
	n, err = h.wf.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 4, h.slots(t, tourX))
}

func TestRedirectNeverOutlivesPendingWindow(t *testing.T) {
	h := newHarness(t, 5)
	ctx := context.Background()

	res, err := h.wf.CreateBooking(ctx, request(tourX, models.MethodVNPay))
	require.NoError(t, err)
	deadline := clock.Add(30 * time.Minute)
	assert.Equal(t, deadline, h.gateway.last.Deadline)

	// cache evicted, customer asks again five minutes before expiry
	h.now = clock.Add(25 * time.Minute)
	require.NoError(t, h.cache.Delete(ctx, res.Payment.ID))
	q := RedirectQuery{PaymentID: res.Payment.ID, UserID: "user-1"}
	_, err = h.wf.RedirectFor(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 2, h.gateway.calls)
	assert.Equal(t, h.now, h.gateway.last.Now)
	assert.Equal(t, deadline, h.gateway.last.Deadline)
	assert.Equal(t, 5*time.Minute, h.cache.ttls[res.Payment.ID])

	h.now = deadline
	require.NoError(t, h.cache.Delete(ctx, res.Payment.ID))
	_, err = h.wf.RedirectFor(ctx, q)
	assert.ErrorIs(t, err, models.ErrPaymentWindowClosed)
	assert.Equal(t, 2, h.gateway.calls)

	h.now = clock.Add(35 * time.Minute)
	n, err := h.wf.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 5, h.slots(t, tourX))

	_, err = h.wf.RedirectFor(ctx, q)
	assert.ErrorIs(t, err, models.ErrAlreadyReconciled)
}
