package booking

import (
	"context"
	"time"

	"tourbook/database/repository"
	"tourbook/models"
	"tourbook/services/inventory"
	"tourbook/services/notification"
	"tourbook/services/payment"
	"tourbook/services/pricing"
	"tourbook/services/reconcile"
	"tourbook/services/voucher"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Result is what a successful CreateBooking returns.
type Result struct {
	Booking     models.Booking
	Payment     models.Payment
	Stage       Stage
	RedirectURL string `json:",omitempty"`
}

// RedirectQuery identifies whose payment redirect is wanted and from where.
type RedirectQuery struct {
	PaymentID string
	UserID    string
	ClientIP  string
	Locale    string
}

// Workflow books products and drives bookings to their final state.
type Workflow interface {
	CreateBooking(ctx context.Context, req models.BookingRequest) (*Result, error)
	RedirectFor(ctx context.Context, q RedirectQuery) (string, error)
	CancelBooking(ctx context.Context, bookingID, userID string) (*models.Booking, error)
	ExpireStale(ctx context.Context) (int, error)
	GetBooking(ctx context.Context, bookingID, userID string) (*models.Booking, *models.Payment, error)
}

// DefaultWorkflow implements Workflow.
type DefaultWorkflow struct {
	Store      repository.Store
	Ledger     inventory.Ledger
	Pricing    pricing.Calculator
	Vouchers   voucher.Evaluator
	Gateways   payment.Registry
	Redirects  payment.RedirectCache
	Reconciler reconcile.Reconciler
	Notifier   notification.Dispatcher
	Validate   *validator.Validate
	Logger     *zap.Logger

	Currency   string
	PendingTTL time.Duration // how long an asynchronous payment may stay pending
	Now        func() time.Time
}

func (w *DefaultWorkflow) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}
