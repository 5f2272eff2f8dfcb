package reconcile

import (
	"context"

	"tourbook/database/repository"
	"tourbook/models"
	"tourbook/services/inventory"
	"tourbook/services/notification"
	"tourbook/services/payment"

	"go.uber.org/zap"
)

// Settlement is the booking/payment pair after a state transition.
type Settlement struct {
	Booking models.Booking
	Payment models.Payment
}

// Reconciler applies final payment verdicts. Every method settles a pending
// payment at most once; later attempts return ErrAlreadyReconciled.
type Reconciler interface {
	// Reconcile applies a verified gateway callback.
	Reconcile(ctx context.Context, cb *payment.VerifiedCallback) (*Settlement, error)
	// Expire fails a pending payment whose window has passed.
	Expire(ctx context.Context, paymentID, reason string) (*Settlement, error)
	// Cancel fails a pending payment at the customer's request.
	Cancel(ctx context.Context, paymentID, reason string) (*Settlement, error)
}

// DefaultReconciler implements Reconciler.
type DefaultReconciler struct {
	Store    repository.Store
	Ledger   inventory.Ledger
	Notifier notification.Dispatcher
	Logger   *zap.Logger
}
