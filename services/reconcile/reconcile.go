package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourbook/database/repository"
	"tourbook/models"
	"tourbook/services/payment"

	"go.uber.org/zap"
)

// verdict is what a settlement should do to a pending payment.
type verdict struct {
	success      bool
	gateway      models.PaymentMethod // empty for internal verdicts
	transaction  string
	responseCode string
	reason       string
	amount       int64
	hasAmount    bool
	event        models.NotificationEvent
}

// LateCaptureError is a gateway success for a payment that was already
// failed, usually by expiry. The customer has been charged for a booking that
// no longer holds slots, so the charge must be refunded by hand. It matches
// models.ErrAlreadyReconciled.
type LateCaptureError struct {
	PaymentID    string
	BookingID    string
	GatewayTxnID string
}

func (e *LateCaptureError) Error() string {
	return fmt.Sprintf("payment %s captured after booking %s was closed", e.PaymentID, e.BookingID)
}

func (e *LateCaptureError) Unwrap() error { return models.ErrAlreadyReconciled }

type locker func(ctx context.Context, tx repository.Tx) (*models.Payment, error)

func (r *DefaultReconciler) Reconcile(ctx context.Context, cb *payment.VerifiedCallback) (*Settlement, error) {
	if cb == nil {
		return nil, models.ValidationError("missing callback")
	}
	amount, hasAmount := cb.Amount()
	v := verdict{
		success:      cb.Success(),
		gateway:      cb.Gateway(),
		transaction:  cb.GatewayTxnID(),
		responseCode: cb.ResponseCode(),
		amount:       amount,
		hasAmount:    hasAmount,
		event:        models.EventBookingConfirmed,
	}
	if !v.success {
		v.reason = fmt.Sprintf("gateway declined with code %s", cb.ResponseCode())
		v.event = models.EventBookingFailed
	}

	ref := cb.Reference()
	s, err := r.settle(ctx, v, func(ctx context.Context, tx repository.Tx) (*models.Payment, error) {
		return tx.LockPaymentByReference(ctx, ref)
	})
	logger := r.Logger.With(zap.String("reference", ref), zap.String("gateway", string(cb.Gateway())))
	var late *LateCaptureError
	switch {
	case errors.As(err, &late):
		logger.Error("payment captured on a closed booking; refund required",
			zap.String("paymentId", late.PaymentID),
			zap.String("bookingId", late.BookingID),
			zap.String("gatewayTxnId", late.GatewayTxnID),
			zap.Int64("amount", amount))
	case err == nil:
		logger.Info("payment reconciled",
			zap.String("paymentId", s.Payment.ID),
			zap.String("bookingId", s.Booking.ID),
			zap.String("status", string(s.Payment.Status)))
	case errors.Is(err, models.ErrAlreadyReconciled):
		logger.Info("duplicate callback ignored")
	case errors.Is(err, models.ErrAmountMismatch):
		logger.Warn("callback amount does not match payment", zap.Int64("callbackAmount", amount))
	default:
		logger.Warn("reconciliation failed", zap.Error(err))
	}
	return s, err
}

func (r *DefaultReconciler) Expire(ctx context.Context, paymentID, reason string) (*Settlement, error) {
	return r.settleByID(ctx, paymentID, reason, models.EventBookingFailed)
}

func (r *DefaultReconciler) Cancel(ctx context.Context, paymentID, reason string) (*Settlement, error) {
	return r.settleByID(ctx, paymentID, reason, models.EventBookingCancelled)
}

func (r *DefaultReconciler) settleByID(ctx context.Context, paymentID, reason string, event models.NotificationEvent) (*Settlement, error) {
	v := verdict{reason: reason, event: event}
	return r.settle(ctx, v, func(ctx context.Context, tx repository.Tx) (*models.Payment, error) {
		return tx.LockPayment(ctx, paymentID)
	})
}

// settle locks the payment, checks it is still pending, then moves payment and
// booking to their final states in one transaction. A failed payment gives its
// slots back.
func (r *DefaultReconciler) settle(ctx context.Context, v verdict, lock locker) (*Settlement, error) {
	var out Settlement
	err := r.Store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := lock(ctx, tx)
		if errors.Is(err, repository.ErrNotFound) {
			return models.ErrBookingNotFound
		}
		if err != nil {
			return fmt.Errorf("lock payment: %w", err)
		}
		if v.gateway != "" && p.Method != v.gateway {
			return models.ErrBookingNotFound
		}
		if p.Status.Terminal() {
			if v.gateway != "" && v.success && p.Status == models.PaymentFailed {
				return &LateCaptureError{PaymentID: p.ID, BookingID: p.BookingID, GatewayTxnID: v.transaction}
			}
			return models.ErrAlreadyReconciled
		}
		if v.hasAmount && v.amount != p.Amount {
			return models.ErrAmountMismatch
		}

		b, err := tx.GetBookingForUpdate(ctx, p.BookingID)
		if errors.Is(err, repository.ErrNotFound) {
			return models.ErrBookingNotFound
		}
		if err != nil {
			return fmt.Errorf("load booking %s: %w", p.BookingID, err)
		}

		now := time.Now()
		p.UpdatedAt = now
		p.ResponseCode = v.responseCode
		if v.transaction != "" {
			txn := v.transaction
			p.TransactionID = &txn
		}
		if v.success {
			p.Status = models.PaymentCompleted
			p.CompletedAt = &now
			b.Status = models.BookingConfirmed
		} else {
			p.Status = models.PaymentFailed
			p.FailureReason = v.reason
			b.Status = models.BookingCancelled
		}
		if err := tx.UpdatePayment(ctx, p); err != nil {
			return fmt.Errorf("update payment %s: %w", p.ID, err)
		}
		if err := tx.UpdateBookingStatus(ctx, b.ID, b.Status); err != nil {
			return fmt.Errorf("update booking %s: %w", b.ID, err)
		}
		if !v.success {
			if err := r.Ledger.Release(ctx, tx, b.Product, b.StartDate, b.Guests()); err != nil {
				return err
			}
		}
		b.UpdatedAt = now
		out = Settlement{Booking: *b, Payment: *p}
		return nil
	})
	if err != nil {
		var de *models.DomainError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, &models.PersistenceError{Op: "settle payment", Err: err}
	}

	r.notify(ctx, models.NewBookingNotification(v.event, out.Booking, out.Payment, v.reason))
	return &out, nil
}

func (r *DefaultReconciler) notify(ctx context.Context, n models.BookingNotification) {
	if r.Notifier == nil {
		return
	}
	if err := r.Notifier.Notify(context.WithoutCancel(ctx), n); err != nil {
		r.Logger.Error("failed to dispatch notification",
			zap.String("event", string(n.Event)),
			zap.String("bookingId", n.BookingID),
			zap.Error(err))
	}
}
