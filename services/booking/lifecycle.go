package booking

import (
	"context"
	"errors"
	"fmt"

	"tourbook/database/repository"
	"tourbook/models"

	"go.uber.org/zap"
)

const expireBatchSize = 100

func (w *DefaultWorkflow) GetBooking(ctx context.Context, bookingID, userID string) (*models.Booking, *models.Payment, error) {
	b, err := w.Store.GetBooking(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, models.ErrNotFound
	}
	if err != nil {
		return nil, nil, &models.PersistenceError{Op: "load booking", Err: err}
	}
	if b.UserID != userID {
		return nil, nil, models.ErrNotFound
	}
	if b.PaymentID == nil {
		return b, nil, nil
	}
	p, err := w.Store.GetPayment(ctx, *b.PaymentID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, &models.PersistenceError{Op: "load payment", Err: err}
	}
	return b, p, nil
}

// CancelBooking cancels a pending booking and gives its slots back. Confirmed
// bookings are not cancellable here; refunds go through support.
func (w *DefaultWorkflow) CancelBooking(ctx context.Context, bookingID, userID string) (*models.Booking, error) {
	b, _, err := w.GetBooking(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}
	if b.Status != models.BookingPending || b.PaymentID == nil {
		return nil, models.ErrNotCancellable
	}

	s, err := w.Reconciler.Cancel(ctx, *b.PaymentID, "cancelled by customer")
	if errors.Is(err, models.ErrAlreadyReconciled) {
		return nil, models.ErrNotCancellable
	}
	if err != nil {
		return nil, err
	}
	w.dropRedirect(ctx, s.Payment.ID)
	w.Logger.Info("booking cancelled", zap.String("bookingId", bookingID), zap.String("userId", userID))
	return &s.Booking, nil
}

// ExpireStale fails asynchronous payments left pending longer than PendingTTL
// and returns how many it expired. A callback that wins the race simply makes
// the expiry a no-op.
func (w *DefaultWorkflow) ExpireStale(ctx context.Context) (int, error) {
	if w.PendingTTL <= 0 {
		return 0, nil
	}
	cutoff := w.now().Add(-w.PendingTTL)
	expired := 0
	for {
		batch, err := w.Store.ListStalePending(ctx, cutoff, expireBatchSize)
		if err != nil {
			return expired, fmt.Errorf("list stale payments: %w", err)
		}
		progressed := false
		for _, p := range batch {
			if err := ctx.Err(); err != nil {
				return expired, err
			}
			_, err := w.Reconciler.Expire(ctx, p.ID, "payment window expired")
			switch {
			case err == nil:
				expired++
				progressed = true
				w.dropRedirect(ctx, p.ID)
			case errors.Is(err, models.ErrAlreadyReconciled):
				progressed = true
			default:
				w.Logger.Warn("failed to expire payment", zap.String("paymentId", p.ID), zap.Error(err))
			}
		}
		if len(batch) < expireBatchSize || !progressed {
			break
		}
	}
	if expired > 0 {
		w.Logger.Info("expired stale bookings", zap.Int("count", expired))
	}
	return expired, nil
}

func (w *DefaultWorkflow) dropRedirect(ctx context.Context, paymentID string) {
	if w.Redirects == nil {
		return
	}
	if err := w.Redirects.Delete(ctx, paymentID); err != nil {
		w.Logger.Warn("redirect cache delete failed", zap.String("paymentId", paymentID), zap.Error(err))
	}
}
