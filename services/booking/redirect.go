package booking

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

// RedirectFor returns the gateway URL for a pending asynchronous payment owned
// by q.UserID, reusing a cached URL while the gateway still accepts it.
func (w *DefaultWorkflow) RedirectFor(ctx context.Context, q RedirectQuery) (string, error) {
	p, err := w.Store.GetPayment(ctx, q.PaymentID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", &models.PersistenceError{Op: "load payment", Err: err}
	}
	b, err := w.Store.GetBooking(ctx, p.BookingID)
	if err != nil || b.UserID != q.UserID {
		return "", models.ErrNotFound
	}
	if p.Status != models.PaymentPending {
		return "", models.ErrAlreadyReconciled
	}
	deadline := w.paymentDeadline(*p)
	if !deadline.IsZero() && !w.now().Before(deadline) {
		return "", models.ErrPaymentWindowClosed
	}
	gw, err := w.Gateways.Lookup(p.Method)
	if err != nil {
		return "", err
	}
	return w.buildRedirect(ctx, gw, *p, q.ClientIP, q.Locale)
}

// paymentDeadline is when ExpireStale will fail the payment. Zero when pending
// payments never expire.
func (w *DefaultWorkflow) paymentDeadline(p models.Payment) time.Time {
	if w.PendingTTL <= 0 {
		return time.Time{}
	}
	return p.CreatedAt.Add(w.PendingTTL)
}

func (w *DefaultWorkflow) buildRedirect(ctx context.Context, gw payment.Gateway, p models.Payment, clientIP, locale string) (string, error) {
	cache := w.Redirects
	if cache == nil {
		cache = payment.NoopRedirectCache{}
	}
	now := w.now()
	deadline := w.paymentDeadline(p)
	if url, ok, err := cache.Get(ctx, p.ID); err != nil {
		w.Logger.Warn("redirect cache read failed", zap.String("paymentId", p.ID), zap.Error(err))
	} else if ok {
		return url, nil
	}

	url, err := gw.BuildRedirect(ctx, p, payment.RedirectRequest{
		ClientIP:  clientIP,
		Locale:    locale,
		OrderInfo: fmt.Sprintf("Thanh toan don hang %s", p.Reference),
		Now:       now,
		Deadline:  deadline,
	})
	if err != nil {
		return "", err
	}
	ttl := gw.RedirectTTL()
	if !deadline.IsZero() && deadline.Sub(now) < ttl {
		ttl = deadline.Sub(now)
	}
	if err := cache.Set(ctx, p.ID, url, ttl); err != nil {
		w.Logger.Warn("redirect cache write failed", zap.String("paymentId", p.ID), zap.Error(err))
	}
	return url, nil
}
