package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"tourbook/database/repository"
	"tourbook/models"
	"tourbook/services/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// CreateBooking reserves inventory, prices the booking, applies the voucher and
// stores booking and payment in one transaction. Asynchronous methods get a
// gateway redirect after commit; synchronous ones are confirmed on the spot.
func (w *DefaultWorkflow) CreateBooking(ctx context.Context, req models.BookingRequest) (*Result, error) {
	// Step 1: Validate before touching storage
	if err := w.validateRequest(&req); err != nil {
		return nil, err
	}
	capability, _ := req.Method.Capability()
	var gw payment.Gateway
	if capability == models.Asynchronous {
		g, err := w.Gateways.Lookup(req.Method)
		if err != nil {
			return nil, err
		}
		gw = g
	}
	start, _ := time.Parse(dateLayout, req.Date)

	logger := w.Logger.With(
		zap.String("userId", req.UserID),
		zap.String("product", req.Product.String()),
		zap.String("date", req.Date))

	var res Result
	stage := StageInitiated
	err := w.Store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		stage = StageInitiated
		now := w.now()

		// Step 2: Reserve inventory
		guests := req.Adults + req.Children
		if err := w.Ledger.Reserve(ctx, tx, req.Product, req.Date, guests); err != nil {
			return err
		}
		stage = StageInventoryReserved

		// Step 3: Price
		quote, err := w.Pricing.Price(ctx, tx, req.Product, req.Date, req.Adults, req.Children)
		if err != nil {
			return err
		}
		stage = StagePriced

		booking := models.Booking{
			ID:        uuid.New().String(),
			UserID:    req.UserID,
			Product:   req.Product,
			StartDate: req.Date,
			EndDate:   endDate(start, quote.Product).Format(dateLayout),
			Adults:    req.Adults,
			Children:  req.Children,
			UnitPrice: quote.UnitPrice,
			Subtotal:  quote.Total,
			Currency:  w.Currency,
			Status:    models.BookingPending,
			CreatedAt: now,
			UpdatedAt: now,
		}

		// Step 4: Apply voucher (optional)
		if req.VoucherCode != "" {
			eval, err := w.Vouchers.Evaluate(ctx, tx, req.VoucherCode, req.Product, now, quote.Total)
			if err != nil {
				return err
			}
			if err := w.Vouchers.Record(ctx, tx, eval, booking.ID, req.UserID); err != nil {
				return err
			}
			voucherID := eval.Voucher.ID
			booking.VoucherID = &voucherID
			booking.Discount = eval.Discount
			stage = StageVoucherApplied
		}
		booking.TotalPrice = booking.Subtotal - booking.Discount

		p := models.Payment{
			ID:        uuid.New().String(),
			BookingID: booking.ID,
			Amount:    booking.TotalPrice,
			Currency:  w.Currency,
			Method:    req.Method,
			Status:    models.PaymentPending,
			Reference: newReference(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if capability == models.Synchronous {
			p.Status = models.PaymentCompleted
			p.CompletedAt = &now
			booking.Status = models.BookingConfirmed
		}
		paymentID := p.ID
		booking.PaymentID = &paymentID

		// Step 5: Persist booking, then payment
		if err := tx.InsertBooking(ctx, &booking); err != nil {
			return err
		}
		stage = StageBookingPersisted
		if err := tx.InsertPayment(ctx, &p); err != nil {
			return err
		}
		stage = StagePaymentCreated

		res = Result{Booking: booking, Payment: p}
		return nil
	})
	if err != nil {
		var de *models.DomainError
		if !errors.As(err, &de) {
			err = &models.PersistenceError{Op: "create booking", Err: err}
		}
		logger.Info("booking rejected", zap.String("stage", string(stage)), zap.String("code", models.CodeOf(err)))
		return nil, &StageError{Stage: stage, Err: err}
	}

	// Step 6: Hand off to the payment method
	if capability == models.Synchronous {
		res.Stage = StageConfirmed
		w.notify(ctx, models.NewBookingNotification(models.EventBookingConfirmed, res.Booking, res.Payment, ""))
		logger.Info("booking confirmed", zap.String("bookingId", res.Booking.ID), zap.String("method", string(req.Method)))
		return &res, nil
	}

	res.Stage = StageAwaitingPayment
	url, err := w.buildRedirect(ctx, gw, res.Payment, req.ClientIP, req.Locale)
	if err != nil {
		// the booking stands; the client can ask for the redirect again
		logger.Warn("redirect build failed", zap.String("paymentId", res.Payment.ID), zap.Error(err))
	}
	res.RedirectURL = url
	logger.Info("booking awaiting payment", zap.String("bookingId", res.Booking.ID), zap.String("method", string(req.Method)))
	return &res, nil
}

// endDate is the last day of the stay: start plus the product's nights, or
// its days minus one when no nights are set.
func endDate(start time.Time, p models.Product) time.Time {
	span := p.Nights
	if span <= 0 && p.Days > 1 {
		span = p.Days - 1
	}
	return start.AddDate(0, 0, span)
}

// newReference is the order reference sent to gateways.
func newReference() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
}

func (w *DefaultWorkflow) notify(ctx context.Context, n models.BookingNotification) {
	if w.Notifier == nil {
		return
	}
	if err := w.Notifier.Notify(context.WithoutCancel(ctx), n); err != nil {
		w.Logger.Error("failed to dispatch notification",
			zap.String("event", string(n.Event)),
			zap.String("bookingId", n.BookingID),
			zap.Error(err))
	}
}
