package voucher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"tourbook/database/repository"
	"tourbook/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Evaluate checks, in order: existence, validity window, product scope, usage limit.
func (e *DefaultEvaluator) Evaluate(ctx context.Context, tx repository.Tx, code string, ref models.ProductRef, asOf time.Time, total int64) (*Evaluation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, models.ErrInvalidCode
	}
	v, err := tx.LockVoucherByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, models.ErrInvalidCode
	}
	if err != nil {
		return nil, fmt.Errorf("lock voucher %q: %w", code, err)
	}

	if asOf.Before(v.StartDate) || asOf.After(windowEnd(v.EndDate)) {
		return nil, models.ErrVoucherExpired
	}
	if !v.AppliesTo(ref) {
		return nil, models.ErrVoucherNotApplicable
	}
	if v.UsageLimit != nil {
		used, err := tx.CountVoucherUsages(ctx, v.ID)
		if err != nil {
			return nil, fmt.Errorf("count usages of voucher %s: %w", v.ID, err)
		}
		if used >= *v.UsageLimit {
			return nil, models.ErrUsageLimitReached
		}
	}

	return &Evaluation{Voucher: *v, Discount: Discount(*v, total)}, nil
}

// windowEnd treats an end date stored at midnight as the whole of that day.
func windowEnd(end time.Time) time.Time {
	y, m, d := end.Date()
	if !end.Equal(time.Date(y, m, d, 0, 0, 0, 0, end.Location())) {
		return end
	}
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), end.Location())
}

// Discount computes what v takes off total. Fixed amounts take precedence over
// percentages; the result never exceeds total.
func Discount(v models.Voucher, total int64) int64 {
	if total <= 0 {
		return 0
	}
	var d int64
	switch {
	case v.DiscountFixed != nil:
		d = *v.DiscountFixed
	case v.DiscountPercentage != nil:
		d = int64(math.Round(float64(total) * *v.DiscountPercentage / 100))
	}
	if d < 0 {
		return 0
	}
	if d > total {
		return total
	}
	return d
}

func (e *DefaultEvaluator) Record(ctx context.Context, tx repository.Tx, eval *Evaluation, bookingID, userID string) error {
	usage := &models.VoucherUsage{
		ID:              uuid.New().String(),
		VoucherID:       eval.Voucher.ID,
		BookingID:       bookingID,
		UserID:          userID,
		DiscountApplied: eval.Discount,
		CreatedAt:       time.Now(),
	}
	if err := tx.InsertVoucherUsage(ctx, usage); err != nil {
		return fmt.Errorf("record voucher usage: %w", err)
	}
	e.Logger.Debug("voucher applied",
		zap.String("voucherId", eval.Voucher.ID),
		zap.String("bookingId", bookingID),
		zap.Int64("discount", eval.Discount))
	return nil
}
