package voucher

import (
	"context"
	"time"

	"tourbook/database/repository"
	"tourbook/models"

	"go.uber.org/zap"
)

// Evaluation is an accepted voucher together with the discount it grants.
type Evaluation struct {
	Voucher  models.Voucher
	Discount int64
}

// Evaluator checks voucher codes and records their use. Evaluate locks the
// voucher row, so Evaluate and Record must share one transaction.
type Evaluator interface {
	Evaluate(ctx context.Context, tx repository.Tx, code string, ref models.ProductRef, asOf time.Time, total int64) (*Evaluation, error)
	Record(ctx context.Context, tx repository.Tx, eval *Evaluation, bookingID, userID string) error
	Create(ctx context.Context, store repository.Store, v *models.Voucher) error
}

// DefaultEvaluator implements Evaluator.
type DefaultEvaluator struct {
	Logger *zap.Logger
}
