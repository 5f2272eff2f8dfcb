package voucher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tourbook/database/repository"
	"tourbook/models"

	"github.com/google/uuid"
)

// Validate rejects vouchers that would be ambiguous or unusable.
func Validate(v *models.Voucher) error {
	if strings.TrimSpace(v.Code) == "" {
		return models.ValidationError("voucher code is required")
	}
	if v.EndDate.Before(v.StartDate) {
		return models.ValidationError("voucher end date is before its start date")
	}
	switch {
	case v.DiscountFixed != nil && v.DiscountPercentage != nil:
		return models.ValidationError("voucher sets both a fixed and a percentage discount")
	case v.DiscountFixed != nil:
		if *v.DiscountFixed <= 0 {
			return models.ValidationError("fixed discount must be positive")
		}
	case v.DiscountPercentage != nil:
		if p := *v.DiscountPercentage; p <= 0 || p > 100 {
			return models.ValidationError("percentage discount must be in (0, 100]")
		}
	default:
		return models.ValidationError("voucher has no discount")
	}
	if v.UsageLimit != nil && *v.UsageLimit < 1 {
		return models.ValidationError("usage limit must be at least 1")
	}
	for _, ref := range v.ApplicableProducts {
		if !ref.Kind.Valid() || ref.ID == "" {
			return models.ValidationError(fmt.Sprintf("invalid applicable product %q", ref.String()))
		}
	}
	return nil
}

// Create validates v and stores it.
func (e *DefaultEvaluator) Create(ctx context.Context, store repository.Store, v *models.Voucher) error {
	v.Code = strings.TrimSpace(v.Code)
	if err := Validate(v); err != nil {
		return err
	}
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	if err := store.InsertVoucher(ctx, v); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return models.ValidationError(fmt.Sprintf("voucher code %q already exists", v.Code))
		}
		return &models.PersistenceError{Op: "create voucher", Err: err}
	}
	return nil
}
