package inventory

import (
	"context"
	"errors"
	"fmt"

	"tourbook/database/repository"
	"tourbook/models"

	"go.uber.org/zap"
)

// Ledger reserves and releases per-date slots. Both calls run inside the
// caller's transaction and lock the availability row first.
type Ledger interface {
	Reserve(ctx context.Context, tx repository.Tx, ref models.ProductRef, date string, count int) error
	Release(ctx context.Context, tx repository.Tx, ref models.ProductRef, date string, count int) error
}

// DefaultLedger implements Ledger.
type DefaultLedger struct {
	Logger *zap.Logger
}

func (l *DefaultLedger) Reserve(ctx context.Context, tx repository.Tx, ref models.ProductRef, date string, count int) error {
	if count <= 0 {
		return models.ValidationError("reserve count must be positive")
	}
	row, err := tx.LockAvailability(ctx, ref, date)
	if errors.Is(err, repository.ErrNotFound) {
		return models.ErrDateNotAvailable
	}
	if err != nil {
		return fmt.Errorf("lock availability %s %s: %w", ref, date, err)
	}
	if !row.IsActive {
		return models.ErrDateNotAvailable
	}
	if row.AvailableSlots < count {
		return models.ErrInsufficientInventory
	}

	if _, err := tx.AdjustAvailability(ctx, row.ID, -count); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return models.ErrInsufficientInventory
		}
		return fmt.Errorf("decrement availability %s: %w", row.ID, err)
	}
	return nil
}

// Release returns count slots. The result is clamped to max_slots; a clamp
// means an earlier release was double-counted and is logged.
func (l *DefaultLedger) Release(ctx context.Context, tx repository.Tx, ref models.ProductRef, date string, count int) error {
	if count <= 0 {
		return nil
	}
	row, err := tx.LockAvailability(ctx, ref, date)
	if errors.Is(err, repository.ErrNotFound) {
		l.Logger.Warn("release for missing availability row",
			zap.String("product", ref.String()), zap.String("date", date), zap.Int("count", count))
		return nil
	}
	if err != nil {
		return fmt.Errorf("lock availability %s %s: %w", ref, date, err)
	}

	delta := count
	if room := row.MaxSlots - row.AvailableSlots; delta > room {
		l.Logger.Warn("release clamped to max slots",
			zap.String("availabilityId", row.ID), zap.Int("requested", count), zap.Int("applied", room))
		delta = room
	}
	if delta == 0 {
		return nil
	}
	if _, err := tx.AdjustAvailability(ctx, row.ID, delta); err != nil {
		return fmt.Errorf("increment availability %s: %w", row.ID, err)
	}
	return nil
}
