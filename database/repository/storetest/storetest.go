// Package storetest holds behaviour every repository.Store backend must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tourbook/database/repository"
	"tourbook/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty, migrated store.
type Factory func(t *testing.T) repository.Store

// Run executes the contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("MissingRowsAreNotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
	t.Run("RollbackDiscardsWrites", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("AdjustAvailabilityGuardsBounds", func(t *testing.T) { testAdjustBounds(t, newStore(t)) })
	t.Run("ConcurrentDecrementsSerialise", func(t *testing.T) { testConcurrentDecrement(t, newStore(t)) })
	t.Run("OnePaymentPerBooking", func(t *testing.T) { testOnePaymentPerBooking(t, newStore(t)) })
	t.Run("StalePendingListsAsyncOnly", func(t *testing.T) { testStalePending(t, newStore(t)) })
}

func seedAvailability(t *testing.T, s repository.Store, slots int) *models.Availability {
	t.Helper()
	ref := models.TourRef(uuid.NewString())
	a := &models.Availability{
		ID:             uuid.NewString(),
		Product:        ref,
		Date:           "2025-07-01",
		MaxSlots:       slots,
		AvailableSlots: slots,
		IsActive:       true,
		UpdatedAt:      time.Now(),
	}
	require.NoError(t, s.SaveAvailability(context.Background(), a))
	return a
}

func testNotFound(t *testing.T, s repository.Store) {
	ctx := context.Background()
	_, err := s.GetBooking(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.GetPayment(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.LockAvailability(ctx, models.TourRef("missing"), "2025-07-01")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		_, err = tx.LockVoucherByCode(ctx, "NOPE")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		_, err = tx.LockPaymentByReference(ctx, "nope")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func testRollback(t *testing.T, s repository.Store) {
	ctx := context.Background()
	a := seedAvailability(t, s, 3)
	boom := errors.New("boom")
	bookingID := uuid.NewString()

	err := s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.AdjustAvailability(ctx, a.ID, -2); err != nil {
			return err
		}
		if err := tx.InsertBooking(ctx, &models.Booking{
			ID: bookingID, UserID: "u1", Product: a.Product, StartDate: a.Date, EndDate: a.Date,
			Adults: 2, Status: models.BookingPending, CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetAvailability(ctx, a.Product, a.Date)
	require.NoError(t, err)
	assert.Equal(t, 3, got.AvailableSlots)
	_, err = s.GetBooking(ctx, bookingID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testAdjustBounds(t *testing.T, s repository.Store) {
	ctx := context.Background()
	a := seedAvailability(t, s, 2)

	err := s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.AdjustAvailability(ctx, a.ID, -3)
		return err
	})
	assert.ErrorIs(t, err, repository.ErrConflict)

	err = s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.AdjustAvailability(ctx, a.ID, 1)
		return err
	})
	assert.ErrorIs(t, err, repository.ErrConflict)

	err = s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		got, err := tx.AdjustAvailability(ctx, a.ID, -2)
		if err != nil {
			return err
		}
		assert.Equal(t, 0, got.AvailableSlots)
		return nil
	})
	require.NoError(t, err)
}

func testConcurrentDecrement(t *testing.T, s repository.Store) {
	ctx := context.Background()
	a := seedAvailability(t, s, 5)

	const workers = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
				row, err := tx.LockAvailability(ctx, a.Product, a.Date)
				if err != nil {
					return err
				}
				if row.AvailableSlots < 1 {
					return models.ErrInsufficientInventory
				}
				_, err = tx.AdjustAvailability(ctx, row.ID, -1)
				return err
			})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, success)
	got, err := s.GetAvailability(ctx, a.Product, a.Date)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableSlots)
}

func newPayment(bookingID string, method models.PaymentMethod, createdAt time.Time) *models.Payment {
	return &models.Payment{
		ID:        uuid.NewString(),
		BookingID: bookingID,
		Amount:    1000,
		Currency:  "VND",
		Method:    method,
		Status:    models.PaymentPending,
		Reference: uuid.NewString(),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func testOnePaymentPerBooking(t *testing.T, s repository.Store) {
	ctx := context.Background()
	bookingID := uuid.NewString()
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.InsertPayment(ctx, newPayment(bookingID, models.MethodVNPay, time.Now()))
	}))
	err := s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.InsertPayment(ctx, newPayment(bookingID, models.MethodVNPay, time.Now()))
	})
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func testStalePending(t *testing.T, s repository.Store) {
	ctx := context.Background()
	old := time.Now().Add(-2 * time.Hour)
	stale := newPayment(uuid.NewString(), models.MethodVNPay, old)
	cash := newPayment(uuid.NewString(), models.MethodCash, old)
	fresh := newPayment(uuid.NewString(), models.MethodStripe, time.Now())
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		for _, p := range []*models.Payment{stale, cash, fresh} {
			if err := tx.InsertPayment(ctx, p); err != nil {
				return err
			}
		}
		return nil
	}))

	got, err := s.ListStalePending(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stale.ID, got[0].ID)
}
