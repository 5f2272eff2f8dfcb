package inventory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"tourbook/database/repository"
	memoryRepo "tourbook/database/repository/memory"
	"tourbook/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var tourX = models.TourRef("tour-x")

func newStore(t *testing.T, slots int, active bool) *memoryRepo.MemoryStore {
	t.Helper()
	s := memoryRepo.NewMemoryStore()
	require.NoError(t, s.SaveAvailability(context.Background(), &models.Availability{
		ID: "av-1", Product: tourX, Date: "2025-07-01",
		MaxSlots: slots, AvailableSlots: slots, IsActive: active,
	}))
	return s
}

func reserve(s repository.Store, l Ledger, ref models.ProductRef, date string, n int) error {
	return s.WithTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return l.Reserve(ctx, tx, ref, date, n)
	})
}

func TestReserve(t *testing.T) {
	l := &DefaultLedger{Logger: zap.NewNop()}

	t.Run("decrements", func(t *testing.T) {
		s := newStore(t, 5, true)
		require.NoError(t, reserve(s, l, tourX, "2025-07-01", 3))
		a, err := s.GetAvailability(context.Background(), tourX, "2025-07-01")
		require.NoError(t, err)
		assert.Equal(t, 2, a.AvailableSlots)
	})

	t.Run("unknown date", func(t *testing.T) {
		s := newStore(t, 5, true)
		assert.ErrorIs(t, reserve(s, l, tourX, "2025-07-02", 1), models.ErrDateNotAvailable)
	})

	t.Run("inactive row", func(t *testing.T) {
		s := newStore(t, 5, false)
		assert.ErrorIs(t, reserve(s, l, tourX, "2025-07-01", 1), models.ErrDateNotAvailable)
	})

	t.Run("not enough slots", func(t *testing.T) {
		s := newStore(t, 2, true)
		assert.ErrorIs(t, reserve(s, l, tourX, "2025-07-01", 3), models.ErrInsufficientInventory)
		a, _ := s.GetAvailability(context.Background(), tourX, "2025-07-01")
		assert.Equal(t, 2, a.AvailableSlots)
	})
}

func TestConcurrentReserveNeverOversells(t *testing.T) {
	l := &DefaultLedger{Logger: zap.NewNop()}
	s := newStore(t, 7, true)

	var ok, short int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := reserve(s, l, tourX, "2025-07-01", 2); {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case assert.ErrorIs(t, err, models.ErrInsufficientInventory):
				atomic.AddInt32(&short, 1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 3, ok)
	assert.EqualValues(t, 17, short)
	a, _ := s.GetAvailability(context.Background(), tourX, "2025-07-01")
	assert.Equal(t, 1, a.AvailableSlots)
}

func TestReleaseClampsAtMax(t *testing.T) {
	l := &DefaultLedger{Logger: zap.NewNop()}
	s := newStore(t, 4, true)
	require.NoError(t, reserve(s, l, tourX, "2025-07-01", 1))

	err := s.WithTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return l.Release(ctx, tx, tourX, "2025-07-01", 3)
	})
	require.NoError(t, err)
	a, _ := s.GetAvailability(context.Background(), tourX, "2025-07-01")
	assert.Equal(t, 4, a.AvailableSlots)
}
