package pricing

import (
	"context"
	"testing"

	"tourbook/database/repository"
	memoryRepo "tourbook/database/repository/memory"
	"tourbook/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tourX = models.Product{
	ID: "tour-x", Kind: models.ProductTour, Name: "Tour X", Days: 3, Nights: 2,
	Prices: []models.PriceEntry{
		{EffectiveFrom: "2025-06-01", UnitPrice: 1_500_000},
		{EffectiveFrom: "2025-01-01", UnitPrice: 1_000_000},
		{EffectiveFrom: "2025-09-01", UnitPrice: 1_200_000},
	},
}

func TestUnitPrice(t *testing.T) {
	cases := []struct {
		date string
		want int64
		ok   bool
	}{
		{"2024-12-31", 0, false},
		{"2025-01-01", 1_000_000, true},
		{"2025-05-31", 1_000_000, true},
		{"2025-07-01", 1_500_000, true},
		{"2025-09-01", 1_200_000, true},
	}
	for _, tc := range cases {
		t.Run(tc.date, func(t *testing.T) {
			got, ok := UnitPrice(tourX, tc.date)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}

	withBase := tourX
	withBase.BasePrice = 900_000
	got, ok := UnitPrice(withBase, "2024-12-31")
	assert.True(t, ok)
	assert.EqualValues(t, 900_000, got)
}

func TestTotal(t *testing.T) {
	assert.EqualValues(t, 2*1_500_000, Total(1_500_000, 2, 0))
	assert.EqualValues(t, 3*1_500_000, Total(1_500_000, 2, 2))
	assert.EqualValues(t, 150, Total(100, 1, 1))
	// 101 * 1.5 = 151.5 rounds up
	assert.EqualValues(t, 152, Total(101, 1, 1))
	assert.EqualValues(t, 0, Total(0, 3, 1))
}

func TestPrice(t *testing.T) {
	s := memoryRepo.NewMemoryStore()
	p := tourX
	require.NoError(t, s.SaveProduct(context.Background(), &p))
	c := &DefaultCalculator{}

	err := s.WithTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		q, err := c.Price(ctx, tx, p.Ref(), "2025-07-01", 2, 2)
		require.NoError(t, err)
		assert.EqualValues(t, 1_500_000, q.UnitPrice)
		assert.EqualValues(t, 4_500_000, q.Total)
		assert.Equal(t, "Tour X", q.Product.Name)

		_, err = c.Price(ctx, tx, p.Ref(), "2024-01-01", 1, 0)
		assert.ErrorIs(t, err, models.ErrNoPriceAvailable)

		_, err = c.Price(ctx, tx, models.TourRef("unknown"), "2025-07-01", 1, 0)
		assert.ErrorIs(t, err, models.ErrNoPriceAvailable)
		return nil
	})
	require.NoError(t, err)
}
