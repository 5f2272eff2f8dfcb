package pricing

import (
	"context"
	"errors"
	"fmt"

	"tourbook/database/repository"
	"tourbook/models"
)

// Quote is the resolved unit price and the guest total, both in minor units.
type Quote struct {
	UnitPrice int64
	Total     int64
	Product   models.Product
}

// Calculator resolves prices for a product departure.
type Calculator interface {
	Price(ctx context.Context, tx repository.Tx, ref models.ProductRef, date string, adults, children int) (Quote, error)
}

// DefaultCalculator implements Calculator.
type DefaultCalculator struct{}

func (c *DefaultCalculator) Price(ctx context.Context, tx repository.Tx, ref models.ProductRef, date string, adults, children int) (Quote, error) {
	p, err := tx.GetProduct(ctx, ref)
	if errors.Is(err, repository.ErrNotFound) {
		return Quote{}, models.ErrNoPriceAvailable
	}
	if err != nil {
		return Quote{}, fmt.Errorf("load product %s: %w", ref, err)
	}
	unit, ok := UnitPrice(*p, date)
	if !ok {
		return Quote{}, models.ErrNoPriceAvailable
	}
	return Quote{UnitPrice: unit, Total: Total(unit, adults, children), Product: *p}, nil
}

// UnitPrice returns the latest entry effective on or before date, falling
// back to the product's base price. Dates compare lexically (YYYY-MM-DD).
func UnitPrice(p models.Product, date string) (int64, bool) {
	var (
		best  *models.PriceEntry
		found bool
	)
	for i := range p.Prices {
		e := &p.Prices[i]
		if e.EffectiveFrom > date {
			continue
		}
		if !found || e.EffectiveFrom >= best.EffectiveFrom {
			best, found = e, true
		}
	}
	if found {
		return best.UnitPrice, true
	}
	if p.BasePrice > 0 {
		return p.BasePrice, true
	}
	return 0, false
}

// Total bills children at half rate: unit * (adults + children/2), rounded
// half up to the minor unit.
func Total(unit int64, adults, children int) int64 {
	halves := unit * int64(2*adults+children)
	return (halves + 1) / 2
}
