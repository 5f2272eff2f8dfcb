package memoryRepo

import (
	"context"
	"time"

	"tourbook/database/repository"
	"tourbook/models"
)

// memoryTx works on the transaction's private copy; locks are implied by the
// store-wide transaction mutex.
type memoryTx struct {
	st *state
}

func (t *memoryTx) GetProduct(ctx context.Context, ref models.ProductRef) (*models.Product, error) {
	p, ok := t.st.products[ref.String()]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.Prices = append([]models.PriceEntry(nil), p.Prices...)
	return &p, nil
}

func (t *memoryTx) LockAvailability(ctx context.Context, ref models.ProductRef, date string) (*models.Availability, error) {
	id, ok := t.st.availIndex[availKey(ref, date)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a := t.st.availability[id]
	a.LockSeq++
	t.st.availability[id] = a
	return &a, nil
}

func (t *memoryTx) AdjustAvailability(ctx context.Context, id string, delta int) (*models.Availability, error) {
	a, ok := t.st.availability[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	next := a.AvailableSlots + delta
	if next < 0 || next > a.MaxSlots {
		return nil, repository.ErrConflict
	}
	a.AvailableSlots = next
	a.UpdatedAt = time.Now()
	t.st.availability[id] = a
	return &a, nil
}

func (t *memoryTx) LockVoucherByCode(ctx context.Context, code string) (*models.Voucher, error) {
	id, ok := t.st.voucherCodes[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	v := t.st.vouchers[id]
	v.LockSeq++
	t.st.vouchers[id] = v
	return &v, nil
}

func (t *memoryTx) CountVoucherUsages(ctx context.Context, voucherID string) (int, error) {
	return countUsages(t.st, voucherID), nil
}

func (t *memoryTx) InsertVoucherUsage(ctx context.Context, u *models.VoucherUsage) error {
	if _, ok := t.st.usages[u.ID]; ok {
		return repository.ErrConflict
	}
	for _, existing := range t.st.usages {
		if existing.BookingID == u.BookingID {
			return repository.ErrConflict
		}
	}
	t.st.usages[u.ID] = *u
	return nil
}

func (t *memoryTx) InsertBooking(ctx context.Context, b *models.Booking) error {
	if _, ok := t.st.bookings[b.ID]; ok {
		return repository.ErrConflict
	}
	t.st.bookings[b.ID] = *b
	return nil
}

func (t *memoryTx) GetBookingForUpdate(ctx context.Context, id string) (*models.Booking, error) {
	b, ok := t.st.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (t *memoryTx) UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) error {
	b, ok := t.st.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = time.Now()
	t.st.bookings[id] = b
	return nil
}

func (t *memoryTx) InsertPayment(ctx context.Context, p *models.Payment) error {
	if _, ok := t.st.payments[p.ID]; ok {
		return repository.ErrConflict
	}
	if _, ok := t.st.paymentRefs[p.Reference]; ok {
		return repository.ErrConflict
	}
	for _, existing := range t.st.payments {
		if existing.BookingID == p.BookingID {
			return repository.ErrConflict
		}
	}
	t.st.payments[p.ID] = *p
	t.st.paymentRefs[p.Reference] = p.ID
	return nil
}

func (t *memoryTx) LockPayment(ctx context.Context, id string) (*models.Payment, error) {
	p, ok := t.st.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.LockSeq++
	t.st.payments[id] = p
	return &p, nil
}

func (t *memoryTx) LockPaymentByReference(ctx context.Context, reference string) (*models.Payment, error) {
	id, ok := t.st.paymentRefs[reference]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return t.LockPayment(ctx, id)
}

func (t *memoryTx) UpdatePayment(ctx context.Context, p *models.Payment) error {
	old, ok := t.st.payments[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if p.TransactionID != nil {
		for id, other := range t.st.payments {
			if id != p.ID && other.TransactionID != nil && *other.TransactionID == *p.TransactionID {
				return repository.ErrConflict
			}
		}
	}
	if old.Reference != p.Reference {
		delete(t.st.paymentRefs, old.Reference)
		t.st.paymentRefs[p.Reference] = p.ID
	}
	t.st.payments[p.ID] = *p
	return nil
}
