// Package memoryRepo is an in-process Store. Transactions are serialised by one
// mutex and run against a copy of the data that replaces the live copy on commit.
package memoryRepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"tourbook/database/repository"
	"tourbook/models"
)

type state struct {
	products     map[string]models.Product // keyed by ProductRef.String()
	availability map[string]models.Availability
	availIndex   map[string]string // ref|date -> availability id
	vouchers     map[string]models.Voucher
	voucherCodes map[string]string
	usages       map[string]models.VoucherUsage
	bookings     map[string]models.Booking
	payments     map[string]models.Payment
	paymentRefs  map[string]string
}

func newState() *state {
	return &state{
		products:     map[string]models.Product{},
		availability: map[string]models.Availability{},
		availIndex:   map[string]string{},
		vouchers:     map[string]models.Voucher{},
		voucherCodes: map[string]string{},
		usages:       map[string]models.VoucherUsage{},
		bookings:     map[string]models.Booking{},
		payments:     map[string]models.Payment{},
		paymentRefs:  map[string]string{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		products:     cloneMap(s.products),
		availability: cloneMap(s.availability),
		availIndex:   cloneMap(s.availIndex),
		vouchers:     cloneMap(s.vouchers),
		voucherCodes: cloneMap(s.voucherCodes),
		usages:       cloneMap(s.usages),
		bookings:     cloneMap(s.bookings),
		payments:     cloneMap(s.payments),
		paymentRefs:  cloneMap(s.paymentRefs),
	}
}

func availKey(ref models.ProductRef, date string) string {
	return ref.String() + "|" + date
}

// MemoryStore implements repository.Store in memory.
type MemoryStore struct {
	txMu sync.Mutex   // held for the whole of a transaction
	mu   sync.RWMutex // guards data
	data *state
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newState()}
}

func (s *MemoryStore) WithTx(ctx context.Context, fn repository.TxFunc) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &memoryTx{st: work}); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) read(f func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return f(s.data)
}

// write applies f to the live data outside of any transaction.
func (s *MemoryStore) write(f func(st *state) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return f(s.data)
}

func (s *MemoryStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var out *models.Booking
	err := s.read(func(st *state) error {
		b, ok := st.bookings[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &b
		return nil
	})
	return out, err
}

func (s *MemoryStore) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	var out *models.Payment
	err := s.read(func(st *state) error {
		p, ok := st.payments[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (s *MemoryStore) GetAvailability(ctx context.Context, ref models.ProductRef, date string) (*models.Availability, error) {
	var out *models.Availability
	err := s.read(func(st *state) error {
		id, ok := st.availIndex[availKey(ref, date)]
		if !ok {
			return repository.ErrNotFound
		}
		a := st.availability[id]
		out = &a
		return nil
	})
	return out, err
}

func (s *MemoryStore) CountVoucherUsages(ctx context.Context, voucherID string) (int, error) {
	var n int
	err := s.read(func(st *state) error {
		n = countUsages(st, voucherID)
		return nil
	})
	return n, err
}

func (s *MemoryStore) ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Payment, error) {
	var out []models.Payment
	err := s.read(func(st *state) error {
		for _, p := range st.payments {
			if p.Status != models.PaymentPending || !p.CreatedAt.Before(before) {
				continue
			}
			if c, _ := p.Method.Capability(); c != models.Asynchronous {
				continue
			}
			out = append(out, p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (s *MemoryStore) SaveProduct(ctx context.Context, p *models.Product) error {
	return s.write(func(st *state) error {
		cp := *p
		cp.Prices = append([]models.PriceEntry(nil), p.Prices...)
		st.products[p.Ref().String()] = cp
		return nil
	})
}

func (s *MemoryStore) SaveAvailability(ctx context.Context, a *models.Availability) error {
	return s.write(func(st *state) error {
		key := availKey(a.Product, a.Date)
		if old, ok := st.availIndex[key]; ok && old != a.ID {
			delete(st.availability, old)
		}
		st.availIndex[key] = a.ID
		st.availability[a.ID] = *a
		return nil
	})
}

func (s *MemoryStore) InsertVoucher(ctx context.Context, v *models.Voucher) error {
	return s.write(func(st *state) error {
		if _, ok := st.voucherCodes[v.Code]; ok {
			return repository.ErrConflict
		}
		if _, ok := st.vouchers[v.ID]; ok {
			return repository.ErrConflict
		}
		st.vouchers[v.ID] = *v
		st.voucherCodes[v.Code] = v.ID
		return nil
	})
}

func (s *MemoryStore) EnsureIndexes(ctx context.Context) error { return nil }

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func countUsages(st *state, voucherID string) int {
	n := 0
	for _, u := range st.usages {
		if u.VoucherID == voucherID {
			n++
		}
	}
	return n
}
