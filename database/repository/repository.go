package repository

import (
	"context"
	"errors"
	"time"

	"tourbook/models"
)

var (
	// ErrNotFound is returned by every backend when a looked-up row does not exist.
	ErrNotFound = models.ErrNotFound

	// ErrConflict is returned when a guarded write would break a uniqueness or
	// bounds constraint (duplicate key, slots outside [0, max]).
	ErrConflict = errors.New("repository: conflicting write")
)

// TxFunc is the unit of work run by Store.WithTx. A non-nil error rolls back
// every write made through tx. Backends may run fn more than once when the
// underlying database asks for a retry, so fn must not have side effects
// outside tx.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the backend-neutral persistence boundary.
type Store interface {
	WithTx(ctx context.Context, fn TxFunc) error

	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	GetAvailability(ctx context.Context, ref models.ProductRef, date string) (*models.Availability, error)
	CountVoucherUsages(ctx context.Context, voucherID string) (int, error)
	// ListStalePending returns pending payments of asynchronous methods created
	// before the cutoff, oldest first.
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Payment, error)

	SaveProduct(ctx context.Context, p *models.Product) error
	SaveAvailability(ctx context.Context, a *models.Availability) error
	InsertVoucher(ctx context.Context, v *models.Voucher) error

	EnsureIndexes(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Tx exposes the reads and writes allowed inside a transaction. Lock* methods
// hold an exclusive lock on the row until the transaction ends.
type Tx interface {
	GetProduct(ctx context.Context, ref models.ProductRef) (*models.Product, error)

	LockAvailability(ctx context.Context, ref models.ProductRef, date string) (*models.Availability, error)
	// AdjustAvailability adds delta to available_slots. It returns ErrConflict
	// and writes nothing if the result would leave [0, max_slots].
	AdjustAvailability(ctx context.Context, id string, delta int) (*models.Availability, error)

	LockVoucherByCode(ctx context.Context, code string) (*models.Voucher, error)
	CountVoucherUsages(ctx context.Context, voucherID string) (int, error)
	InsertVoucherUsage(ctx context.Context, u *models.VoucherUsage) error

	InsertBooking(ctx context.Context, b *models.Booking) error
	GetBookingForUpdate(ctx context.Context, id string) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) error

	InsertPayment(ctx context.Context, p *models.Payment) error
	LockPayment(ctx context.Context, id string) (*models.Payment, error)
	LockPaymentByReference(ctx context.Context, reference string) (*models.Payment, error)
	UpdatePayment(ctx context.Context, p *models.Payment) error
}
