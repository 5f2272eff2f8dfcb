package postgresRepo

import (
	"context"
	"fmt"
	"time"

	"tourbook/database/repository"
	"tourbook/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type pgTx struct {
	db *gorm.DB
}

func (t *pgTx) forUpdate() *gorm.DB {
	return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *pgTx) GetProduct(ctx context.Context, ref models.ProductRef) (*models.Product, error) {
	var p models.Product
	err := t.db.Preload("Prices", func(db *gorm.DB) *gorm.DB {
		return db.Order("effective_from ASC")
	}).Where("id = ? AND kind = ?", ref.ID, ref.Kind).First(&p).Error
	if err := mapErr(err); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *pgTx) LockAvailability(ctx context.Context, ref models.ProductRef, date string) (*models.Availability, error) {
	var a models.Availability
	if err := mapErr(availScope(t.forUpdate(), ref, date).First(&a).Error); err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *pgTx) AdjustAvailability(ctx context.Context, id string, delta int) (*models.Availability, error) {
	res := t.db.Model(&models.Availability{}).
		Where("id = ? AND available_slots + ? BETWEEN 0 AND max_slots", id, delta).
		Updates(map[string]interface{}{
			"available_slots": gorm.Expr("available_slots + ?", delta),
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("adjust availability: %w", res.Error)
	}

	var a models.Availability
	if err := mapErr(t.db.Where("id = ?", id).First(&a).Error); err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, repository.ErrConflict
	}
	return &a, nil
}

func (t *pgTx) LockVoucherByCode(ctx context.Context, code string) (*models.Voucher, error) {
	var v models.Voucher
	if err := mapErr(t.forUpdate().Where("code = ?", code).First(&v).Error); err != nil {
		return nil, err
	}
	return &v, nil
}

func (t *pgTx) CountVoucherUsages(ctx context.Context, voucherID string) (int, error) {
	var n int64
	if err := t.db.Model(&models.VoucherUsage{}).Where("voucher_id = ?", voucherID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count voucher usages: %w", err)
	}
	return int(n), nil
}

func (t *pgTx) InsertVoucherUsage(ctx context.Context, u *models.VoucherUsage) error {
	return mapWriteErr("insert voucher usage", t.db.Create(u).Error)
}

func (t *pgTx) InsertBooking(ctx context.Context, b *models.Booking) error {
	return mapWriteErr("insert booking", t.db.Create(b).Error)
}

func (t *pgTx) GetBookingForUpdate(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	if err := mapErr(t.forUpdate().Where("id = ?", id).First(&b).Error); err != nil {
		return nil, err
	}
	return &b, nil
}

func (t *pgTx) UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) error {
	res := t.db.Model(&models.Booking{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return fmt.Errorf("update booking %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *pgTx) InsertPayment(ctx context.Context, p *models.Payment) error {
	return mapWriteErr("insert payment", t.db.Create(p).Error)
}

func (t *pgTx) LockPayment(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	if err := mapErr(t.forUpdate().Where("id = ?", id).First(&p).Error); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *pgTx) LockPaymentByReference(ctx context.Context, reference string) (*models.Payment, error) {
	var p models.Payment
	if err := mapErr(t.forUpdate().Where("reference = ?", reference).First(&p).Error); err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *pgTx) UpdatePayment(ctx context.Context, p *models.Payment) error {
	res := t.db.Model(&models.Payment{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"status":         p.Status,
		"transaction_id": p.TransactionID,
		"response_code":  p.ResponseCode,
		"failure_reason": p.FailureReason,
		"updated_at":     p.UpdatedAt,
		"completed_at":   p.CompletedAt,
	})
	if res.Error != nil {
		return mapWriteErr("update payment", res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
