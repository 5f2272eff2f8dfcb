package postgresRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourbook/database/repository"
	"tourbook/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStore implements repository.Store with gorm. Row locks are real
// SELECT ... FOR UPDATE locks held until commit.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) WithTx(ctx context.Context, fn repository.TxFunc) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &pgTx{db: tx})
	})
}

func (s *PostgresStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	if err := mapErr(s.db.WithContext(ctx).Where("id = ?", id).First(&b).Error); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *PostgresStore) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	if err := mapErr(s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetAvailability(ctx context.Context, ref models.ProductRef, date string) (*models.Availability, error) {
	var a models.Availability
	err := availScope(s.db.WithContext(ctx), ref, date).First(&a).Error
	if err := mapErr(err); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) CountVoucherUsages(ctx context.Context, voucherID string) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.VoucherUsage{}).Where("voucher_id = ?", voucherID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count voucher usages: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Payment, error) {
	q := s.db.WithContext(ctx).
		Where("status = ? AND method IN ? AND created_at < ?", models.PaymentPending, models.AsynchronousMethods(), before).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []models.Payment
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list stale payments: %w", err)
	}
	return out, nil
}

// SaveProduct replaces the product and its whole price history.
func (s *PostgresStore) SaveProduct(ctx context.Context, p *models.Product) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", p.ID).Delete(&models.PriceEntry{}).Error; err != nil {
			return fmt.Errorf("clear price history: %w", err)
		}
		for i := range p.Prices {
			p.Prices[i].ID = 0
			p.Prices[i].ProductID = p.ID
		}
		if err := tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(p).Error; err != nil {
			return fmt.Errorf("save product %s: %w", p.ID, err)
		}
		return nil
	})
}

func (s *PostgresStore) SaveAvailability(ctx context.Context, a *models.Availability) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_kind"}, {Name: "product_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"max_slots", "available_slots", "is_active", "updated_at"}),
	}).Create(a).Error
	if err != nil {
		return fmt.Errorf("save availability: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertVoucher(ctx context.Context, v *models.Voucher) error {
	return mapWriteErr("insert voucher", s.db.WithContext(ctx).Create(v).Error)
}

// EnsureIndexes migrates the schema. The composite availability key lives in
// an embedded struct, so its unique index is created by hand.
func (s *PostgresStore) EnsureIndexes(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	err := db.AutoMigrate(
		&models.Product{},
		&models.PriceEntry{},
		&models.Availability{},
		&models.Voucher{},
		&models.VoucherUsage{},
		&models.Booking{},
		&models.Payment{},
	)
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_availability_product_date ON availabilities (product_kind, product_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_status_created ON payments (status, created_at)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func availScope(db *gorm.DB, ref models.ProductRef, date string) *gorm.DB {
	return db.Where("product_kind = ? AND product_id = ? AND date = ?", ref.Kind, ref.ID, date)
}

func mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repository.ErrNotFound
	}
	return err
}

func mapWriteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%s: %w", op, repository.ErrConflict)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}
