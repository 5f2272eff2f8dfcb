package models

import "time"

// Voucher is a discount code. Exactly one of DiscountFixed and DiscountPercentage
// is expected to be set; fixed wins if both are.
type Voucher struct {
	ID                 string       `bson:"id" json:"id" gorm:"primaryKey;size:64"`
	Code               string       `bson:"code" json:"code" gorm:"size:64;uniqueIndex"`
	DiscountFixed      *int64       `bson:"discount_fixed,omitempty" json:"discount_fixed,omitempty"`           // minor units
	DiscountPercentage *float64     `bson:"discount_percentage,omitempty" json:"discount_percentage,omitempty"` // 0-100
	StartDate          time.Time    `bson:"start_date" json:"start_date"`
	EndDate            time.Time    `bson:"end_date" json:"end_date"`
	UsageLimit         *int         `bson:"usage_limit,omitempty" json:"usage_limit,omitempty"` // nil = unlimited
	ApplicableProducts []ProductRef `bson:"applicable_products" json:"applicable_products" gorm:"serializer:json;type:jsonb"`
	LockSeq            int64        `bson:"lock_seq" json:"-" gorm:"-"`
	CreatedAt          time.Time    `bson:"created_at" json:"created_at"`
}

// AppliesTo reports whether the voucher may be used for ref.
func (v Voucher) AppliesTo(ref ProductRef) bool {
	if len(v.ApplicableProducts) == 0 {
		return true
	}
	for _, p := range v.ApplicableProducts {
		if p == ref {
			return true
		}
	}
	return false
}

// VoucherUsage records that a voucher was consumed by a booking. Rows are never
// updated; the usage count of a voucher is the number of its rows.
type VoucherUsage struct {
	ID              string    `bson:"id" json:"id" gorm:"primaryKey;size:64"`
	VoucherID       string    `bson:"voucher_id" json:"voucher_id" gorm:"size:64;index"`
	BookingID       string    `bson:"booking_id" json:"booking_id" gorm:"size:64;uniqueIndex"`
	UserID          string    `bson:"user_id" json:"user_id" gorm:"size:64"`
	DiscountApplied int64     `bson:"discount_applied" json:"discount_applied"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
}
