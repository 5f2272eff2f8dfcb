package models

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking represents a reservation of one product departure.
type Booking struct {
	ID         string        `bson:"id" json:"id" gorm:"primaryKey;size:64"`
	UserID     string        `bson:"user_id" json:"user_id" gorm:"size:64;index"`
	Product    ProductRef    `bson:"product" json:"product" gorm:"embedded;embeddedPrefix:product_"`
	StartDate  string        `bson:"start_date" json:"start_date" gorm:"size:10"` // YYYY-MM-DD
	EndDate    string        `bson:"end_date" json:"end_date" gorm:"size:10"`
	Adults     int           `bson:"adults" json:"adults"`
	Children   int           `bson:"children" json:"children"`
	UnitPrice  int64         `bson:"unit_price" json:"unit_price"` // price snapshot, minor units
	Subtotal   int64         `bson:"subtotal" json:"subtotal"`
	Discount   int64         `bson:"discount" json:"discount"`
	TotalPrice int64         `bson:"total_price" json:"total_price"`
	Currency   string        `bson:"currency" json:"currency" gorm:"size:3"`
	Status     BookingStatus `bson:"status" json:"status" gorm:"size:16;index"`
	VoucherID  *string       `bson:"voucher_id,omitempty" json:"voucher_id,omitempty" gorm:"size:64"`
	PaymentID  *string       `bson:"payment_id,omitempty" json:"payment_id,omitempty" gorm:"size:64"`
	CreatedAt  time.Time     `bson:"created_at" json:"created_at" gorm:"index"`
	UpdatedAt  time.Time     `bson:"updated_at" json:"updated_at"`
}

// Guests is the number of slots the booking holds.
func (b Booking) Guests() int {
	return b.Adults + b.Children
}
