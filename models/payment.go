package models

import "time"

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCreditCard   PaymentMethod = "credit_card"
	MethodVNPay        PaymentMethod = "vnpay"
	MethodStripe       PaymentMethod = "stripe"
)

// PaymentCapability says whether a method settles inline or through a gateway callback.
type PaymentCapability int

const (
	Synchronous PaymentCapability = iota + 1
	Asynchronous
)

var methodCapabilities = map[PaymentMethod]PaymentCapability{
	MethodCash:         Synchronous,
	MethodBankTransfer: Synchronous,
	MethodCreditCard:   Synchronous,
	MethodVNPay:        Asynchronous,
	MethodStripe:       Asynchronous,
}

// Capability returns the method's settlement capability, false for unknown methods.
func (m PaymentMethod) Capability() (PaymentCapability, bool) {
	c, ok := methodCapabilities[m]
	return c, ok
}

// AsynchronousMethods lists the methods that wait for a gateway callback.
func AsynchronousMethods() []PaymentMethod {
	var out []PaymentMethod
	for _, m := range []PaymentMethod{MethodCash, MethodBankTransfer, MethodCreditCard, MethodVNPay, MethodStripe} {
		if methodCapabilities[m] == Asynchronous {
			out = append(out, m)
		}
	}
	return out
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

// Payment is the single payment attached to a booking.
type Payment struct {
	ID            string        `bson:"id" json:"id" gorm:"primaryKey;size:64"`
	BookingID     string        `bson:"booking_id" json:"booking_id" gorm:"size:64;uniqueIndex"`
	Amount        int64         `bson:"amount" json:"amount"` // minor units
	Currency      string        `bson:"currency" json:"currency" gorm:"size:3"`
	Method        PaymentMethod `bson:"method" json:"method" gorm:"size:32"`
	Status        PaymentStatus `bson:"status" json:"status" gorm:"size:16;index"`
	Reference     string        `bson:"reference" json:"reference" gorm:"size:64;uniqueIndex"`                                       // sent to the gateway as the order reference
	TransactionID *string       `bson:"transaction_id,omitempty" json:"transaction_id,omitempty" gorm:"size:128;uniqueIndex"` // gateway-side id, set on reconcile
	ResponseCode  string        `bson:"response_code,omitempty" json:"response_code,omitempty" gorm:"size:16"`
	FailureReason string        `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	LockSeq       int64         `bson:"lock_seq" json:"-" gorm:"-"`
	CreatedAt     time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `bson:"updated_at" json:"updated_at"`
	CompletedAt   *time.Time    `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}
