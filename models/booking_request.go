package models

// BookingRequest is what a customer submits to book a product departure.
type BookingRequest struct {
	UserID      string        `json:"-" validate:"required"`
	Product     ProductRef    `json:"product"`
	Date        string        `json:"date" validate:"required,datetime=2006-01-02"`
	Adults      int           `json:"adults" validate:"min=1,max=50"`
	Children    int           `json:"children" validate:"min=0,max=50"`
	VoucherCode string        `json:"voucher_code,omitempty" validate:"omitempty,max=64"`
	Method      PaymentMethod `json:"method" validate:"required,oneof=cash bank_transfer credit_card vnpay stripe"`
	ClientIP    string        `json:"-"`
	Locale      string        `json:"locale,omitempty" validate:"omitempty,oneof=vn en"`
}
