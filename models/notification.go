package models

import "time"

type NotificationEvent string

const (
	EventBookingConfirmed NotificationEvent = "booking.confirmed"
	EventBookingFailed    NotificationEvent = "booking.failed"
	EventBookingCancelled NotificationEvent = "booking.cancelled"
)

// BookingNotification is the payload handed to the notification dispatcher.
type BookingNotification struct {
	Event      NotificationEvent `json:"event"`
	BookingID  string            `json:"bookingId"`
	PaymentID  string            `json:"paymentId"`
	UserID     string            `json:"userId"`
	Product    ProductRef        `json:"product"`
	StartDate  string            `json:"startDate"`
	Amount     int64             `json:"amount"`
	Currency   string            `json:"currency"`
	Method     PaymentMethod     `json:"method"`
	Reason     string            `json:"reason,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// NewBookingNotification builds the payload from a booking/payment pair.
func NewBookingNotification(event NotificationEvent, b Booking, p Payment, reason string) BookingNotification {
	return BookingNotification{
		Event:      event,
		BookingID:  b.ID,
		PaymentID:  p.ID,
		UserID:     b.UserID,
		Product:    b.Product,
		StartDate:  b.StartDate,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Method:     p.Method,
		Reason:     reason,
		OccurredAt: time.Now(),
	}
}
