package notification

import (
	"context"

	"tourbook/models"
)

// Dispatcher hands booking events to the delivery pipeline. Callers treat it
// as fire-and-forget and only log its errors.
type Dispatcher interface {
	Notify(ctx context.Context, n models.BookingNotification) error
}

// Sender delivers one notification to the customer.
type Sender interface {
	Send(ctx context.Context, n models.BookingNotification) error
}
