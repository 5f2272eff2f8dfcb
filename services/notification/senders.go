package notification

import (
	"context"
	"fmt"
	"strconv"

	"tourbook/models"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// FCMSender pushes to the per-user topic "user_<id>" that clients subscribe to.
type FCMSender struct {
	Client *messaging.Client
	Logger *zap.Logger
}

func (s *FCMSender) Send(ctx context.Context, n models.BookingNotification) error {
	title, body := Render(n)
	msg := &messaging.Message{
		Topic: "user_" + n.UserID,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: map[string]string{
			"event":     string(n.Event),
			"bookingId": n.BookingID,
			"paymentId": n.PaymentID,
			"amount":    strconv.FormatInt(n.Amount, 10),
			"currency":  n.Currency,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "bookings",
				Sound:     "default",
			},
		},
	}
	id, err := s.Client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	s.Logger.Info("push sent", zap.String("messageId", id), zap.String("bookingId", n.BookingID))
	return nil
}

// LogSender only logs; used when no push credentials are configured.
type LogSender struct {
	Logger *zap.Logger
}

func (s *LogSender) Send(ctx context.Context, n models.BookingNotification) error {
	title, body := Render(n)
	s.Logger.Info("notification",
		zap.String("event", string(n.Event)),
		zap.String("userId", n.UserID),
		zap.String("title", title),
		zap.String("body", body))
	return nil
}

// Render returns the customer-facing title and body for n.
func Render(n models.BookingNotification) (string, string) {
	amount := strconv.FormatInt(n.Amount, 10) + " " + n.Currency
	switch n.Event {
	case models.EventBookingConfirmed:
		return "Booking confirmed", fmt.Sprintf("Your booking for %s is confirmed. Paid %s.", n.StartDate, amount)
	case models.EventBookingCancelled:
		return "Booking cancelled", fmt.Sprintf("Your booking for %s was cancelled.", n.StartDate)
	case models.EventBookingFailed:
		body := fmt.Sprintf("Payment of %s for your %s booking did not go through.", amount, n.StartDate)
		if n.Reason != "" {
			body += " " + n.Reason
		}
		return "Payment failed", body
	}
	return "Booking update", "Your booking " + n.BookingID + " was updated."
}
