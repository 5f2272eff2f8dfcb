package tasks

import (
	"encoding/json"
	"time"

	"tourbook/models"

	"github.com/hibiken/asynq"
)

const (
	TypeBookingNotification = "notification:booking"
	TypeExpireStale         = "booking:expire-stale"

	QueueNotifications = "notifications"
	QueueMaintenance   = "maintenance"
)

func NewBookingNotificationTask(payload models.BookingNotification) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeBookingNotification, b)
	opts := []asynq.Option{
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(5),
		asynq.Timeout(30 * time.Second),
	}
	return task, opts, nil
}

// NewExpireStaleTask is registered with the scheduler; it carries no payload.
func NewExpireStaleTask() (*asynq.Task, []asynq.Option) {
	task := asynq.NewTask(TypeExpireStale, nil)
	opts := []asynq.Option{
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(0),
		asynq.Unique(time.Minute),
	}
	return task, opts
}

func ParseBookingNotification(t *asynq.Task) (models.BookingNotification, error) {
	var n models.BookingNotification
	err := json.Unmarshal(t.Payload(), &n)
	return n, err
}
