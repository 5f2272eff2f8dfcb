package notification

import (
	"context"
	"fmt"

	"tourbook/models"
	"tourbook/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// AsynqDispatcher enqueues notifications for the worker process.
type AsynqDispatcher struct {
	Client *asynq.Client
	Logger *zap.Logger
}

func (d *AsynqDispatcher) Notify(ctx context.Context, n models.BookingNotification) error {
	task, opts, err := tasks.NewBookingNotificationTask(n)
	if err != nil {
		return fmt.Errorf("build notification task: %w", err)
	}
	info, err := d.Client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	d.Logger.Debug("notification enqueued",
		zap.String("taskId", info.ID),
		zap.String("event", string(n.Event)),
		zap.String("bookingId", n.BookingID))
	return nil
}

// Handler processes TypeBookingNotification tasks on the worker side.
type Handler struct {
	Sender Sender
	Logger *zap.Logger
}

func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	n, err := tasks.ParseBookingNotification(t)
	if err != nil {
		// a payload that cannot decode will never succeed
		return fmt.Errorf("decode notification: %v: %w", err, asynq.SkipRetry)
	}
	if err := h.Sender.Send(ctx, n); err != nil {
		h.Logger.Warn("notification delivery failed",
			zap.String("bookingId", n.BookingID), zap.Error(err))
		return err
	}
	return nil
}
