package cron

import (
	"context"
	"fmt"
	"time"

	"tourbook/services/booking"
	"tourbook/services/notification"
	"tourbook/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Worker runs queued notification deliveries and the periodic expiry sweep.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	logger    *zap.Logger
}

// NewWorker builds the asynq server and scheduler. sweepSpec is a cron
// expression or "@every <duration>".
func NewWorker(redisOpts asynq.RedisClientOpt, workflow booking.Workflow, sender notification.Sender, sweepSpec string, logger *zap.Logger) (*Worker, error) {
	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				tasks.QueueNotifications: 3,
				tasks.QueueMaintenance:   1,
			},
			Logger: logger.Sugar(),
		},
	)

	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeBookingNotification, &notification.Handler{Sender: sender, Logger: logger})
	mux.HandleFunc(tasks.TypeExpireStale, handleExpireStale(workflow, logger))

	scheduler := asynq.NewScheduler(redisOpts, &asynq.SchedulerOpts{Logger: logger.Sugar()})
	task, opts := tasks.NewExpireStaleTask()
	if _, err := scheduler.Register(sweepSpec, task, opts...); err != nil {
		return nil, fmt.Errorf("register expiry sweep %q: %w", sweepSpec, err)
	}

	return &Worker{server: srv, scheduler: scheduler, mux: mux, logger: logger}, nil
}

// Start runs server and scheduler in the background, retrying startup with
// backoff while Redis is unreachable.
func (w *Worker) Start() {
	go w.retry("worker", func() error { return w.server.Start(w.mux) })
	go w.retry("scheduler", w.scheduler.Start)
}

func (w *Worker) retry(name string, run func() error) {
	const maxAttempts = 5
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err := run()
		if err == nil {
			return
		}
		w.logger.Error("background process failed to start",
			zap.String("process", name), zap.Int("attempt", attempts), zap.Error(err))
		if attempts == maxAttempts {
			w.logger.Fatal("max retry attempts reached", zap.String("process", name))
		}
		time.Sleep(time.Duration(attempts*2) * time.Second)
	}
}

// Shutdown stops accepting tasks and waits for in-flight ones.
func (w *Worker) Shutdown() {
	w.scheduler.Shutdown()
	w.server.Shutdown()
}

func handleExpireStale(workflow booking.Workflow, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		n, err := workflow.ExpireStale(ctx)
		if err != nil {
			logger.Error("expiry sweep failed", zap.Int("expired", n), zap.Error(err))
			return err
		}
		if n > 0 {
			logger.Info("expiry sweep finished", zap.Int("expired", n))
		}
		return nil
	}
}
