package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/classpal-api/internal/models"
	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
	"github.com/noah-isme/classpal-api/pkg/jobs"
)

const reminderJobType = "event.reminder"

// Reminder is the payload of one queued reminder job.
type Reminder struct {
	ClassID    string
	EventID    string
	EventTitle string
	UserID     string
}

// Notifier delivers a reminder to a user.
type Notifier interface {
	Notify(ctx context.Context, reminder Reminder) error
}

// LogNotifier writes reminders to the application log. It stands in for a
// push or chat integration.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the reminder.
func (n *LogNotifier) Notify(_ context.Context, reminder Reminder) error {
	n.logger.Info("event reminder",
		zap.String("class_id", reminder.ClassID),
		zap.String("event_id", reminder.EventID),
		zap.String("event_title", reminder.EventTitle),
		zap.String("user_id", reminder.UserID),
	)
	return nil
}

// ReminderService fans event reminders out to a background worker pool.
type ReminderService struct {
	queue    *jobs.Queue
	notifier Notifier
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewReminderService builds the service and its queue. The queue must be
// started (Run or Start) before reminders are dispatched.
func NewReminderService(notifier Notifier, metrics *MetricsService, logger *zap.Logger, cfg jobs.QueueConfig) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	svc := &ReminderService{notifier: notifier, metrics: metrics, logger: logger}
	svc.queue = jobs.NewQueue("reminders", svc.handle, cfg)
	return svc
}

// Queue exposes the worker pool so the server can tie it to its lifecycle.
func (s *ReminderService) Queue() *jobs.Queue {
	return s.queue
}

// Dispatch enqueues one reminder per user without blocking and returns how
// many were accepted. A saturated queue stops the fan-out early.
func (s *ReminderService) Dispatch(ctx context.Context, event models.EventItem, userIDs []string) (int, error) {
	queued := 0
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return queued, err
		}
		job := jobs.Job{
			Type: reminderJobType,
			Payload: Reminder{
				ClassID:    event.ClassID,
				EventID:    event.ID,
				EventTitle: event.Title,
				UserID:     userID,
			},
		}
		if err := s.queue.TryEnqueue(job); err != nil {
			s.metrics.RecordReminder("dropped")
			if errors.Is(err, jobs.ErrQueueFull) {
				s.logger.Warn("reminder queue full", zap.String("event_id", event.ID), zap.Int("queued", queued), zap.Int("requested", len(userIDs)))
				break
			}
			return queued, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "reminder queue unavailable")
		}
		s.metrics.RecordReminder("queued")
		queued++
	}
	return queued, nil
}

func (s *ReminderService) handle(ctx context.Context, job jobs.Job) error {
	reminder, ok := job.Payload.(Reminder)
	if !ok {
		s.metrics.RecordReminder("invalid")
		s.logger.Error("unexpected reminder payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	if err := s.notifier.Notify(ctx, reminder); err != nil {
		s.metrics.RecordReminder("failed")
		return fmt.Errorf("notify %s: %w", reminder.UserID, err)
	}
	s.metrics.RecordReminder("delivered")
	return nil
}
