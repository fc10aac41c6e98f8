package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/elecsonJ/everyday-english-writing/pkg/models"
	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// DefaultReminderHour is the hour of the daily practice reminder
const DefaultReminderHour = 7

// ReminderStore persists reminder opt-ins
type ReminderStore interface {
	Get(ctx context.Context, chatID int64) (*models.Reminder, error)
	Upsert(ctx context.Context, reminder *models.Reminder) error
	ListForHour(ctx context.Context, hour int) ([]models.Reminder, error)
}

// Notifier interface for sending notifications
type Notifier interface {
	SendReminder(chatID int64) error
}

// Scheduler sends the daily practice reminder to every chat that asked for it
type Scheduler struct {
	scheduler   *gocron.Scheduler
	reminders   ReminderStore
	notifier    Notifier
	loc         *time.Location
	defaultHour int
	now         func() time.Time
	log         *zap.Logger
}

// New creates a new scheduler instance. Hours are interpreted in loc.
func New(reminders ReminderStore, notifier Notifier, loc *time.Location, defaultHour int, log *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		scheduler:   gocron.NewScheduler(loc),
		reminders:   reminders,
		notifier:    notifier,
		loc:         loc,
		defaultHour: defaultHour,
		now:         time.Now,
		log:         log,
	}
}

// Start runs the reminder check at the top of every hour
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Cron("0 * * * *").Do(s.checkAndSendReminders); err != nil {
		return fmt.Errorf("failed to schedule reminders: %w", err)
	}
	s.scheduler.StartAsync()
	s.log.Info("reminder scheduler started", zap.String("location", s.loc.String()))
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) checkAndSendReminders() {
	hour := s.now().In(s.loc).Hour()
	if _, err := s.SendDue(context.Background(), hour); err != nil {
		s.log.Error("reminder check failed", zap.Int("hour", hour), zap.Error(err))
	}
}

// SendDue notifies every enabled chat whose reminder hour is hour and reports
// how many reminders went out.
func (s *Scheduler) SendDue(ctx context.Context, hour int) (int, error) {
	due, err := s.reminders.ListForHour(ctx, hour)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, r := range due {
		if err := s.notifier.SendReminder(r.ChatID); err != nil {
			s.log.Warn("failed to send reminder", zap.Int64("chat_id", r.ChatID), zap.Error(err))
			continue
		}
		sent++
	}
	if len(due) > 0 {
		s.log.Info("reminders sent", zap.Int("hour", hour), zap.Int("sent", sent), zap.Int("due", len(due)))
	}
	return sent, nil
}

// Arm makes sure the chat has an enabled daily reminder. An existing hour is
// kept; a new reminder uses the default hour. Calling it again is a no-op.
func (s *Scheduler) Arm(ctx context.Context, chatID int64) error {
	r, err := s.reminders.Get(ctx, chatID)
	if err != nil {
		return err
	}
	if r != nil && r.Enabled {
		return nil
	}
	if r == nil {
		r = &models.Reminder{ChatID: chatID, Hour: s.defaultHour}
	}
	r.Enabled = true
	return s.reminders.Upsert(ctx, r)
}

// Disable turns the chat's reminder off, keeping its hour
func (s *Scheduler) Disable(ctx context.Context, chatID int64) error {
	r, err := s.reminders.Get(ctx, chatID)
	if err != nil {
		return err
	}
	if r == nil {
		r = &models.Reminder{ChatID: chatID, Hour: s.defaultHour}
	}
	r.Enabled = false
	return s.reminders.Upsert(ctx, r)
}

// SetHour moves the chat's reminder to hour and enables it
func (s *Scheduler) SetHour(ctx context.Context, chatID int64, hour int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("hour must be between 0 and 23, got %d", hour)
	}
	return s.reminders.Upsert(ctx, &models.Reminder{ChatID: chatID, Enabled: true, Hour: hour})
}

// Enabled reports whether the chat allowed reminders
func (s *Scheduler) Enabled(ctx context.Context, chatID int64) (bool, int, error) {
	r, err := s.reminders.Get(ctx, chatID)
	if err != nil {
		return false, 0, err
	}
	if r == nil {
		return false, s.defaultHour, nil
	}
	return r.Enabled, r.Hour, nil
}

// RunManualCheck sends the reminder to one chat right away
func (s *Scheduler) RunManualCheck(chatID int64) error {
	return s.notifier.SendReminder(chatID)
}
