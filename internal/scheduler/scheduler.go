// Package scheduler runs the reminder loop: once a minute it scans for due
// unsent reminders, attempts delivery of each one in isolation, and marks
// delivered or permanently undeliverable reminders as sent.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/inconshreveable/log15"
	"github.com/robfig/cron/v3"

	"hiretrack/internal/db"
	"hiretrack/internal/format"
	"hiretrack/internal/tracker"
)

// tickTimeout bounds one full scan, including delivery round trips.
const tickTimeout = 90 * time.Second

// Delivery outcomes a Notifier reports. Anything else returned from Send or
// ResolveUser is treated as transient and the reminder is retried on a
// later tick.
var (
	// ErrUserNotFound means the owner id no longer resolves to a user.
	ErrUserNotFound = errors.New("user not found")
	// ErrDeliveryForbidden means the recipient refuses direct messages.
	ErrDeliveryForbidden = errors.New("delivery forbidden")
	// ErrReminderAlreadySent refuses a manual trigger of a handled reminder.
	ErrReminderAlreadySent = errors.New("reminder already sent")
)

// Recipient is a resolved delivery target.
type Recipient struct {
	ID   int64
	Name string
}

// Notifier is the outbound notification channel.
type Notifier interface {
	ResolveUser(ctx context.Context, userID int64) (*Recipient, error)
	Send(ctx context.Context, to *Recipient, text string) error
}

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	Running bool       `json:"running"`
	Jobs    int        `json:"jobs"`
	NextRun *time.Time `json:"next_run,omitempty"`
}

// Scheduler owns the minute reminder scan. Construct with New, then Start;
// ticks that would overlap a still-running scan are skipped, never queued.
type Scheduler struct {
	svc      *tracker.Service
	notifier Notifier
	log      log.Logger

	cron    *cron.Cron
	entryID cron.EntryID

	mu      sync.Mutex
	running bool
}

// New builds a stopped Scheduler around the service and notification
// channel.
func New(svc *tracker.Service, notifier Notifier) *Scheduler {
	s := &Scheduler{
		svc:      svc,
		notifier: notifier,
		log:      log.New("module", "scheduler"),
	}
	cl := cronLogger{s.log}
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)))
	return s
}

// Start begins the minute scan. Starting a running scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if s.entryID == 0 {
		id, err := s.cron.AddFunc("* * * * *", s.tick)
		if err != nil {
			return fmt.Errorf("Start: %w", err)
		}
		s.entryID = id
	}
	s.cron.Start()
	s.running = true
	s.log.Info("reminder scheduler started")
	return nil
}

// Stop halts future ticks and waits for an in-flight tick to finish.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.log.Info("reminder scheduler stopped")
}

// Status reports whether the scheduler runs, how many jobs it has and when
// the next tick fires. NextRun is nil while stopped.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Running: s.running, Jobs: len(s.cron.Entries())}
	if s.running && s.entryID != 0 {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			st.NextRun = &next
		}
	}
	return st
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()
	if err := s.CheckReminders(ctx); err != nil {
		s.log.Error("reminder scan failed", "err", err)
	}
}

// CheckReminders scans for due unsent reminders and attempts delivery of
// each one. One reminder's failure never blocks its siblings; reminders
// that fail transiently stay unsent and are picked up again next tick.
func (s *Scheduler) CheckReminders(ctx context.Context) error {
	due, err := s.svc.DueReminders(ctx)
	if err != nil {
		return fmt.Errorf("CheckReminders: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	s.log.Info("processing due reminders", "count", len(due))
	for i := range due {
		if err := s.deliver(ctx, &due[i]); err != nil {
			s.log.Error("reminder delivery failed, will retry", "reminder", due[i].ID, "err", err)
		}
	}
	return nil
}

// TriggerReminder force-processes one reminder outside the normal tick.
// Reminders already marked sent are refused.
func (s *Scheduler) TriggerReminder(ctx context.Context, id uint) error {
	rem, err := s.svc.Reminder(ctx, id)
	if err != nil {
		return fmt.Errorf("TriggerReminder: %w", err)
	}
	if rem.Sent {
		return fmt.Errorf("TriggerReminder: %w: %d", ErrReminderAlreadySent, id)
	}
	if err := s.deliver(ctx, rem); err != nil {
		return fmt.Errorf("TriggerReminder: %w", err)
	}
	return nil
}

const testMessage = "🧪 **Test Reminder**\n\nThis is a test message to verify the reminder system is working correctly!"

// TestMessage sends a test DM to the user and reports the outcome as a
// human-readable string for the slash command to echo.
func (s *Scheduler) TestMessage(ctx context.Context, userID int64) string {
	to, err := s.notifier.ResolveUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return fmt.Sprintf("User %d not found", userID)
	}
	if err != nil {
		return fmt.Sprintf("Error sending test reminder: %v", err)
	}

	err = s.notifier.Send(ctx, to, testMessage)
	switch {
	case errors.Is(err, ErrDeliveryForbidden):
		return "Cannot send DM to user (DMs disabled)"
	case err != nil:
		return fmt.Sprintf("Error sending test reminder: %v", err)
	}
	return fmt.Sprintf("Test reminder sent successfully to %s", to.Name)
}

// deliver attempts one reminder and marks it sent on success or on any
// permanent failure: orphaned application, unknown user, refused DMs. A
// transient failure returns an error and leaves the reminder unsent. A
// panic is converted to an error so sibling reminders still run.
func (s *Scheduler) deliver(ctx context.Context, rem *db.Reminder) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("deliver: panic: %v", r)
		}
	}()

	app, err := s.svc.Application(ctx, rem.AppID)
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	if app == nil {
		s.log.Warn("reminder points at a deleted application", "reminder", rem.ID)
		return s.svc.MarkReminderSent(ctx, rem.ID)
	}

	to, err := s.notifier.ResolveUser(ctx, app.UserID)
	if errors.Is(err, ErrUserNotFound) {
		s.log.Warn("reminder user no longer resolvable", "reminder", rem.ID, "user", app.UserID)
		return s.svc.MarkReminderSent(ctx, rem.ID)
	}
	if err != nil {
		return fmt.Errorf("deliver: resolve user %d: %w", app.UserID, err)
	}

	current, err := s.svc.CurrentStage(ctx, app.ID)
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}

	err = s.notifier.Send(ctx, to, format.ReminderMessage(app, current))
	switch {
	case errors.Is(err, ErrDeliveryForbidden):
		// A DM refusal is permanent; the reminder still counts as handled.
		s.log.Warn("recipient refuses direct messages", "reminder", rem.ID, "user", app.UserID)
	case err != nil:
		return fmt.Errorf("deliver: send to %d: %w", app.UserID, err)
	default:
		s.log.Info("reminder delivered", "reminder", rem.ID, "user", app.UserID, "company", app.Company)
	}
	return s.svc.MarkReminderSent(ctx, rem.ID)
}

// cronLogger adapts log15 to the cron logger interface.
type cronLogger struct {
	log log.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error(msg, append([]interface{}{"err", err}, keysAndValues...)...)
}
