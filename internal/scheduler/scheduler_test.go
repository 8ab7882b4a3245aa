package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"hiretrack/internal/db"
	"hiretrack/internal/tracker"
)

type sentMessage struct {
	userID int64
	text   string
}

// fakeNotifier scripts delivery outcomes per user id.
type fakeNotifier struct {
	resolveErr map[int64]error
	sendErr    map[int64]error
	sendPanic  map[int64]bool
	sent       []sentMessage
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		resolveErr: map[int64]error{},
		sendErr:    map[int64]error{},
		sendPanic:  map[int64]bool{},
	}
}

func (f *fakeNotifier) ResolveUser(ctx context.Context, userID int64) (*Recipient, error) {
	if err := f.resolveErr[userID]; err != nil {
		return nil, err
	}
	return &Recipient{ID: userID, Name: "tester"}, nil
}

func (f *fakeNotifier) Send(ctx context.Context, to *Recipient, text string) error {
	if f.sendPanic[to.ID] {
		panic("delivery exploded")
	}
	if err := f.sendErr[to.ID]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMessage{userID: to.ID, text: text})
	return nil
}

func testScheduler(t *testing.T) (*Scheduler, *tracker.Service, *fakeNotifier, *gorm.DB) {
	t.Helper()
	gdb, err := db.Open(filepath.Join(t.TempDir(), "scheduler.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	svc := tracker.New(gdb)
	fn := newFakeNotifier()
	return New(svc, fn), svc, fn, gdb
}

// addDueReminder tracks an application for the user and attaches a reminder
// that is due right away.
func addDueReminder(t *testing.T, svc *tracker.Service, company string, userID int64) *db.Reminder {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.AddApplication(ctx, company, "Engineer", userID, "", nil); err != nil {
		t.Fatalf("AddApplication(%s): %v", company, err)
	}
	rem, err := svc.AddReminder(ctx, company, userID, 0)
	if err != nil {
		t.Fatalf("AddReminder(%s): %v", company, err)
	}
	return rem
}

func reminderSent(t *testing.T, svc *tracker.Service, id uint) bool {
	t.Helper()
	rem, err := svc.Reminder(context.Background(), id)
	if err != nil {
		t.Fatalf("Reminder(%d): %v", id, err)
	}
	return rem.Sent
}

func TestCheckRemindersDeliversAndMarksSent(t *testing.T) {
	sched, svc, fn, _ := testScheduler(t)
	ctx := context.Background()
	rem := addDueReminder(t, svc, "Acme", 1)

	if err := sched.CheckReminders(ctx); err != nil {
		t.Fatalf("CheckReminders: %v", err)
	}

	if !reminderSent(t, svc, rem.ID) {
		t.Error("reminder not marked sent after delivery")
	}
	if len(fn.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(fn.sent))
	}
	if fn.sent[0].userID != 1 {
		t.Errorf("delivered to user %d, want 1", fn.sent[0].userID)
	}
	for _, want := range []string{"Job Application Reminder", "**Company:** Acme"} {
		if !strings.Contains(fn.sent[0].text, want) {
			t.Errorf("DM missing %q:\n%s", want, fn.sent[0].text)
		}
	}

	// A second scan finds nothing left to deliver.
	if err := sched.CheckReminders(ctx); err != nil {
		t.Fatalf("second CheckReminders: %v", err)
	}
	if len(fn.sent) != 1 {
		t.Errorf("reminder delivered twice: %d messages", len(fn.sent))
	}
}

func TestCheckRemindersIsolatesFailures(t *testing.T) {
	sched, svc, fn, _ := testScheduler(t)
	ctx := context.Background()

	first := addDueReminder(t, svc, "Alpha", 1)
	second := addDueReminder(t, svc, "Beta", 2)
	third := addDueReminder(t, svc, "Gamma", 3)
	fn.sendPanic[2] = true

	if err := sched.CheckReminders(ctx); err != nil {
		t.Fatalf("CheckReminders: %v", err)
	}

	if !reminderSent(t, svc, first.ID) {
		t.Error("first reminder not delivered")
	}
	if !reminderSent(t, svc, third.ID) {
		t.Error("third reminder not delivered")
	}
	if reminderSent(t, svc, second.ID) {
		t.Error("panicking reminder was marked sent")
	}
	if len(fn.sent) != 2 {
		t.Errorf("sent %d messages, want 2", len(fn.sent))
	}
}

func TestCheckRemindersTransientFailureRetries(t *testing.T) {
	sched, svc, fn, _ := testScheduler(t)
	ctx := context.Background()
	rem := addDueReminder(t, svc, "Acme", 1)

	fn.sendErr[1] = errors.New("gateway timeout")
	if err := sched.CheckReminders(ctx); err != nil {
		t.Fatalf("CheckReminders: %v", err)
	}
	if reminderSent(t, svc, rem.ID) {
		t.Fatal("transient failure marked the reminder sent")
	}

	// Next tick, the outage is over.
	delete(fn.sendErr, 1)
	if err := sched.CheckReminders(ctx); err != nil {
		t.Fatalf("retry CheckReminders: %v", err)
	}
	if !reminderSent(t, svc, rem.ID) {
		t.Error("reminder not delivered after retry")
	}
	if len(fn.sent) != 1 {
		t.Errorf("sent %d messages, want 1", len(fn.sent))
	}
}

func TestCheckRemindersForbiddenMarksSent(t *testing.T) {
	sched, svc, fn, _ := testScheduler(t)
	ctx := context.Background()
	rem := addDueReminder(t, svc, "Acme", 1)

	fn.sendErr[1] = ErrDeliveryForbidden
	if err := sched.CheckReminders(ctx); err != nil {
		t.Fatalf("CheckReminders: %v", err)
	}

	if !reminderSent(t, svc, rem.ID) {
		t.Error("refused DM did not mark the reminder sent")
	}
	if len(fn.sent) != 0 {
		t.Errorf("sent %d messages, want 0", len(fn.sent))
	}
}

func TestCheckRemindersUnknownUserMarksSent(t *testing.T) {
	sched, svc, fn, _ := testScheduler(t)
	ctx := context.Background()
	rem := addDueReminder(t, svc, "Acme", 1)

	fn.resolveErr[1] = ErrUserNotFound
	if err := sched.CheckReminders(ctx); err != nil {
		t.Fatalf("CheckReminders: %v", err)
	}

	if !reminderSent(t, svc, rem.ID) {
		t.Error("unresolvable user did not mark the reminder sent")
	}
}

func TestCheckRemindersOrphanedReminderMarksSent(t *testing.T) {
	sched, svc, fn, gdb := testScheduler(t)
	ctx := context.Background()
	rem := addDueReminder(t, svc, "Acme", 1)

	// Remove the application out from under the reminder.
	if err := gdb.Exec("DELETE FROM applications").Error; err != nil {
		t.Fatalf("delete application: %v", err)
	}

	if err := sched.CheckReminders(ctx); err != nil {
		t.Fatalf("CheckReminders: %v", err)
	}

	if !reminderSent(t, svc, rem.ID) {
		t.Error("orphaned reminder not marked sent")
	}
	if len(fn.sent) != 0 {
		t.Errorf("sent %d messages for an orphan, want 0", len(fn.sent))
	}
}

func TestTriggerReminder(t *testing.T) {
	sched, svc, fn, _ := testScheduler(t)
	ctx := context.Background()

	if _, err := svc.AddApplication(ctx, "Acme", "Engineer", 1, "", nil); err != nil {
		t.Fatalf("AddApplication: %v", err)
	}
	rem, err := svc.AddReminder(ctx, "Acme", 1, 30)
	if err != nil {
		t.Fatalf("AddReminder: %v", err)
	}

	// A manual trigger ignores the due date.
	if err := sched.TriggerReminder(ctx, rem.ID); err != nil {
		t.Fatalf("TriggerReminder: %v", err)
	}
	if !reminderSent(t, svc, rem.ID) {
		t.Error("triggered reminder not marked sent")
	}
	if len(fn.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(fn.sent))
	}

	// But never re-fires one that was already sent.
	err = sched.TriggerReminder(ctx, rem.ID)
	if !errors.Is(err, ErrReminderAlreadySent) {
		t.Fatalf("re-trigger err = %v, want ErrReminderAlreadySent", err)
	}
	if len(fn.sent) != 1 {
		t.Errorf("re-trigger delivered again: %d messages", len(fn.sent))
	}

	if err := sched.TriggerReminder(ctx, 9999); !errors.Is(err, tracker.ErrReminderNotFound) {
		t.Errorf("unknown id err = %v, want ErrReminderNotFound", err)
	}
}

func TestTestMessage(t *testing.T) {
	sched, _, fn, _ := testScheduler(t)
	ctx := context.Background()

	if got := sched.TestMessage(ctx, 1); !strings.Contains(got, "sent successfully") {
		t.Errorf("TestMessage = %q, want success", got)
	}
	if len(fn.sent) != 1 || !strings.Contains(fn.sent[0].text, "Test Reminder") {
		t.Fatalf("test DM not delivered: %+v", fn.sent)
	}

	fn.sendErr[2] = ErrDeliveryForbidden
	if got := sched.TestMessage(ctx, 2); !strings.Contains(got, "DMs disabled") {
		t.Errorf("TestMessage(forbidden) = %q", got)
	}

	fn.resolveErr[3] = ErrUserNotFound
	if got := sched.TestMessage(ctx, 3); !strings.Contains(got, "not found") {
		t.Errorf("TestMessage(unknown user) = %q", got)
	}
}

func TestSchedulerLifecycle(t *testing.T) {
	sched, _, _, _ := testScheduler(t)

	st := sched.Status()
	if st.Running || st.NextRun != nil {
		t.Fatalf("fresh scheduler status = %+v, want stopped", st)
	}

	if err := sched.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sched.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	st = sched.Status()
	if !st.Running {
		t.Error("Running = false after Start")
	}
	if st.Jobs != 1 {
		t.Errorf("Jobs = %d after double Start, want 1", st.Jobs)
	}
	if st.NextRun == nil {
		t.Fatal("NextRun = nil while running")
	}
	until := time.Until(*st.NextRun)
	if until <= 0 || until > 61*time.Second {
		t.Errorf("NextRun %v not within the next minute", *st.NextRun)
	}

	sched.Stop()
	sched.Stop()

	st = sched.Status()
	if st.Running {
		t.Error("Running = true after Stop")
	}
	if st.NextRun != nil {
		t.Errorf("NextRun = %v after Stop, want nil", *st.NextRun)
	}

	// The scheduler restarts cleanly without doubling its job.
	if err := sched.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if st := sched.Status(); !st.Running || st.Jobs != 1 {
		t.Errorf("status after restart = %+v, want running with 1 job", st)
	}
	sched.Stop()
}
