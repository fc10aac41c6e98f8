package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elecsonJ/everyday-english-writing/internal/database"
)

type recordingNotifier struct {
	sent []int64
	fail map[int64]bool
}

func (n *recordingNotifier) SendReminder(chatID int64) error {
	if n.fail[chatID] {
		return errors.New("blocked by user")
	}
	n.sent = append(n.sent, chatID)
	return nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *recordingNotifier) {
	t.Helper()
	db, err := database.Open("sqlite", ":memory:", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	n := &recordingNotifier{fail: map[int64]bool{}}
	return New(database.NewReminderRepository(db), n, time.UTC, DefaultReminderHour, nil), n
}

func TestArm_IsIdempotentAndUsesDefaultHour(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestScheduler(t)

	if on, _, _ := s.Enabled(ctx, 42); on {
		t.Fatalf("reminder enabled before opt-in")
	}
	for i := 0; i < 2; i++ {
		if err := s.Arm(ctx, 42); err != nil {
			t.Fatalf("Arm: %v", err)
		}
	}
	on, hour, err := s.Enabled(ctx, 42)
	if err != nil || !on || hour != DefaultReminderHour {
		t.Fatalf("Enabled = %v, %d, %v", on, hour, err)
	}

	// Arming again keeps a custom hour.
	if err := s.SetHour(ctx, 42, 21); err != nil {
		t.Fatalf("SetHour: %v", err)
	}
	if err := s.Arm(ctx, 42); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if _, hour, _ := s.Enabled(ctx, 42); hour != 21 {
		t.Fatalf("hour = %d, want 21", hour)
	}
}

func TestSendDue(t *testing.T) {
	ctx := context.Background()
	s, n := newTestScheduler(t)

	for _, id := range []int64{1, 2, 3} {
		if err := s.Arm(ctx, id); err != nil {
			t.Fatalf("Arm: %v", err)
		}
	}
	if err := s.SetHour(ctx, 4, 9); err != nil {
		t.Fatalf("SetHour: %v", err)
	}
	if err := s.Disable(ctx, 2); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	n.fail[3] = true

	sent, err := s.SendDue(ctx, DefaultReminderHour)
	if err != nil {
		t.Fatalf("SendDue: %v", err)
	}
	if sent != 1 || len(n.sent) != 1 || n.sent[0] != 1 {
		t.Fatalf("sent=%d to %v", sent, n.sent)
	}

	n.sent = nil
	if sent, _ := s.SendDue(ctx, 9); sent != 1 || n.sent[0] != 4 {
		t.Fatalf("9 o'clock reminders: %d %v", sent, n.sent)
	}
}

func TestCheckUsesConfiguredLocation(t *testing.T) {
	ctx := context.Background()
	s, n := newTestScheduler(t)
	kst := time.FixedZone("KST", 9*60*60)
	s.loc = kst
	s.now = func() time.Time { return time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC) } // 07:00 KST

	if err := s.Arm(ctx, 7); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	s.checkAndSendReminders()
	if len(n.sent) != 1 || n.sent[0] != 7 {
		t.Fatalf("sent = %v", n.sent)
	}
}

func TestSetHour_RejectsOutOfRange(t *testing.T) {
	s, _ := newTestScheduler(t)
	if err := s.SetHour(context.Background(), 1, 24); err == nil {
		t.Fatalf("expected error for hour 24")
	}
}
