package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elecsonJ/everyday-english-writing/internal/progress"
	"github.com/elecsonJ/everyday-english-writing/pkg/models"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) set(date string) {
	t, err := time.ParseInLocation(DateLayout, date, time.UTC)
	if err != nil {
		panic(err)
	}
	c.t = t.Add(9 * time.Hour)
}

func newTestManager(date string) (*Manager, *progress.MemoryStore, *fakeClock) {
	store := progress.NewMemoryStore()
	clock := &fakeClock{}
	clock.set(date)
	return NewManager(store, WithClock(clock.now), WithLocation(time.UTC)), store, clock
}

func completeAll(s models.PracticeSession) models.PracticeSession {
	for i := range s.Sentences {
		s.Sentences[i].UserInput = "answer"
		s.Sentences[i].Feedback = &models.Feedback{GrammarCheck: "ok", ImprovedVersion: "i", NativeVersion: "n"}
	}
	s.Completed = true
	return s
}

func mustCreate(t *testing.T, m *Manager) models.PracticeSession {
	t.Helper()
	s, err := m.CreateSession([]string{"가", "나", "다"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return s
}

func ptr(s string) *string { return &s }

func TestDates_TodayAndYesterday(t *testing.T) {
	m, _, _ := newTestManager("2024-03-01")
	if got := m.Today(); got != "2024-03-01" {
		t.Fatalf("Today = %s", got)
	}
	if got := m.Yesterday(); got != "2024-02-29" {
		t.Fatalf("Yesterday = %s, want leap day", got)
	}
}

func TestDates_UseConfiguredLocation(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	// 2024-01-01 20:00 UTC is already 2024-01-02 in Seoul.
	at := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
	m := NewManager(progress.NewMemoryStore(), WithClock(func() time.Time { return at }), WithLocation(seoul))
	if got := m.Today(); got != "2024-01-02" {
		t.Fatalf("Today = %s, want 2024-01-02", got)
	}
	if got := m.Yesterday(); got != "2024-01-01" {
		t.Fatalf("Yesterday = %s, want 2024-01-01", got)
	}
}

func TestCreateSession(t *testing.T) {
	m, store, _ := newTestManager("2024-01-01")

	s := mustCreate(t, m)
	if s.Date != "2024-01-01" || s.Completed || len(s.Sentences) != 3 {
		t.Fatalf("unexpected session: %+v", s)
	}
	for i, r := range s.Sentences {
		if r.UserInput != "" || r.Feedback != nil {
			t.Fatalf("sentence %d not empty: %+v", i, r)
		}
	}
	if _, ok := m.TodaySession(context.Background()); ok {
		t.Fatalf("CreateSession must not persist")
	}
	if len(store.Load(context.Background()).Sessions) != 0 {
		t.Fatalf("store was written")
	}

	cases := [][]string{
		{"가", "나"},
		{"가", "나", "다", "라"},
		{"가", " ", "다"},
	}
	for _, c := range cases {
		if _, err := m.CreateSession(c); !errors.Is(err, ErrInvalidSession) {
			t.Fatalf("CreateSession(%q): expected ErrInvalidSession, got %v", c, err)
		}
	}
}

func TestSaveSession_UpsertsByDate(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager("2024-01-01")

	s := mustCreate(t, m)
	if _, err := m.SaveSession(ctx, s); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	s.Sentences[0].UserInput = "hello"
	s.Sentences[0].Feedback = &models.Feedback{GrammarCheck: "g", ImprovedVersion: "i", NativeVersion: "n"}
	p, err := m.SaveSession(ctx, s)
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	if len(p.Sessions) != 1 {
		t.Fatalf("expected exactly one session per date, got %d", len(p.Sessions))
	}
	if p.Streak != 0 || p.TotalSentences != 0 || p.LastCompletedDate != nil {
		t.Fatalf("non-completing save changed counters: %+v", p)
	}

	got, ok := m.TodaySession(ctx)
	if !ok || got.CompletedCount() != 1 {
		t.Fatalf("TodaySession = %+v, %v", got, ok)
	}
}

func TestSaveSession_RejectsBrokenInvariant(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager("2024-01-01")

	s := mustCreate(t, m)
	s.Completed = true
	if _, err := m.SaveSession(ctx, s); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}

	short := mustCreate(t, m)
	short.Sentences = short.Sentences[:2]
	if _, err := m.SaveSession(ctx, short); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for short session, got %v", err)
	}

	if len(store.Load(ctx).Sessions) != 0 {
		t.Fatalf("rejected session was stored")
	}
}

func TestSaveSession_CompletionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager("2024-01-01")

	s := completeAll(mustCreate(t, m))
	p, err := m.SaveSession(ctx, s)
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if p.Streak != 1 || p.TotalSentences != 3 || p.LastCompleted() != "2024-01-01" {
		t.Fatalf("first completion: %+v", p)
	}

	p, err = m.SaveSession(ctx, s)
	if err != nil {
		t.Fatalf("SaveSession (again): %v", err)
	}
	if p.Streak != 1 || p.TotalSentences != 3 {
		t.Fatalf("second save changed counters: %+v", p)
	}
}

func TestSaveSession_StreakRule(t *testing.T) {
	cases := []struct {
		name       string
		last       *string
		streak     int
		today      string
		wantStreak int
	}{
		{"consecutive day", ptr("2024-01-01"), 5, "2024-01-02", 6},
		{"gap resets to one", ptr("2024-01-01"), 5, "2024-01-05", 1},
		{"first ever", nil, 0, "2024-01-05", 1},
		{"already completed today", ptr("2024-01-05"), 3, "2024-01-05", 3},
		{"across month end", ptr("2024-01-31"), 2, "2024-02-01", 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			m, store, _ := newTestManager(tc.today)
			store.Save(ctx, models.UserProgress{
				Streak:            tc.streak,
				LastCompletedDate: tc.last,
				TotalSentences:    9,
				Sessions:          []models.PracticeSession{},
			})

			p, err := m.SaveSession(ctx, completeAll(mustCreate(t, m)))
			if err != nil {
				t.Fatalf("SaveSession: %v", err)
			}
			if p.Streak != tc.wantStreak {
				t.Fatalf("streak = %d, want %d", p.Streak, tc.wantStreak)
			}
			if p.TotalSentences != 12 {
				t.Fatalf("totalSentences = %d, want 12", p.TotalSentences)
			}
			if p.LastCompleted() != tc.today {
				t.Fatalf("lastCompletedDate = %q, want %q", p.LastCompleted(), tc.today)
			}
		})
	}
}

func TestReconcileStreakForToday(t *testing.T) {
	cases := []struct {
		name       string
		last       *string
		streak     int
		wantStreak int
	}{
		{"completed today", ptr("2024-01-10"), 4, 4},
		{"completed yesterday", ptr("2024-01-09"), 4, 4},
		{"missed a day", ptr("2024-01-08"), 4, 0},
		{"never completed", nil, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			m, store, _ := newTestManager("2024-01-10")
			store.Save(ctx, models.UserProgress{Streak: tc.streak, LastCompletedDate: tc.last, TotalSentences: 12})

			p := m.ReconcileStreakForToday(ctx)
			if p.Streak != tc.wantStreak {
				t.Fatalf("returned streak = %d, want %d", p.Streak, tc.wantStreak)
			}
			stored := store.Load(ctx)
			if stored.Streak != tc.wantStreak || stored.TotalSentences != 12 {
				t.Fatalf("stored = %+v", stored)
			}
		})
	}
}

func TestScenario_ThreeDays(t *testing.T) {
	ctx := context.Background()
	m, _, clock := newTestManager("2024-01-01")

	// Day 1: fresh progress.
	if p := m.ReconcileStreakForToday(ctx); p.Streak != 0 {
		t.Fatalf("fresh streak = %d", p.Streak)
	}
	p, err := m.SaveSession(ctx, completeAll(mustCreate(t, m)))
	if err != nil {
		t.Fatalf("day 1: %v", err)
	}
	if p.Streak != 1 || p.TotalSentences != 3 {
		t.Fatalf("day 1: %+v", p)
	}

	// Day 2: the next calendar day.
	clock.set("2024-01-02")
	if p := m.ReconcileStreakForToday(ctx); p.Streak != 1 {
		t.Fatalf("day 2 reconcile streak = %d", p.Streak)
	}
	p, err = m.SaveSession(ctx, completeAll(mustCreate(t, m)))
	if err != nil {
		t.Fatalf("day 2: %v", err)
	}
	if p.Streak != 2 || p.TotalSentences != 6 {
		t.Fatalf("day 2: %+v", p)
	}

	// Day 3 skipped; day 4 reconciles before any session exists.
	clock.set("2024-01-04")
	if _, ok := m.TodaySession(ctx); ok {
		t.Fatalf("day 4 should have no session yet")
	}
	p = m.ReconcileStreakForToday(ctx)
	if p.Streak != 0 {
		t.Fatalf("day 4 streak = %d, want 0", p.Streak)
	}
	if p.TotalSentences != 6 || len(p.Sessions) != 2 {
		t.Fatalf("day 4 history changed: %+v", p)
	}
}
