package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/elecsonJ/everyday-english-writing/internal/progress"
	"github.com/elecsonJ/everyday-english-writing/pkg/models"
)

// DateLayout is the calendar date format used for session keys
const DateLayout = "2006-01-02"

// ErrInvalidSession is returned for a malformed session
var ErrInvalidSession = errors.New("invalid session")

// Manager owns the UserProgress record: today's session, the day boundary and
// the streak rules. All dates are calendar dates in one time zone.
type Manager struct {
	store progress.Store
	now   func() time.Time
	loc   *time.Location

	// read-modify-write of the progress record is one step
	mu sync.Mutex
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLocation sets the time zone that defines calendar days
func WithLocation(loc *time.Location) Option {
	return func(m *Manager) {
		if loc != nil {
			m.loc = loc
		}
	}
}

func NewManager(store progress.Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		now:   time.Now,
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Today returns today's calendar date
func (m *Manager) Today() string {
	return m.now().In(m.loc).Format(DateLayout)
}

// Yesterday returns the calendar date before today
func (m *Manager) Yesterday() string {
	t := m.now().In(m.loc)
	// Noon keeps the arithmetic clear of DST transitions.
	y := time.Date(t.Year(), t.Month(), t.Day()-1, 12, 0, 0, 0, m.loc)
	return y.Format(DateLayout)
}

// Progress returns the current record
func (m *Manager) Progress(ctx context.Context) models.UserProgress {
	return m.store.Load(ctx)
}

// ReconcileStreakForToday zeroes a streak that was broken by a missed day.
// Run it once at startup before showing any session.
func (m *Manager) ReconcileStreakForToday(ctx context.Context) models.UserProgress {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.store.Load(ctx)
	last := p.LastCompleted()
	if last == m.Today() || last == m.Yesterday() {
		return p
	}
	if p.Streak != 0 {
		p.Streak = 0
		m.store.Save(ctx, p)
	}
	return p
}

// TodaySession returns the stored session for today, if any
func (m *Manager) TodaySession(ctx context.Context) (models.PracticeSession, bool) {
	p := m.store.Load(ctx)
	i := p.SessionIndex(m.Today())
	if i < 0 {
		return models.PracticeSession{}, false
	}
	return p.Sessions[i], true
}

// CreateSession builds today's session for the given Korean sentences.
// The session is not persisted.
func (m *Manager) CreateSession(sentences []string) (models.PracticeSession, error) {
	if len(sentences) != models.SentencesPerSession {
		return models.PracticeSession{}, fmt.Errorf("%w: need %d sentences, got %d",
			ErrInvalidSession, models.SentencesPerSession, len(sentences))
	}

	records := make([]models.SentenceRecord, len(sentences))
	for i, k := range sentences {
		k = strings.TrimSpace(k)
		if k == "" {
			return models.PracticeSession{}, fmt.Errorf("%w: sentence %d is empty", ErrInvalidSession, i+1)
		}
		records[i] = models.SentenceRecord{Korean: k}
	}

	return models.PracticeSession{
		Date:      m.Today(),
		Completed: false,
		Sentences: records,
	}, nil
}

// SaveSession upserts the session by date. The save that first marks a
// session completed also advances the streak and the sentence total; saving
// an already completed session again changes nothing.
func (m *Manager) SaveSession(ctx context.Context, s models.PracticeSession) (models.UserProgress, error) {
	if err := validate(s); err != nil {
		return models.UserProgress{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.store.Load(ctx)

	// Decide the transition against the stored copy before overwriting it.
	idx := p.SessionIndex(s.Date)
	wasCompleted := idx >= 0 && p.Sessions[idx].Completed

	if idx >= 0 {
		p.Sessions[idx] = s.Clone()
	} else {
		p.Sessions = append(p.Sessions, s.Clone())
	}

	if s.Completed && !wasCompleted {
		today := m.Today()
		switch p.LastCompleted() {
		case m.Yesterday():
			p.Streak++
		case today:
			// already counted today
		default:
			p.Streak = 1
		}
		p.LastCompletedDate = &today
		p.TotalSentences += models.SentencesPerSession
	}

	m.store.Save(ctx, p)
	return p, nil
}

func validate(s models.PracticeSession) error {
	if s.Date == "" {
		return fmt.Errorf("%w: missing date", ErrInvalidSession)
	}
	if _, err := time.Parse(DateLayout, s.Date); err != nil {
		return fmt.Errorf("%w: bad date %q", ErrInvalidSession, s.Date)
	}
	if len(s.Sentences) != models.SentencesPerSession {
		return fmt.Errorf("%w: need %d sentences, got %d",
			ErrInvalidSession, models.SentencesPerSession, len(s.Sentences))
	}
	if s.Completed && !s.AllDone() {
		return fmt.Errorf("%w: completed with %d/%d sentences done",
			ErrInvalidSession, s.CompletedCount(), models.SentencesPerSession)
	}
	return nil
}
