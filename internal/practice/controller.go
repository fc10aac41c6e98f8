package practice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/elecsonJ/everyday-english-writing/internal/session"
	"github.com/elecsonJ/everyday-english-writing/pkg/models"
	"go.uber.org/zap"
)

// SentenceGenerator supplies the Korean sentences for a new day
type SentenceGenerator interface {
	GenerateSentences(ctx context.Context) ([]string, error)
}

// Notifier receives the requests the controller makes to the outside world
type Notifier interface {
	// ArmDailyReminder schedules the daily practice reminder
	ArmDailyReminder(ctx context.Context) error
	// ShowCompletion congratulates the user on finishing today's session
	ShowCompletion(ctx context.Context, streak int) error
}

// Deps are the collaborators of a Controller
type Deps struct {
	Sessions  *session.Manager
	Feedback  FeedbackGenerator
	Sentences SentenceGenerator
	Notifier  Notifier
	// RemindersEnabled is true when the user already allowed reminders
	RemindersEnabled bool
	// Timeout bounds each feedback request; zero means no limit
	Timeout time.Duration
	Log     *zap.Logger
}

// Outcome is what a verification attempt produced. When SessionCompleted is
// set the session just finished and Streak holds the updated streak.
type Outcome struct {
	Index            int
	Verification     Verification
	CompletedCount   int
	SessionCompleted bool
	Streak           int
}

// Controller drives the three gates of one day's session
type Controller struct {
	sessions *session.Manager
	feedback FeedbackGenerator
	notifier Notifier
	timeout  time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	current models.PracticeSession
	gates   []*Gate
}

// Open prepares today's practice: it reconciles the streak, loads today's
// session or creates one from freshly generated sentences, and arms the
// daily reminder when the user has allowed it.
func Open(ctx context.Context, deps Deps) (*Controller, error) {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	deps.Sessions.ReconcileStreakForToday(ctx)

	s, ok := deps.Sessions.TodaySession(ctx)
	if !ok {
		sentences, err := deps.Sentences.GenerateSentences(ctx)
		if err != nil {
			return nil, &GenerationError{Kind: classify(err), Err: err}
		}
		s, err = deps.Sessions.CreateSession(sentences)
		if err != nil {
			return nil, &GenerationError{Kind: KindValidation, Err: err}
		}
		if _, err := deps.Sessions.SaveSession(ctx, s); err != nil {
			return nil, fmt.Errorf("failed to save new session: %w", err)
		}
		deps.Log.Info("created session", zap.String("date", s.Date))
	}

	c := &Controller{
		sessions: deps.Sessions,
		feedback: deps.Feedback,
		notifier: deps.Notifier,
		timeout:  deps.Timeout,
		log:      deps.Log,
	}
	c.load(s)

	if deps.RemindersEnabled && deps.Notifier != nil {
		if err := deps.Notifier.ArmDailyReminder(ctx); err != nil {
			c.log.Warn("failed to arm daily reminder", zap.Error(err))
		}
	}
	return c, nil
}

func (c *Controller) load(s models.PracticeSession) {
	c.current = s.Clone()
	c.gates = make([]*Gate, len(s.Sentences))
	for i, r := range s.Sentences {
		c.gates[i] = NewGate(r, c.feedback, c.timeout)
	}
}

// Date returns the calendar date of the session being practiced
func (c *Controller) Date() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Date
}

// Session returns a copy of the session
func (c *Controller) Session() models.PracticeSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Clone()
}

// CompletedCount returns how many sentences are done
func (c *Controller) CompletedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.CompletedCount()
}

// Streak returns the stored streak
func (c *Controller) Streak(ctx context.Context) int {
	return c.sessions.Progress(ctx).Streak
}

// Gate returns the gate for sentence slot i
func (c *Controller) Gate(i int) (*Gate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i < 0 || i >= len(c.gates) {
		return nil, fmt.Errorf("%w: %d", ErrIndex, i)
	}
	return c.gates[i], nil
}

// Submit sends the translation for slot i to the feedback generator. Only
// that slot waits for the answer.
func (c *Controller) Submit(ctx context.Context, i int, userInput string) error {
	g, err := c.Gate(i)
	if err != nil {
		return err
	}
	return g.Submit(ctx, userInput)
}

// Verify checks the transcriptions for slot i. On a match the sentence is
// recorded and the session persisted; the third match completes the session,
// updates the streak and asks the notifier to show the completion message.
func (c *Controller) Verify(ctx context.Context, i int, improved, native string) (Outcome, error) {
	g, err := c.Gate(i)
	if err != nil {
		return Outcome{}, err
	}

	v, err := g.Verify(improved, native)
	if err != nil {
		return Outcome{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out := Outcome{Index: i, Verification: v, CompletedCount: c.current.CompletedCount()}
	if !v.Matched {
		return out, nil
	}

	c.current.Sentences[i] = v.Record
	out.CompletedCount = c.current.CompletedCount()

	if out.CompletedCount == models.SentencesPerSession {
		c.current.Completed = true
	}

	p, err := c.sessions.SaveSession(ctx, c.current)
	if err != nil {
		return out, fmt.Errorf("failed to save session: %w", err)
	}
	out.Streak = p.Streak

	if c.current.Completed {
		out.SessionCompleted = true
		c.log.Info("session completed",
			zap.String("date", c.current.Date),
			zap.Int("streak", p.Streak),
			zap.Int("total_sentences", p.TotalSentences),
		)
		if c.notifier != nil {
			if err := c.notifier.ShowCompletion(ctx, p.Streak); err != nil {
				c.log.Warn("failed to show completion", zap.Error(err))
			}
		}
	}
	return out, nil
}

// Reset discards today's answers and feedback so the same sentences can be
// practiced again. Streak and sentence totals are left alone.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.sessions.CreateSession(c.current.Korean())
	if err != nil {
		return err
	}
	s.Date = c.current.Date

	if _, err := c.sessions.SaveSession(ctx, s); err != nil {
		return fmt.Errorf("failed to save reset session: %w", err)
	}
	c.load(s)
	return nil
}
