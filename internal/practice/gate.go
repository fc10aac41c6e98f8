package practice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/elecsonJ/everyday-english-writing/pkg/models"
)

// State is the position of one sentence slot in the practice flow
type State int

const (
	// Composing: the user is writing a translation
	Composing State = iota
	// Submitted: waiting for the feedback generator
	Submitted
	// FeedbackReady: feedback is shown, transcriptions are expected
	FeedbackReady
	// Verifying: transcriptions entered, about to be checked
	Verifying
	// Complete: both transcriptions matched; terminal
	Complete
)

func (s State) String() string {
	switch s {
	case Composing:
		return "COMPOSING"
	case Submitted:
		return "SUBMITTED"
	case FeedbackReady:
		return "FEEDBACK"
	case Verifying:
		return "VERIFYING"
	case Complete:
		return "COMPLETE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FeedbackGenerator turns a sentence pair into feedback
type FeedbackGenerator interface {
	GenerateFeedback(ctx context.Context, korean, userInput string) (models.Feedback, error)
}

// Field names a transcription the user has to reproduce
type Field string

const (
	FieldImproved Field = "improvedVersion"
	FieldNative   Field = "nativeVersion"
)

// Mismatch is a transcription that did not match, with the expected text
type Mismatch struct {
	Field    Field
	Expected string
	Got      string
}

// Verification is the result of checking a pair of transcriptions
type Verification struct {
	Matched    bool
	Mismatches []Mismatch
	// Record is the finished sentence; set only when Matched
	Record models.SentenceRecord
}

// Snapshot is a read-only view of a gate
type Snapshot struct {
	State         State
	Korean        string
	UserInput     string
	Feedback      *models.Feedback
	ImprovedGuess string
	NativeGuess   string
}

// Gate is the state machine for one sentence slot:
//
//	Composing -> Submitted -> FeedbackReady -> Verifying -> Complete
//
// A failed generator call returns Submitted to Composing, a failed check
// returns Verifying to FeedbackReady. Entered text is never discarded.
type Gate struct {
	generator FeedbackGenerator
	timeout   time.Duration

	mu            sync.Mutex
	state         State
	korean        string
	userInput     string
	feedback      *models.Feedback
	improvedGuess string
	nativeGuess   string
}

// NewGate restores a gate from a stored record. Records that already carry
// feedback start out Complete.
func NewGate(record models.SentenceRecord, generator FeedbackGenerator, timeout time.Duration) *Gate {
	g := &Gate{
		generator: generator,
		timeout:   timeout,
		state:     Composing,
		korean:    record.Korean,
		userInput: record.UserInput,
	}
	if record.Feedback != nil {
		fb := *record.Feedback
		g.feedback = &fb
		g.state = Complete
	}
	return g
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		State:         g.state,
		Korean:        g.korean,
		UserInput:     g.userInput,
		ImprovedGuess: g.improvedGuess,
		NativeGuess:   g.nativeGuess,
	}
	if g.feedback != nil {
		fb := *g.feedback
		s.Feedback = &fb
	}
	return s
}

// Submit sends the translation to the feedback generator. It calls the
// generator exactly once and never retries.
func (g *Gate) Submit(ctx context.Context, userInput string) error {
	g.mu.Lock()
	if g.state != Composing {
		state := g.state
		g.mu.Unlock()
		return fmt.Errorf("%w: submit while %s", ErrInvalidTransition, state)
	}
	if strings.TrimSpace(userInput) == "" {
		g.mu.Unlock()
		return ErrEmptyInput
	}
	g.userInput = userInput
	g.state = Submitted
	korean := g.korean
	g.mu.Unlock()

	// The lock is not held across the call so the slot stays observable.
	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	fb, err := g.generator.GenerateFeedback(callCtx, korean, userInput)

	g.mu.Lock()
	defer g.mu.Unlock()

	if err != nil {
		g.state = Composing
		return &GenerationError{Kind: classify(err), Err: err}
	}
	if !fb.Valid() {
		g.state = Composing
		return &GenerationError{Kind: KindValidation, Err: ErrMalformedFeedback}
	}

	g.feedback = &fb
	g.state = FeedbackReady
	return nil
}

// EnterTranscriptions records the user's copies of the improved and native
// versions and moves the gate to Verifying.
func (g *Gate) EnterTranscriptions(improved, native string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enterLocked(improved, native)
}

// Check compares the entered transcriptions with the feedback
func (g *Gate) Check() (Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkLocked()
}

// Verify is EnterTranscriptions followed by Check
func (g *Gate) Verify(improved, native string) (Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.enterLocked(improved, native); err != nil {
		return Verification{}, err
	}
	return g.checkLocked()
}

func (g *Gate) enterLocked(improved, native string) error {
	if g.state != FeedbackReady {
		return fmt.Errorf("%w: transcribe while %s", ErrInvalidTransition, g.state)
	}
	g.improvedGuess = improved
	g.nativeGuess = native
	g.state = Verifying
	return nil
}

func (g *Gate) checkLocked() (Verification, error) {
	if g.state != Verifying {
		return Verification{}, fmt.Errorf("%w: check while %s", ErrInvalidTransition, g.state)
	}

	var v Verification
	if !Matches(g.improvedGuess, g.feedback.ImprovedVersion) {
		v.Mismatches = append(v.Mismatches, Mismatch{
			Field:    FieldImproved,
			Expected: g.feedback.ImprovedVersion,
			Got:      g.improvedGuess,
		})
	}
	if !Matches(g.nativeGuess, g.feedback.NativeVersion) {
		v.Mismatches = append(v.Mismatches, Mismatch{
			Field:    FieldNative,
			Expected: g.feedback.NativeVersion,
			Got:      g.nativeGuess,
		})
	}

	if len(v.Mismatches) > 0 {
		g.state = FeedbackReady
		return v, nil
	}

	fb := *g.feedback
	v.Matched = true
	v.Record = models.SentenceRecord{
		Korean:    g.korean,
		UserInput: g.userInput,
		Feedback:  &fb,
	}
	g.state = Complete
	return v, nil
}

// Matches compares a transcription with the expected text, ignoring case and
// surrounding whitespace. Everything else must be identical.
func Matches(guess, expected string) bool {
	return strings.ToLower(strings.TrimSpace(guess)) == strings.ToLower(strings.TrimSpace(expected))
}
