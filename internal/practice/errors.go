package practice

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when an operation is not allowed in the gate's state
	ErrInvalidTransition = errors.New("invalid gate transition")
	// ErrEmptyInput is returned when submitting a blank translation
	ErrEmptyInput = errors.New("translation is empty")
	// ErrMalformedFeedback is returned when the generator's feedback misses a field
	ErrMalformedFeedback = errors.New("feedback is missing required fields")
	// ErrMalformedSentences is returned when the sentence generator's reply cannot be used
	ErrMalformedSentences = errors.New("malformed sentence list")
	// ErrIndex is returned for a sentence slot outside the session
	ErrIndex = errors.New("sentence index out of range")
)

// FailureKind classifies a recoverable generator failure
type FailureKind string

const (
	// KindGeneration means the generator was unreachable or returned an error
	KindGeneration FailureKind = "generation"
	// KindValidation means the generator answered with incomplete data
	KindValidation FailureKind = "validation"
)

// GenerationError reports a failed feedback or sentence request. The user
// recovers by retrying; nothing entered so far is lost.
type GenerationError struct {
	Kind FailureKind
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s failure: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// classify maps a generator error to its failure kind
func classify(err error) FailureKind {
	if errors.Is(err, ErrMalformedFeedback) || errors.Is(err, ErrMalformedSentences) {
		return KindValidation
	}
	return KindGeneration
}
