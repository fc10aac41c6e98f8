package models

import "strings"

// SentencesPerSession is the fixed number of sentences practiced each day
const SentencesPerSession = 3

// Feedback is the structured correction returned by the language model
type Feedback struct {
	GrammarCheck    string `json:"grammarCheck"`
	ImprovedVersion string `json:"improvedVersion"`
	NativeVersion   string `json:"nativeVersion"`
}

// Valid reports whether all three fields are present
func (f Feedback) Valid() bool {
	return strings.TrimSpace(f.GrammarCheck) != "" &&
		strings.TrimSpace(f.ImprovedVersion) != "" &&
		strings.TrimSpace(f.NativeVersion) != ""
}

// SentenceRecord is one Korean sentence and the user's verified answer
type SentenceRecord struct {
	Korean    string    `json:"korean"`
	UserInput string    `json:"userInput"`
	Feedback  *Feedback `json:"feedback,omitempty"`
}

// Done reports whether the sentence passed verification
func (r SentenceRecord) Done() bool {
	return r.Feedback != nil
}

// PracticeSession is the set of sentences practiced on one calendar date
type PracticeSession struct {
	Date      string           `json:"date"` // "2024-01-02"
	Completed bool             `json:"completed"`
	Sentences []SentenceRecord `json:"sentences"`
}

// CompletedCount returns the number of sentences with feedback
func (s PracticeSession) CompletedCount() int {
	n := 0
	for _, r := range s.Sentences {
		if r.Done() {
			n++
		}
	}
	return n
}

// AllDone reports whether every sentence slot has feedback
func (s PracticeSession) AllDone() bool {
	return len(s.Sentences) == SentencesPerSession && s.CompletedCount() == SentencesPerSession
}

// Korean returns the Korean sentences in slot order
func (s PracticeSession) Korean() []string {
	out := make([]string, len(s.Sentences))
	for i, r := range s.Sentences {
		out[i] = r.Korean
	}
	return out
}

// Clone returns a deep copy of the session
func (s PracticeSession) Clone() PracticeSession {
	out := s
	out.Sentences = make([]SentenceRecord, len(s.Sentences))
	for i, r := range s.Sentences {
		out.Sentences[i] = r
		if r.Feedback != nil {
			fb := *r.Feedback
			out.Sentences[i].Feedback = &fb
		}
	}
	return out
}
