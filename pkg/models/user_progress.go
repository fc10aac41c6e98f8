package models

// ProgressKey is the storage key the progress record lives under.
const ProgressKey = "english-practice-data"

// UserProgress is the single persisted record of a viewer's practice history
type UserProgress struct {
	Streak            int               `json:"streak" db:"streak"`
	LastCompletedDate *string           `json:"lastCompletedDate" db:"last_completed_date"` // YYYY-MM-DD, nil until the first completed session
	TotalSentences    int               `json:"totalSentences" db:"total_sentences"`
	Sessions          []PracticeSession `json:"sessions" db:"-"`
}

// NewUserProgress returns the empty record used when nothing has been stored yet
func NewUserProgress() UserProgress {
	return UserProgress{Sessions: []PracticeSession{}}
}

// SessionIndex returns the index of the session for date, or -1
func (p *UserProgress) SessionIndex(date string) int {
	for i, s := range p.Sessions {
		if s.Date == date {
			return i
		}
	}
	return -1
}

// LastCompleted returns the last completed date or "" when absent
func (p *UserProgress) LastCompleted() string {
	if p.LastCompletedDate == nil {
		return ""
	}
	return *p.LastCompletedDate
}

// Clone returns a deep copy so callers can mutate without aliasing stored slices
func (p UserProgress) Clone() UserProgress {
	out := p
	if p.LastCompletedDate != nil {
		d := *p.LastCompletedDate
		out.LastCompletedDate = &d
	}
	out.Sessions = make([]PracticeSession, len(p.Sessions))
	for i, s := range p.Sessions {
		out.Sessions[i] = s.Clone()
	}
	return out
}
