package domain

import "time"

// Draft is a saved copy of a creation session, keyed by its code.
type Draft struct {
	Code            string    `json:"code"`
	AuthorID        string    `json:"author_id"`
	Question        *string   `json:"question,omitempty"`
	DurationSeconds *int64    `json:"duration_seconds,omitempty"`
	Options         []string  `json:"options"`
	SavedAt         time.Time `json:"saved_at"`
}

func NewDraft(s *CreationSession, now time.Time) Draft {
	c := s.Clone()
	return Draft{
		Code:            c.Code,
		AuthorID:        c.AuthorID,
		Question:        c.Question,
		DurationSeconds: c.DurationSeconds,
		Options:         c.DefinedOptions(),
		SavedAt:         now,
	}
}

// Session rebuilds a fresh, non-editing session for authorID from the draft.
func (d Draft) Session(authorID string, now time.Time) *CreationSession {
	s := NewCreationSession(authorID, now)
	s.Code = d.Code
	if d.Question != nil {
		q := *d.Question
		s.Question = &q
	}
	if d.DurationSeconds != nil {
		v := *d.DurationSeconds
		s.DurationSeconds = &v
	}
	for i := 0; i < len(d.Options) && i < MaxOptions; i++ {
		s.Options[i] = d.Options[i]
	}
	return s
}
