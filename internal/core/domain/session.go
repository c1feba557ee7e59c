package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type FieldKind string

const (
	FieldNone     FieldKind = ""
	FieldCode     FieldKind = "code"
	FieldQuestion FieldKind = "question"
	FieldDuration FieldKind = "duration"
	FieldOption   FieldKind = "option"
)

// Field names a draft slot. Index is only used by FieldOption and is 0-based.
type Field struct {
	Kind  FieldKind `json:"kind"`
	Index int       `json:"index,omitempty"`
}

func OptionField(index int) Field {
	return Field{Kind: FieldOption, Index: index}
}

// ParseField resolves a field name as sent by a command layer.
func ParseField(name string, index int) (Field, error) {
	f := Field{Kind: FieldKind(strings.ToLower(strings.TrimSpace(name)))}
	switch f.Kind {
	case FieldCode, FieldQuestion, FieldDuration:
	case FieldOption:
		f.Index = index
	default:
		return Field{}, fmt.Errorf("%w: %q", ErrInvalidField, name)
	}
	return f, f.validate()
}

func (f Field) validate() error {
	if f.Kind == FieldOption && (f.Index < 0 || f.Index >= MaxOptions) {
		return fmt.Errorf("%w: option %d out of range", ErrInvalidField, f.Index+1)
	}
	return nil
}

func (f Field) String() string {
	if f.Kind == FieldOption {
		return fmt.Sprintf("option %d", f.Index+1)
	}
	if f.Kind == FieldNone {
		return "none"
	}
	return string(f.Kind)
}

// CreationSession is an author's unpublished poll draft. It is a pure state
// machine; ownership and timers live in the session service.
type CreationSession struct {
	AuthorID        string             `json:"author_id"`
	Code            string             `json:"code,omitempty"`
	Question        *string            `json:"question,omitempty"`
	DurationSeconds *int64             `json:"duration_seconds,omitempty"`
	Options         [MaxOptions]string `json:"options"`
	Awaiting        Field              `json:"awaiting"`
	EditingPollID   *uuid.UUID         `json:"editing_poll_id,omitempty"`
	StartedAt       time.Time          `json:"started_at"`
}

func NewCreationSession(authorID string, now time.Time) *CreationSession {
	return &CreationSession{AuthorID: authorID, StartedAt: now}
}

// NewEditingSession pre-fills a session from an existing poll. The remaining
// time becomes the duration only while the poll is open.
func NewEditingSession(authorID string, poll *Poll, now time.Time) *CreationSession {
	s := NewCreationSession(authorID, now)
	s.Code = poll.Code
	question := poll.Question
	s.Question = &question
	for i := 0; i < len(poll.Options) && i < MaxOptions; i++ {
		s.Options[i] = poll.Options[i]
	}
	if poll.Status == PollStatusOpen {
		remaining := int64(poll.ClosesAt.Sub(now) / time.Second)
		if remaining < 0 {
			remaining = 0
		}
		s.DurationSeconds = &remaining
	}
	id := poll.ID
	s.EditingPollID = &id
	return s
}

func (s *CreationSession) IsEditing() bool {
	return s.EditingPollID != nil
}

func (s *CreationSession) SetCode(code string) {
	s.Code = code
}

func (s *CreationSession) SetQuestion(question string) {
	s.Question = &question
}

func (s *CreationSession) SetDurationSeconds(seconds int64) {
	s.DurationSeconds = &seconds
}

func (s *CreationSession) SetOption(index int, value string) error {
	if err := OptionField(index).validate(); err != nil {
		return err
	}
	s.Options[index] = value
	return nil
}

// Set stores value into field directly. Durations go through ParseDuration.
func (s *CreationSession) Set(field Field, value string) error {
	switch field.Kind {
	case FieldCode:
		s.SetCode(value)
	case FieldQuestion:
		s.SetQuestion(value)
	case FieldDuration:
		seconds, err := ParseDuration(value)
		if err != nil {
			return err
		}
		s.SetDurationSeconds(seconds)
	case FieldOption:
		return s.SetOption(field.Index, value)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidField, field.Kind)
	}
	return nil
}

// Await marks field as the target of the next external text input.
func (s *CreationSession) Await(field Field) error {
	if field.Kind == FieldNone {
		s.ClearAwaiting()
		return nil
	}
	if _, err := ParseField(string(field.Kind), field.Index); err != nil {
		return err
	}
	s.Awaiting = field
	return nil
}

func (s *CreationSession) ClearAwaiting() {
	s.Awaiting = Field{}
}

func (s *CreationSession) IsAwaiting() bool {
	return s.Awaiting.Kind != FieldNone
}

// Fill consumes raw input for the awaited field. It reports false when the
// session was not waiting for anything. A failed fill leaves the session as is.
func (s *CreationSession) Fill(raw string) (bool, error) {
	if !s.IsAwaiting() {
		return false, nil
	}
	if err := s.Set(s.Awaiting, raw); err != nil {
		return true, err
	}
	s.ClearAwaiting()
	return true, nil
}

// DefinedOptions returns the non-blank option slots in slot order.
func (s *CreationSession) DefinedOptions() []string {
	var out []string
	for _, opt := range s.Options {
		if strings.TrimSpace(opt) != "" {
			out = append(out, opt)
		}
	}
	return out
}

func (s *CreationSession) Clone() *CreationSession {
	c := *s
	if s.Question != nil {
		q := *s.Question
		c.Question = &q
	}
	if s.DurationSeconds != nil {
		d := *s.DurationSeconds
		c.DurationSeconds = &d
	}
	if s.EditingPollID != nil {
		id := *s.EditingPollID
		c.EditingPollID = &id
	}
	return &c
}
