package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
)

// Event is something the presentation layer may render.
type Event interface {
	EventName() string
}

type Announcer interface {
	Announce(ctx context.Context, event Event)
}

type PollPublished struct {
	Poll   *domain.Poll
	Edited bool
}

type PollClosed struct {
	Poll    *domain.Poll
	Outcome domain.Outcome
	Tally   domain.Tally
	Manual  bool
}

type VoteAccepted struct {
	Poll        *domain.Poll
	VoterID     string
	OptionIndex int
}

// SessionIdle asks the presentation layer to show the draft again.
type SessionIdle struct {
	Session *domain.CreationSession
}

// CloseFailed signals that an automatic close hit a storage error and will be retried.
type CloseFailed struct {
	PollID uuid.UUID
	Err    error
}

func (PollPublished) EventName() string { return "poll_published" }
func (PollClosed) EventName() string    { return "poll_closed" }
func (VoteAccepted) EventName() string  { return "vote_accepted" }
func (SessionIdle) EventName() string   { return "session_idle" }
func (CloseFailed) EventName() string   { return "close_failed" }
