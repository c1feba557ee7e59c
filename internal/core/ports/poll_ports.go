package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
)

type PollRepository interface {
	// SavePoll upserts by id. A code owned by another poll yields domain.ErrCodeInUse.
	SavePoll(ctx context.Context, poll *domain.Poll) error
	GetPoll(ctx context.Context, id uuid.UUID) (*domain.Poll, error)
	// FindByIdentifierOrCode resolves a UUID or a case-insensitive code.
	FindByIdentifierOrCode(ctx context.Context, ref string) (*domain.Poll, error)
	// ListPolls returns every poll, most recently created first.
	ListPolls(ctx context.Context) ([]*domain.Poll, error)
	// RemovePoll deletes the poll and all its votes. Absent polls are not an error.
	RemovePoll(ctx context.Context, id uuid.UUID) error
}

// Storage is the full backend contract every variant implements.
type Storage interface {
	PollRepository
	VoteRepository
	Close() error
}

type CloseResult struct {
	Poll    *domain.Poll   `json:"poll"`
	Outcome domain.Outcome `json:"outcome"`
	Tally   domain.Tally   `json:"tally"`
	// AlreadyClosed is set when the call was a no-op on a closed poll.
	AlreadyClosed bool `json:"already_closed"`
}

type PollResults struct {
	Poll    *domain.Poll   `json:"poll"`
	Tally   domain.Tally   `json:"tally"`
	Outcome domain.Outcome `json:"outcome"`
}

type PollService interface {
	Publish(ctx context.Context, authorID string) (*domain.Poll, error)
	BeginEdit(ctx context.Context, authorID, ref string) (*domain.CreationSession, error)
	Close(ctx context.Context, ref string) (CloseResult, error)
	// Expire closes an open poll as if its timer fired. Closed or removed
	// polls are left untouched.
	Expire(ctx context.Context, id uuid.UUID) (CloseResult, error)
	Remove(ctx context.Context, ref string) error
	Vote(ctx context.Context, input VoteInput) (*domain.Vote, error)
	Get(ctx context.Context, ref string) (*domain.Poll, error)
	List(ctx context.Context) ([]*domain.Poll, error)
	Results(ctx context.Context, ref string) (PollResults, error)
	VoterChoice(ctx context.Context, ref, voterID string) (int, bool, error)
	Resume(ctx context.Context) error
	Shutdown()
}

type SweepService interface {
	// CloseExpired closes every open poll whose deadline has passed.
	CloseExpired(ctx context.Context) (int, error)
}
