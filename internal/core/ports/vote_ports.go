package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
)

type VoteRepository interface {
	// SaveVote inserts the vote unless one already exists for (poll, voter).
	// It reports whether a row was written.
	SaveVote(ctx context.Context, vote *domain.Vote) (bool, error)
	HasVoted(ctx context.Context, pollID uuid.UUID, voterID string) (bool, error)
	GetVoterChoice(ctx context.Context, pollID uuid.UUID, voterID string) (int, bool, error)
	GetTally(ctx context.Context, pollID uuid.UUID) (domain.Tally, error)
}

type VoteInput struct {
	PollRef     string
	VoterID     string
	OptionIndex int
}
