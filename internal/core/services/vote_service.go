package services

import (
	"context"

	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
)

// Vote records a single ballot. Votes on the same poll are serialized with
// its close, so a vote either lands before the outcome is computed or is
// rejected as closed.
func (s *pollService) Vote(ctx context.Context, input ports.VoteInput) (*domain.Vote, error) {
	ref, err := s.repo.FindByIdentifierOrCode(ctx, input.PollRef)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(ref.ID.String())
	defer unlock()

	poll, err := s.repo.GetPoll(ctx, ref.ID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !poll.IsOpen(now) {
		return nil, domain.ErrPollClosed
	}

	hasVoted, err := s.repo.HasVoted(ctx, poll.ID, input.VoterID)
	if err != nil {
		return nil, err
	}
	if hasVoted {
		return nil, domain.ErrAlreadyVoted
	}

	if input.OptionIndex < 0 || input.OptionIndex >= len(poll.Options) {
		return nil, domain.ErrInvalidOption
	}

	vote := &domain.Vote{
		PollID:      poll.ID,
		VoterID:     input.VoterID,
		OptionIndex: input.OptionIndex,
		VotedAt:     now,
	}
	inserted, err := s.repo.SaveVote(ctx, vote)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, domain.ErrAlreadyVoted
	}

	s.logger.Debug("vote accepted",
		"poll_id", poll.ID,
		"voter_id", input.VoterID,
		"option_index", input.OptionIndex,
	)
	s.announcer.Announce(ctx, ports.VoteAccepted{Poll: poll, VoterID: input.VoterID, OptionIndex: input.OptionIndex})
	return vote, nil
}

func (s *pollService) VoterChoice(ctx context.Context, ref, voterID string) (int, bool, error) {
	poll, err := s.repo.FindByIdentifierOrCode(ctx, ref)
	if err != nil {
		return 0, false, err
	}
	return s.repo.GetVoterChoice(ctx, poll.ID, voterID)
}
