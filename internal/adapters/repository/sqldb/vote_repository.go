package sqldb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
)

type voteRepository struct {
	repository
}

func (r *voteRepository) SaveVote(ctx context.Context, vote *domain.Vote) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, r.q(r.dialect.insertVoteQuery()),
		vote.PollID, vote.VoterID, vote.OptionIndex, vote.VotedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, unavailable("failed to save vote", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("failed to save vote", err)
	}
	return inserted > 0, nil
}

func (r *voteRepository) HasVoted(ctx context.Context, pollID uuid.UUID, voterID string) (bool, error) {
	_, found, err := r.GetVoterChoice(ctx, pollID, voterID)
	return found, err
}

func (r *voteRepository) GetVoterChoice(ctx context.Context, pollID uuid.UUID, voterID string) (int, bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var index int
	err := r.db.QueryRowContext(ctx, r.q(`SELECT option_index FROM votes WHERE poll_id = ? AND voter_id = ?`), pollID, voterID).Scan(&index)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, unavailable("failed to check existing vote", err)
	}
	return index, true, nil
}

func (r *voteRepository) GetTally(ctx context.Context, pollID uuid.UUID) (domain.Tally, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, r.q(`
		SELECT option_index, COUNT(*)
		FROM votes
		WHERE poll_id = ?
		GROUP BY option_index
	`), pollID)
	if err != nil {
		return nil, unavailable("failed to count votes", err)
	}
	defer rows.Close()

	tally := domain.Tally{}
	for rows.Next() {
		var index, count int
		if err := rows.Scan(&index, &count); err != nil {
			return nil, unavailable("failed to scan vote count", err)
		}
		tally[index] = count
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("error iterating vote counts", err)
	}
	return tally, nil
}
