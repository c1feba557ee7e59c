// Package storetest holds the behaviour every storage backend must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) ports.Storage

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func NewPoll(code string, created time.Time) *domain.Poll {
	return &domain.Poll{
		ID:        uuid.New(),
		Code:      code,
		Question:  "Best pizza topping?",
		Options:   []string{"Mushroom", "Pineapple", "Olives"},
		CreatedAt: created,
		ClosesAt:  created.Add(time.Hour),
		Status:    domain.PollStatusOpen,
	}
}

func Run(t *testing.T, newStore Factory) {
	t.Run("SaveAndGetPoll", func(t *testing.T) { testSaveAndGet(t, newStore(t)) })
	t.Run("SavePollUpserts", func(t *testing.T) { testUpsert(t, newStore(t)) })
	t.Run("CodeUniqueIgnoringCase", func(t *testing.T) { testCodeUniqueness(t, newStore(t)) })
	t.Run("CodeReleasedOnChange", func(t *testing.T) { testCodeReleased(t, newStore(t)) })
	t.Run("PollsWithoutCode", func(t *testing.T) { testNoCode(t, newStore(t)) })
	t.Run("FindByIdentifierOrCode", func(t *testing.T) { testFind(t, newStore(t)) })
	t.Run("ListPollsNewestFirst", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("SaveVoteInsertIfAbsent", func(t *testing.T) { testVoteOnce(t, newStore(t)) })
	t.Run("ConcurrentVotesPersistOne", func(t *testing.T) { testConcurrentVotes(t, newStore(t)) })
	t.Run("Tally", func(t *testing.T) { testTally(t, newStore(t)) })
	t.Run("RemovePollClearsVotes", func(t *testing.T) { testRemove(t, newStore(t)) })
}

func testSaveAndGet(t *testing.T, s ports.Storage) {
	ctx := context.Background()
	poll := NewPoll("Lunch", base)
	require.NoError(t, s.SavePoll(ctx, poll))

	got, err := s.GetPoll(ctx, poll.ID)
	require.NoError(t, err)
	assertSamePoll(t, poll, got)

	_, err = s.GetPoll(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrPollNotFound)
}

func testUpsert(t *testing.T, s ports.Storage) {
	ctx := context.Background()
	poll := NewPoll("lunch", base)
	require.NoError(t, s.SavePoll(ctx, poll))

	// saving an unchanged poll is still a success
	require.NoError(t, s.SavePoll(ctx, poll))

	poll.Question = "Best topping, really?"
	poll.Options = []string{"A", "B"}
	poll.Status = domain.PollStatusClosed
	poll.ClosesAt = base.Add(2 * time.Hour)
	require.NoError(t, s.SavePoll(ctx, poll))

	got, err := s.GetPoll(ctx, poll.ID)
	require.NoError(t, err)
	assertSamePoll(t, poll, got)

	all, err := s.ListPolls(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testCodeUniqueness(t *testing.T, s ports.Storage) {
	ctx := context.Background()
	require.NoError(t, s.SavePoll(ctx, NewPoll("lunch", base)))

	err := s.SavePoll(ctx, NewPoll("LUNCH", base.Add(time.Second)))
	assert.ErrorIs(t, err, domain.ErrCodeInUse)

	all, err := s.ListPolls(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testCodeReleased(t *testing.T, s ports.Storage) {
	ctx := context.Background()
	poll := NewPoll("lunch", base)
	require.NoError(t, s.SavePoll(ctx, poll))

	poll.Code = "dinner"
	require.NoError(t, s.SavePoll(ctx, poll))

	require.NoError(t, s.SavePoll(ctx, NewPoll("Lunch", base.Add(time.Second))))
	assert.ErrorIs(t, s.SavePoll(ctx, NewPoll("DINNER", base.Add(2*time.Second))), domain.ErrCodeInUse)
}

func testNoCode(t *testing.T, s ports.Storage) {
	ctx := context.Background()
	require.NoError(t, s.SavePoll(ctx, NewPoll("", base)))
	require.NoError(t, s.SavePoll(ctx, NewPoll("", base.Add(time.Second))))

	all, err := s.ListPolls(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.FindByIdentifierOrCode(ctx, "")
	assert.ErrorIs(t, err, domain.ErrPollNotFound)
}

func testFind(t *testing.T, s ports.Storage) {
	ctx := context.Background()
	poll := NewPoll("Friday-Lunch", base)
	require.NoError(t, s.SavePoll(ctx, poll))

	for _, ref := range []string{poll.ID.String(), "friday-lunch", "FRIDAY-LUNCH", "  Friday-Lunch "} {
		got, err := s.FindByIdentifierOrCode(ctx, ref)
		require.NoError(t, err, ref)
		assert.Equal(t, poll.ID, got.ID, ref)
	}

	_, err := s.FindByIdentifierOrCode(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrPollNotFound)
	_, err = s.FindByIdentifierOrCode(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrPollNotFound)
}

func testList(t *testing.T, s ports.Storage) {
	ctx := context.Background()
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		poll := NewPoll(fmt.Sprintf("p%d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.SavePoll(ctx, poll))
		ids = append(ids, poll.ID)
	}

	all, err := s.ListPolls(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[1], all[1].ID)
	assert.Equal(t, ids[0], all[2].ID)
}

func testVoteOnce(t *testing.T, s ports.Storage) {
	ctx := context.Background()
	poll := NewPoll("vote", base)
	require.NoError(t, s.SavePoll(ctx, poll))

	voted, err := s.HasVoted(ctx, poll.ID, "alice")
	require.NoError(t, err)
	assert.False(t, voted)

	_, found, err := s.GetVoterChoice(ctx, poll.ID, "alice")
	require.NoError(t, err)
	assert.False(t, found)

	inserted, err := s.SaveVote(ctx, &domain.Vote{PollID: poll.ID, VoterID: "alice", OptionIndex: 1, VotedAt: base})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.SaveVote(ctx, &domain.Vote{PollID: poll.ID, VoterID: "alice", OptionIndex: 2, VotedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	assert.False(t, inserted)

	choice, found, err := s.GetVoterChoice(ctx, poll.ID, "alice")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, choice)

	voted, err = s.HasVoted(ctx, poll.ID, "alice")
	require.NoError(t, err)
	assert.True(t, voted)
}

func testConcurrentVotes(t *testing.T, s ports.Storage) {
	ctx := context.Background()
	poll := NewPoll("race", base)
	require.NoError(t, s.SavePoll(ctx, poll))

	const attempts = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.SaveVote(ctx, &domain.Vote{PollID: poll.ID, VoterID: "bob", OptionIndex: i % 3, VotedAt: base})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, inserted)
	tally, err := s.GetTally(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, tally.Total())
}

func testTally(t *testing.T, s ports.Storage) {
	ctx := context.Background()
	poll := NewPoll("tally", base)
	require.NoError(t, s.SavePoll(ctx, poll))

	tally, err := s.GetTally(ctx, poll.ID)
	require.NoError(t, err)
	assert.Empty(t, tally)

	for i, choice := range []int{0, 0, 0, 1, 1, 1, 2} {
		_, err := s.SaveVote(ctx, &domain.Vote{PollID: poll.ID, VoterID: fmt.Sprintf("voter-%d", i), OptionIndex: choice, VotedAt: base})
		require.NoError(t, err)
	}

	tally, err = s.GetTally(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Tally{0: 3, 1: 3, 2: 1}, tally)
}

func testRemove(t *testing.T, s ports.Storage) {
	ctx := context.Background()
	poll := NewPoll("gone", base)
	other := NewPoll("kept", base.Add(time.Second))
	require.NoError(t, s.SavePoll(ctx, poll))
	require.NoError(t, s.SavePoll(ctx, other))

	for _, p := range []*domain.Poll{poll, other} {
		_, err := s.SaveVote(ctx, &domain.Vote{PollID: p.ID, VoterID: "carol", OptionIndex: 0, VotedAt: base})
		require.NoError(t, err)
	}

	require.NoError(t, s.RemovePoll(ctx, poll.ID))
	require.NoError(t, s.RemovePoll(ctx, poll.ID))

	_, err := s.GetPoll(ctx, poll.ID)
	assert.ErrorIs(t, err, domain.ErrPollNotFound)

	tally, err := s.GetTally(ctx, poll.ID)
	require.NoError(t, err)
	assert.Empty(t, tally)

	voted, err := s.HasVoted(ctx, other.ID, "carol")
	require.NoError(t, err)
	assert.True(t, voted)

	// the code is free again
	require.NoError(t, s.SavePoll(ctx, NewPoll("GONE", base.Add(2*time.Second))))
}

func assertSamePoll(t *testing.T, want, got *domain.Poll) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Code, got.Code)
	assert.Equal(t, want.Question, got.Question)
	assert.Equal(t, want.Options, got.Options)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at %s != %s", want.CreatedAt, got.CreatedAt)
	assert.True(t, want.ClosesAt.Equal(got.ClosesAt), "closes_at %s != %s", want.ClosesAt, got.ClosesAt)
	assert.Equal(t, want.Status, got.Status)
}
