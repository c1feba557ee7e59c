package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
)

// TestPollFlow tests the basic lifecycle: Publish -> Get -> Vote -> Close -> Remove
func TestPollFlow(t *testing.T) {
	app := setupTestApp(t)

	id := app.PublishPoll(t, "alice", "flow", "1h", "Option A", "Option B")

	var fetched domain.Poll
	require.Equal(t, http.StatusOK, app.Do(t, http.MethodGet, "/api/polls/FLOW", "", nil, &fetched))
	assert.Equal(t, id, fetched.ID.String())
	assert.Equal(t, domain.PollStatusOpen, fetched.Status)
	assert.Equal(t, []string{"Option A", "Option B"}, fetched.Options)

	require.Equal(t, http.StatusCreated, app.Do(t, http.MethodPost, "/api/polls/flow/votes", "bob", map[string]int{"option_index": 1}, nil))
	require.Equal(t, http.StatusCreated, app.Do(t, http.MethodPost, "/api/polls/flow/votes", "carol", map[string]int{"option_index": 1}, nil))

	var closed ports.CloseResult
	require.Equal(t, http.StatusOK, app.Do(t, http.MethodPost, "/api/polls/"+id+"/close", "", nil, &closed))
	assert.Equal(t, domain.OutcomeWinner, closed.Outcome.Kind)
	assert.Equal(t, 1, closed.Outcome.OptionIndex)
	assert.Equal(t, 2, closed.Tally.Total())

	require.Equal(t, http.StatusNoContent, app.Do(t, http.MethodDelete, "/api/polls/flow", "", nil, nil))
	assert.Equal(t, http.StatusNotFound, app.Do(t, http.MethodGet, "/api/polls/flow", "", nil, nil))

	tally, err := app.Store.GetTally(context.Background(), uuid.MustParse(id))
	require.NoError(t, err)
	assert.Empty(t, tally)
}

// TestAutoClose waits for the scheduled close of a short poll.
func TestAutoClose(t *testing.T) {
	app := setupTestApp(t)

	app.PublishPoll(t, "alice", "quick", "1s", "Yes", "No")
	require.Equal(t, http.StatusCreated, app.Do(t, http.MethodPost, "/api/polls/quick/votes", "bob", map[string]int{"option_index": 0}, nil))

	require.Eventually(t, func() bool {
		var poll domain.Poll
		if app.Do(t, http.MethodGet, "/api/polls/quick", "", nil, &poll) != http.StatusOK {
			return false
		}
		return poll.Status == domain.PollStatusClosed
	}, 10*time.Second, 100*time.Millisecond)

	var results ports.PollResults
	require.Equal(t, http.StatusOK, app.Do(t, http.MethodGet, "/api/polls/quick/results", "", nil, &results))
	assert.Equal(t, domain.OutcomeWinner, results.Outcome.Kind)

	assert.Equal(t, http.StatusConflict, app.Do(t, http.MethodPost, "/api/polls/quick/votes", "carol", map[string]int{"option_index": 1}, nil))
}

// TestSweepClosesOverduePolls covers polls whose timers were lost.
func TestSweepClosesOverduePolls(t *testing.T) {
	app := setupTestApp(t)
	ctx := context.Background()

	overdue := &domain.Poll{
		ID:        uuid.New(),
		Code:      "stale",
		Question:  "Left behind?",
		Options:   []string{"A", "B"},
		CreatedAt: time.Now().Add(-2 * time.Hour).Truncate(time.Second),
		ClosesAt:  time.Now().Add(-time.Hour).Truncate(time.Second),
		Status:    domain.PollStatusOpen,
	}
	require.NoError(t, app.Store.SavePoll(ctx, overdue))
	app.PublishPoll(t, "alice", "fresh", "1h", "A", "B")

	closed, err := app.Sweeper.CloseExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	var poll domain.Poll
	require.Equal(t, http.StatusOK, app.Do(t, http.MethodGet, "/api/polls/stale", "", nil, &poll))
	assert.Equal(t, domain.PollStatusClosed, poll.Status)
	require.Equal(t, http.StatusOK, app.Do(t, http.MethodGet, "/api/polls/fresh", "", nil, &poll))
	assert.Equal(t, domain.PollStatusOpen, poll.Status)
}
