package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreationSessionFill(t *testing.T) {
	s := NewCreationSession("alice", time.Now())

	filled, err := s.Fill("ignored")
	require.NoError(t, err)
	assert.False(t, filled)

	require.NoError(t, s.Await(Field{Kind: FieldQuestion}))
	filled, err = s.Fill("<b>Pizza or tacos?</b>")
	require.NoError(t, err)
	assert.True(t, filled)
	require.NotNil(t, s.Question)
	assert.Equal(t, "<b>Pizza or tacos?</b>", *s.Question)
	assert.False(t, s.IsAwaiting())

	require.NoError(t, s.Await(Field{Kind: FieldDuration}))
	_, err = s.Fill("2h 3m")
	assert.ErrorIs(t, err, ErrInvalidDurationFormat)
	assert.Equal(t, FieldDuration, s.Awaiting.Kind)
	assert.Nil(t, s.DurationSeconds)

	_, err = s.Fill("1d2h30m")
	require.NoError(t, err)
	require.NotNil(t, s.DurationSeconds)
	assert.Equal(t, int64(95400), *s.DurationSeconds)
	assert.False(t, s.IsAwaiting())

	require.NoError(t, s.Await(OptionField(4)))
	_, err = s.Fill("Tacos")
	require.NoError(t, err)
	assert.Equal(t, "Tacos", s.Options[4])
}

func TestCreationSessionAwaitRejectsBadOption(t *testing.T) {
	s := NewCreationSession("alice", time.Now())
	assert.ErrorIs(t, s.Await(OptionField(MaxOptions)), ErrInvalidField)
	assert.ErrorIs(t, s.Await(Field{Kind: "colour"}), ErrInvalidField)
	assert.False(t, s.IsAwaiting())
}

func TestDefinedOptionsKeepsSlotOrder(t *testing.T) {
	s := NewCreationSession("alice", time.Now())
	require.NoError(t, s.SetOption(5, "last"))
	require.NoError(t, s.SetOption(0, "first"))
	require.NoError(t, s.SetOption(2, "   "))
	require.NoError(t, s.SetOption(3, "middle"))

	assert.Equal(t, []string{"first", "middle", "last"}, s.DefinedOptions())
}

func TestNewEditingSession(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	poll := &Poll{
		ID:       uuid.New(),
		Code:     "lunch",
		Question: "Lunch?",
		Options:  []string{"a", "b", "c"},
		ClosesAt: now.Add(90 * time.Second),
		Status:   PollStatusOpen,
	}

	s := NewEditingSession("bob", poll, now)
	assert.True(t, s.IsEditing())
	assert.Equal(t, poll.ID, *s.EditingPollID)
	assert.Equal(t, []string{"a", "b", "c"}, s.DefinedOptions())
	require.NotNil(t, s.DurationSeconds)
	assert.Equal(t, int64(90), *s.DurationSeconds)

	poll.Status = PollStatusClosed
	closed := NewEditingSession("bob", poll, now)
	assert.Nil(t, closed.DurationSeconds)
	assert.Equal(t, "Lunch?", *closed.Question)

	poll.Status = PollStatusOpen
	poll.ClosesAt = now.Add(-time.Minute)
	late := NewEditingSession("bob", poll, now)
	assert.Equal(t, int64(0), *late.DurationSeconds)
}
