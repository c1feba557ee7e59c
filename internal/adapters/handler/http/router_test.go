package http

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vncsmyrnk/timedpolls/internal/adapters/repository/file"
	"github.com/vncsmyrnk/timedpolls/internal/adapters/scheduler"
	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
	"github.com/vncsmyrnk/timedpolls/internal/core/services"
)

type testServer struct {
	t      *testing.T
	server *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := file.Open(filepath.Join(t.TempDir(), "polls.json"), nil)
	require.NoError(t, err)

	sched := scheduler.New(nil)
	sessions := services.NewSessionService(sched, nil, services.SessionConfig{})
	polls := services.NewPollService(store, sessions, sched, nil, services.PollConfig{})

	router := NewHandler(NewSessionHandler(sessions, polls), NewPollHandler(polls), NewVoteHandler(polls), nil)
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		polls.Shutdown()
		sessions.Shutdown()
		sched.Stop()
	})
	return &testServer{t: t, server: server}
}

func (s *testServer) do(method, path, user string, body any, out any) int {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}

	resp, err := s.server.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *testServer) publish(user, code string, options ...string) *domain.Poll {
	s.t.Helper()
	require.Equal(s.t, http.StatusCreated, s.do(http.MethodPost, "/api/sessions", user, nil, nil))
	require.Equal(s.t, http.StatusOK, s.do(http.MethodPut, "/api/sessions/fields/code", user, fieldRequest{Value: code}, nil))
	require.Equal(s.t, http.StatusOK, s.do(http.MethodPut, "/api/sessions/fields/question", user, fieldRequest{Value: "Lunch?"}, nil))
	for i, opt := range options {
		require.Equal(s.t, http.StatusOK, s.do(http.MethodPut, "/api/sessions/fields/option", user, fieldRequest{Option: i + 1, Value: opt}, nil))
	}

	var poll domain.Poll
	require.Equal(s.t, http.StatusCreated, s.do(http.MethodPost, "/api/sessions/publish", user, nil, &poll))
	return &poll
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", nil, nil))
}

func TestSessionRoutesRequireUser(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/sessions", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/polls/x/votes", "", voteRequest{}, nil))
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/sessions", "alice", nil, nil))
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/sessions", "alice", nil, nil))
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/sessions", "alice", nil, nil))

	var session domain.CreationSession
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/sessions/await", "alice", fieldRequest{Field: "option", Option: 2}, &session))
	assert.Equal(t, domain.OptionField(1), session.Awaiting)

	var filled inputResponse
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/sessions/input", "alice", inputRequest{Text: "Sushi"}, &filled))
	assert.True(t, filled.Filled)
	assert.Equal(t, "Sushi", filled.Session.Options[1])

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/api/sessions/fields/duration", "alice", fieldRequest{Value: "soon"}, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPut, "/api/sessions/fields/colour", "alice", fieldRequest{Value: "red"}, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/sessions/publish", "alice", nil, nil))

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/sessions", "alice", nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/sessions", "alice", nil, nil))
}

func TestDrafts(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/sessions", "alice", nil, nil))
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, "/api/sessions/fields/code", "alice", fieldRequest{Value: "retro"}, nil))
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/sessions/drafts", "alice", nil, nil))

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/sessions/drafts/nope", "bob", nil, nil))

	var session domain.CreationSession
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/sessions/drafts/RETRO", "bob", nil, &session))
	assert.Equal(t, "bob", session.AuthorID)
	assert.Equal(t, "retro", session.Code)
}

func TestPollVoteAndClose(t *testing.T) {
	s := newTestServer(t)
	poll := s.publish("alice", "lunch", "Pizza", "Sushi")
	assert.Equal(t, domain.PollStatusOpen, poll.Status)

	var polls []domain.Poll
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/polls", "", nil, &polls))
	require.Len(t, polls, 1)

	var fetched domain.Poll
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/polls/LUNCH", "", nil, &fetched))
	assert.Equal(t, poll.ID, fetched.ID)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/polls/dinner", "", nil, nil))

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/polls/lunch/my-vote", "bob", nil, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/polls/lunch/votes", "bob", map[string]any{}, nil))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/polls/lunch/votes", "bob", voteRequest{OptionIndex: intPtr(5)}, nil))

	var vote domain.Vote
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/polls/lunch/votes", "bob", voteRequest{OptionIndex: intPtr(1)}, &vote))
	assert.Equal(t, "bob", vote.VoterID)
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/polls/lunch/votes", "bob", voteRequest{OptionIndex: intPtr(0)}, nil))

	var mine myVoteResponse
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/polls/"+poll.ID.String()+"/my-vote", "bob", nil, &mine))
	assert.Equal(t, 1, mine.OptionIndex)

	var closed ports.CloseResult
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/polls/lunch/close", "", nil, &closed))
	assert.False(t, closed.AlreadyClosed)
	assert.Equal(t, domain.OutcomeWinner, closed.Outcome.Kind)
	assert.Equal(t, domain.PollStatusClosed, closed.Poll.Status)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/polls/lunch/close", "", nil, &closed))
	assert.True(t, closed.AlreadyClosed)

	var results ports.PollResults
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/polls/lunch/results", "", nil, &results))
	assert.Equal(t, 1, results.Tally.Total())

	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/polls/lunch/votes", "carol", voteRequest{OptionIndex: intPtr(0)}, nil))
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/polls/lunch/edit", "alice", nil, nil))
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/sessions/publish", "alice", nil, nil))

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/polls/lunch", "", nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/polls/lunch", "", nil, nil))
}

func TestEditPublishedPoll(t *testing.T) {
	s := newTestServer(t)
	poll := s.publish("alice", "standup", "Yes", "No")

	var session domain.CreationSession
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/polls/standup/edit", "alice", nil, &session))
	require.NotNil(t, session.EditingPollID)
	assert.Equal(t, poll.ID, *session.EditingPollID)

	require.Equal(t, http.StatusOK, s.do(http.MethodPut, "/api/sessions/fields/option", "alice", fieldRequest{Option: 3, Value: "Maybe"}, nil))

	var edited domain.Poll
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/sessions/publish", "alice", nil, &edited))
	assert.Equal(t, poll.ID, edited.ID)
	assert.Equal(t, []string{"Yes", "No", "Maybe"}, edited.Options)
}

func TestCodeInUse(t *testing.T) {
	s := newTestServer(t)
	s.publish("alice", "lunch", "A", "B")

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/sessions", "bob", nil, nil))
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, "/api/sessions/fields/code", "bob", fieldRequest{Value: "Lunch"}, nil))
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, "/api/sessions/fields/option", "bob", fieldRequest{Option: 1, Value: "A"}, nil))
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, "/api/sessions/fields/option", "bob", fieldRequest{Option: 2, Value: "B"}, nil))
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, "/api/sessions/publish", "bob", nil, nil))
}

func intPtr(n int) *int {
	return &n
}
