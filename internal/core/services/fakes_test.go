package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeScheduler never fires on its own; tests call Fire.
type fakeScheduler struct {
	mu    sync.Mutex
	tasks map[string]*fakeTask
}

type fakeTask struct {
	s         *fakeScheduler
	key       string
	delay     time.Duration
	repeating bool
	action    func()
	cancelled bool
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{tasks: make(map[string]*fakeTask)}
}

func (t *fakeTask) Cancel() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.cancelled = true
	if t.s.tasks[t.key] == t {
		delete(t.s.tasks, t.key)
	}
}

func (s *fakeScheduler) schedule(key string, delay time.Duration, repeating bool, action func()) ports.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if previous, ok := s.tasks[key]; ok {
		previous.cancelled = true
	}
	t := &fakeTask{s: s, key: key, delay: delay, repeating: repeating, action: action}
	s.tasks[key] = t
	return t
}

func (s *fakeScheduler) ScheduleOnce(key string, delay time.Duration, action func()) ports.Task {
	return s.schedule(key, delay, false, action)
}

func (s *fakeScheduler) ScheduleRepeating(key string, interval time.Duration, action func()) ports.Task {
	return s.schedule(key, interval, true, action)
}

func (s *fakeScheduler) Cancel(key string) {
	s.mu.Lock()
	t, ok := s.tasks[key]
	s.mu.Unlock()
	if ok {
		t.Cancel()
	}
}

func (s *fakeScheduler) Pending(key string) (*fakeTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	return t, ok
}

// Fire runs the pending task for key and reports whether there was one.
func (s *fakeScheduler) Fire(key string) bool {
	s.mu.Lock()
	t, ok := s.tasks[key]
	if ok && !t.repeating {
		delete(s.tasks, key)
	}
	live := ok && !t.cancelled
	s.mu.Unlock()
	if !live {
		return false
	}
	t.action()
	return true
}

type recordingAnnouncer struct {
	mu     sync.Mutex
	events []ports.Event
}

func (a *recordingAnnouncer) Announce(_ context.Context, e ports.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *recordingAnnouncer) Named(name string) []ports.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []ports.Event
	for _, e := range a.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

// flakyStorage fails poll writes while failWrites is set. beforeSave, when
// set, runs at the start of every SavePoll.
type flakyStorage struct {
	ports.Storage
	mu         sync.Mutex
	failWrites bool
	beforeSave func()
}

func (f *flakyStorage) SetFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrites = v
}

func (f *flakyStorage) SavePoll(ctx context.Context, poll *domain.Poll) error {
	f.mu.Lock()
	failing, hook := f.failWrites, f.beforeSave
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if failing {
		return domain.ErrStorageUnavailable
	}
	return f.Storage.SavePoll(ctx, poll)
}

// memStorage is a minimal in-memory backend for service tests.
type memStorage struct {
	mu    sync.Mutex
	polls map[uuid.UUID]*domain.Poll
	votes map[uuid.UUID]map[string]int
}

func newMemStorage() *memStorage {
	return &memStorage{
		polls: make(map[uuid.UUID]*domain.Poll),
		votes: make(map[uuid.UUID]map[string]int),
	}
}

func (m *memStorage) SavePoll(_ context.Context, poll *domain.Poll) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.polls {
		if id != poll.ID && p.CodeKey() != "" && p.CodeKey() == poll.CodeKey() {
			return domain.ErrCodeInUse
		}
	}
	m.polls[poll.ID] = poll.Clone()
	return nil
}

func (m *memStorage) GetPoll(_ context.Context, id uuid.UUID) (*domain.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.polls[id]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	return p.Clone(), nil
}

func (m *memStorage) FindByIdentifierOrCode(ctx context.Context, ref string) (*domain.Poll, error) {
	if id, err := uuid.Parse(ref); err == nil {
		if p, err := m.GetPoll(ctx, id); err == nil {
			return p, nil
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := domain.CodeKey(ref)
	for _, p := range m.polls {
		if key != "" && p.CodeKey() == key {
			return p.Clone(), nil
		}
	}
	return nil, domain.ErrPollNotFound
}

func (m *memStorage) ListPolls(context.Context) ([]*domain.Poll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Poll, 0, len(m.polls))
	for _, p := range m.polls {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (m *memStorage) RemovePoll(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.polls, id)
	delete(m.votes, id)
	return nil
}

func (m *memStorage) SaveVote(_ context.Context, v *domain.Vote) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.votes[v.PollID] == nil {
		m.votes[v.PollID] = make(map[string]int)
	}
	if _, ok := m.votes[v.PollID][v.VoterID]; ok {
		return false, nil
	}
	m.votes[v.PollID][v.VoterID] = v.OptionIndex
	return true, nil
}

func (m *memStorage) HasVoted(ctx context.Context, pollID uuid.UUID, voterID string) (bool, error) {
	_, ok, err := m.GetVoterChoice(ctx, pollID, voterID)
	return ok, err
}

func (m *memStorage) GetVoterChoice(_ context.Context, pollID uuid.UUID, voterID string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.votes[pollID][voterID]
	return i, ok, nil
}

func (m *memStorage) GetTally(_ context.Context, pollID uuid.UUID) (domain.Tally, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tally := domain.Tally{}
	for _, i := range m.votes[pollID] {
		tally[i]++
	}
	return tally, nil
}

func (m *memStorage) Close() error { return nil }
