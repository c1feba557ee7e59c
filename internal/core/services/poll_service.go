package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
)

const untitledQuestion = "Untitled Poll"

type PollConfig struct {
	DefaultDuration time.Duration
	// CloseRetryInitial and CloseRetryMax bound the backoff between failed automatic closes.
	CloseRetryInitial time.Duration
	CloseRetryMax     time.Duration
	Clock             ports.Clock
	Logger            *slog.Logger
}

type closeTimer struct {
	gen  uint64
	task ports.Task
}

type pollService struct {
	repo      ports.Storage
	sessions  ports.SessionService
	scheduler ports.Scheduler
	announcer ports.Announcer
	clock     ports.Clock
	cfg       PollConfig
	logger    *slog.Logger
	locks     *keyedMutex

	mu      sync.Mutex
	stopped bool
	gen     uint64
	timers  map[uuid.UUID]*closeTimer
	retries map[uuid.UUID]backoff.BackOff
}

func NewPollService(repo ports.Storage, sessions ports.SessionService, scheduler ports.Scheduler, announcer ports.Announcer, cfg PollConfig) ports.PollService {
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = domain.DefaultDuration
	}
	if cfg.CloseRetryInitial <= 0 {
		cfg.CloseRetryInitial = 5 * time.Second
	}
	if cfg.CloseRetryMax <= 0 {
		cfg.CloseRetryMax = 5 * time.Minute
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock
	}
	return &pollService{
		repo:      repo,
		sessions:  sessions,
		scheduler: scheduler,
		announcer: resolveAnnouncer(announcer),
		clock:     clock,
		cfg:       cfg,
		logger:    resolveLogger(cfg.Logger),
		locks:     newKeyedMutex(),
		timers:    make(map[uuid.UUID]*closeTimer),
		retries:   make(map[uuid.UUID]backoff.BackOff),
	}
}

func (s *pollService) Publish(ctx context.Context, authorID string) (*domain.Poll, error) {
	session, err := s.sessions.Get(authorID)
	if err != nil {
		return nil, err
	}

	options := session.DefinedOptions()
	if len(options) < domain.MinOptions {
		return nil, domain.ErrInsufficientOptions
	}
	code := strings.TrimSpace(session.Code)
	if code == "" {
		return nil, domain.ErrMissingCode
	}

	duration := s.cfg.DefaultDuration
	if session.DurationSeconds != nil {
		duration = time.Duration(*session.DurationSeconds) * time.Second
	}
	now := s.clock.Now().Truncate(time.Second)

	var poll *domain.Poll
	if session.IsEditing() {
		poll, err = s.republish(ctx, session, code, options, now, duration)
	} else {
		poll, err = s.create(ctx, session, code, options, now, duration)
	}
	if err != nil {
		return nil, err
	}

	s.sessions.End(authorID)

	s.logger.Info("poll published",
		"poll_id", poll.ID,
		"code", poll.Code,
		"author_id", authorID,
		"edited", session.IsEditing(),
		"closes_at", poll.ClosesAt,
	)
	s.announcer.Announce(ctx, ports.PollPublished{Poll: poll.Clone(), Edited: session.IsEditing()})
	return poll, nil
}

func (s *pollService) create(ctx context.Context, session *domain.CreationSession, code string, options []string, now time.Time, duration time.Duration) (*domain.Poll, error) {
	if _, err := s.repo.FindByIdentifierOrCode(ctx, code); err == nil {
		return nil, domain.ErrCodeInUse
	} else if !errors.Is(err, domain.ErrPollNotFound) {
		return nil, err
	}

	question := untitledQuestion
	if session.Question != nil {
		question = *session.Question
	}

	poll := &domain.Poll{
		ID:        uuid.New(),
		Code:      code,
		Question:  question,
		Options:   options,
		CreatedAt: now,
		ClosesAt:  now.Add(duration),
		Status:    domain.PollStatusOpen,
	}
	if err := s.repo.SavePoll(ctx, poll); err != nil {
		return nil, err
	}
	s.scheduleClose(poll.ID, poll.ClosesAt.Sub(s.clock.Now()))
	return poll, nil
}

func (s *pollService) republish(ctx context.Context, session *domain.CreationSession, code string, options []string, now time.Time, duration time.Duration) (*domain.Poll, error) {
	id := *session.EditingPollID
	unlock := s.locks.Lock(id.String())
	defer unlock()

	current, err := s.repo.GetPoll(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.IsClosed() {
		return nil, domain.ErrCannotEditClosed
	}
	if other, err := s.repo.FindByIdentifierOrCode(ctx, code); err == nil && other.ID != id {
		return nil, domain.ErrCodeInUse
	} else if err != nil && !errors.Is(err, domain.ErrPollNotFound) {
		return nil, err
	}

	poll := current.Clone()
	if session.Question != nil {
		poll.Question = *session.Question
	}
	poll.Options = options
	poll.Code = code
	poll.ClosesAt = now.Add(duration)
	poll.Status = domain.PollStatusOpen

	if err := s.repo.SavePoll(ctx, poll); err != nil {
		return nil, err
	}
	s.scheduleClose(poll.ID, poll.ClosesAt.Sub(s.clock.Now()))
	return poll, nil
}

func (s *pollService) BeginEdit(ctx context.Context, authorID, ref string) (*domain.CreationSession, error) {
	poll, err := s.repo.FindByIdentifierOrCode(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.sessions.StartEditing(authorID, poll)
}

// Close closes a poll on request. Closing a closed poll reports its result
// again with AlreadyClosed set and announces nothing.
func (s *pollService) Close(ctx context.Context, ref string) (ports.CloseResult, error) {
	poll, err := s.repo.FindByIdentifierOrCode(ctx, ref)
	if err != nil {
		return ports.CloseResult{}, err
	}
	return s.closeByID(ctx, poll.ID, true)
}

func (s *pollService) closeByID(ctx context.Context, id uuid.UUID, manual bool) (ports.CloseResult, error) {
	unlock := s.locks.Lock(id.String())
	defer unlock()

	poll, err := s.repo.GetPoll(ctx, id)
	if err != nil {
		return ports.CloseResult{}, err
	}

	if poll.IsClosed() {
		s.cancelTimer(id)
		tally, err := s.repo.GetTally(ctx, id)
		if err != nil {
			return ports.CloseResult{}, err
		}
		return ports.CloseResult{Poll: poll, Tally: tally, Outcome: domain.ResolveOutcome(tally), AlreadyClosed: true}, nil
	}

	return s.closeLocked(ctx, poll, manual)
}

// closeLocked must be called with the poll lock held. The tally is read
// before the status flips so a failed read leaves the poll open.
func (s *pollService) closeLocked(ctx context.Context, poll *domain.Poll, manual bool) (ports.CloseResult, error) {
	tally, err := s.repo.GetTally(ctx, poll.ID)
	if err != nil {
		return ports.CloseResult{}, err
	}

	closed := poll.Clone()
	closed.Status = domain.PollStatusClosed
	if err := s.repo.SavePoll(ctx, closed); err != nil {
		return ports.CloseResult{}, err
	}
	s.cancelTimer(poll.ID)

	outcome := domain.ResolveOutcome(tally)
	s.logger.Info("poll closed",
		"poll_id", closed.ID,
		"code", closed.Code,
		"manual", manual,
		"outcome", outcome.Kind,
		"votes", tally.Total(),
	)
	s.announcer.Announce(ctx, ports.PollClosed{Poll: closed.Clone(), Outcome: outcome, Tally: tally, Manual: manual})

	return ports.CloseResult{Poll: closed, Tally: tally, Outcome: outcome}, nil
}

func (s *pollService) Remove(ctx context.Context, ref string) error {
	poll, err := s.repo.FindByIdentifierOrCode(ctx, ref)
	if errors.Is(err, domain.ErrPollNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(poll.ID.String())
	defer unlock()

	s.cancelTimer(poll.ID)
	if err := s.repo.RemovePoll(ctx, poll.ID); err != nil {
		return err
	}
	s.logger.Info("poll removed", "poll_id", poll.ID, "code", poll.Code)
	return nil
}

func (s *pollService) Get(ctx context.Context, ref string) (*domain.Poll, error) {
	return s.repo.FindByIdentifierOrCode(ctx, ref)
}

func (s *pollService) List(ctx context.Context) ([]*domain.Poll, error) {
	return s.repo.ListPolls(ctx)
}

func (s *pollService) Results(ctx context.Context, ref string) (ports.PollResults, error) {
	poll, err := s.repo.FindByIdentifierOrCode(ctx, ref)
	if err != nil {
		return ports.PollResults{}, err
	}
	tally, err := s.repo.GetTally(ctx, poll.ID)
	if err != nil {
		return ports.PollResults{}, err
	}
	return ports.PollResults{Poll: poll, Tally: tally, Outcome: domain.ResolveOutcome(tally)}, nil
}

// Resume schedules every open poll after a restart and closes the overdue ones.
func (s *pollService) Resume(ctx context.Context) error {
	polls, err := s.repo.ListPolls(ctx)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	resumed := 0
	for _, poll := range polls {
		if poll.IsClosed() {
			continue
		}
		s.scheduleClose(poll.ID, poll.ClosesAt.Sub(now))
		resumed++
	}
	s.logger.Info("open polls resumed", "count", resumed)
	return nil
}

// Shutdown cancels every pending close. No timer is scheduled afterwards.
func (s *pollService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, timer := range s.timers {
		if timer.task != nil {
			timer.task.Cancel()
		}
		delete(s.timers, id)
	}
	for id := range s.retries {
		delete(s.retries, id)
	}
}
