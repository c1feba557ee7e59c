package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
)

func closeKey(id uuid.UUID) string {
	return "poll-close:" + id.String()
}

// scheduleClose replaces any pending close for id. A non-positive delay fires
// as soon as the scheduler runs it.
func (s *pollService) scheduleClose(id uuid.UUID, delay time.Duration) {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scheduleLocked(id, delay)
}

// scheduleLocked must be called with s.mu held.
func (s *pollService) scheduleLocked(id uuid.UUID, delay time.Duration) {
	if s.stopped {
		return
	}
	if previous, ok := s.timers[id]; ok && previous.task != nil {
		previous.task.Cancel()
	}
	s.gen++
	timer := &closeTimer{gen: s.gen}
	s.timers[id] = timer

	gen := timer.gen
	timer.task = s.scheduler.ScheduleOnce(closeKey(id), delay, func() {
		s.autoClose(id, gen)
	})
}

func (s *pollService) cancelTimer(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[id]; ok {
		if timer.task != nil {
			timer.task.Cancel()
		}
		delete(s.timers, id)
	}
	delete(s.retries, id)
}

func (s *pollService) isCurrent(id uuid.UUID, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[id]
	return ok && timer.gen == gen
}

func (s *pollService) autoClose(id uuid.UUID, gen uint64) {
	if !s.isCurrent(id, gen) {
		s.logger.Debug("stale close timer ignored", "poll_id", id)
		return
	}

	ctx := context.Background()
	if _, err := s.expire(ctx, id, gen); err != nil {
		s.retryClose(ctx, id, err)
	}
}

func (s *pollService) Expire(ctx context.Context, id uuid.UUID) (ports.CloseResult, error) {
	return s.expire(ctx, id, 0)
}

// expire closes id unless it was removed, closed, or republished meanwhile.
// A gen of zero skips the timer generation check.
func (s *pollService) expire(ctx context.Context, id uuid.UUID, gen uint64) (ports.CloseResult, error) {
	unlock := s.locks.Lock(id.String())
	defer unlock()

	if gen != 0 && !s.isCurrent(id, gen) {
		return ports.CloseResult{}, nil
	}

	poll, err := s.repo.GetPoll(ctx, id)
	if errors.Is(err, domain.ErrPollNotFound) {
		s.cancelTimer(id)
		return ports.CloseResult{}, nil
	}
	if err != nil {
		return ports.CloseResult{}, err
	}
	if poll.IsClosed() {
		s.cancelTimer(id)
		return ports.CloseResult{Poll: poll, AlreadyClosed: true}, nil
	}

	return s.closeLocked(ctx, poll, false)
}

func (s *pollService) retryClose(ctx context.Context, id uuid.UUID, cause error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.logger.Warn("automatic close failed after shutdown", "poll_id", id, "error", cause)
		return
	}
	b, ok := s.retries[id]
	if !ok {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = s.cfg.CloseRetryInitial
		eb.MaxInterval = s.cfg.CloseRetryMax
		eb.MaxElapsedTime = 0
		eb.Reset()
		b = eb
	}
	delay := b.NextBackOff()
	s.scheduleLocked(id, delay)
	s.retries[id] = b
	s.mu.Unlock()

	s.logger.Warn("automatic close failed, retrying",
		"poll_id", id,
		"retry_in", delay,
		"error", cause,
	)
	s.announcer.Announce(ctx, ports.CloseFailed{PollID: id, Err: cause})
}
