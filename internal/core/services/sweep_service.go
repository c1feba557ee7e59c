package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
)

type sweepService struct {
	pollRepo ports.PollRepository
	polls    ports.PollService
	clock    ports.Clock
	logger   *slog.Logger
}

// NewSweepService builds the one-shot job that closes polls whose deadline
// passed while no server process was running.
func NewSweepService(pollRepo ports.PollRepository, polls ports.PollService, clock ports.Clock, logger *slog.Logger) ports.SweepService {
	if clock == nil {
		clock = SystemClock
	}
	return &sweepService{
		pollRepo: pollRepo,
		polls:    polls,
		clock:    clock,
		logger:   resolveLogger(logger),
	}
}

func (s *sweepService) CloseExpired(ctx context.Context) (int, error) {
	polls, err := s.pollRepo.ListPolls(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch all polls: %w", err)
	}

	now := s.clock.Now()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		closed  int
		errChan = make(chan error, len(polls))
	)

	for _, poll := range polls {
		if poll.IsClosed() || now.Before(poll.ClosesAt) {
			continue
		}
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			result, err := s.polls.Expire(ctx, id)
			if err != nil {
				errChan <- fmt.Errorf("failed to close poll %s: %w", id, err)
				return
			}
			if result.Poll != nil && !result.AlreadyClosed {
				mu.Lock()
				closed++
				mu.Unlock()
			}
		}(poll.ID)
	}

	wg.Wait()
	close(errChan)

	for err := range errChan {
		if err != nil {
			return closed, err
		}
	}

	s.logger.Info("expired polls closed", "count", closed)
	return closed, nil
}
