package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
)

type task struct {
	key     string
	once    sync.Once
	done    chan struct{}
	mu      sync.Mutex
	timer   *time.Timer
	onClose func(*task)
}

func (t *task) Cancel() {
	t.once.Do(func() {
		close(t.done)
		t.mu.Lock()
		if t.timer != nil {
			t.timer.Stop()
		}
		t.mu.Unlock()
		if t.onClose != nil {
			t.onClose(t)
		}
	})
}

func (t *task) cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

type Scheduler struct {
	logger *slog.Logger

	mu    sync.Mutex
	tasks map[string]*task
}

// New returns a timer-backed scheduler. Actions run on their own goroutine.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger: logger,
		tasks:  make(map[string]*task),
	}
}

var _ ports.Scheduler = (*Scheduler)(nil)

func (s *Scheduler) ScheduleOnce(key string, delay time.Duration, action func()) ports.Task {
	t := s.register(key)

	t.mu.Lock()
	t.timer = time.AfterFunc(delay, func() {
		if t.cancelled() {
			return
		}
		s.forget(t)
		s.run(key, action)
	})
	t.mu.Unlock()

	return t
}

func (s *Scheduler) ScheduleRepeating(key string, interval time.Duration, action func()) ports.Task {
	t := s.register(key)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.done:
				return
			case <-ticker.C:
				if t.cancelled() {
					return
				}
				s.run(key, action)
			}
		}
	}()

	return t
}

func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	t, ok := s.tasks[key]
	s.mu.Unlock()
	if ok {
		t.Cancel()
	}
}

// Stop cancels every pending task.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	pending := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		pending = append(pending, t)
	}
	s.mu.Unlock()

	for _, t := range pending {
		t.Cancel()
	}
}

// Pending reports how many tasks are scheduled and not yet finished.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) register(key string) *task {
	t := &task{key: key, done: make(chan struct{}), onClose: s.forget}

	s.mu.Lock()
	previous := s.tasks[key]
	s.tasks[key] = t
	s.mu.Unlock()

	if previous != nil {
		previous.Cancel()
	}
	return t
}

func (s *Scheduler) forget(t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks[t.key] == t {
		delete(s.tasks, t.key)
	}
}

func (s *Scheduler) run(key string, action func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked", "key", key, "panic", r)
		}
	}()
	action()
}
