package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
)

type SessionConfig struct {
	// RepromptInterval of zero disables idle re-prompting.
	RepromptInterval     time.Duration
	RepromptOnlyWhenIdle bool
	Clock                ports.Clock
	Logger               *slog.Logger
}

type sessionService struct {
	scheduler ports.Scheduler
	announcer ports.Announcer
	clock     ports.Clock
	cfg       SessionConfig
	logger    *slog.Logger

	mu        sync.Mutex
	sessions  map[string]*domain.CreationSession
	reprompts map[string]ports.Task
	drafts    map[string]domain.Draft
}

func NewSessionService(scheduler ports.Scheduler, announcer ports.Announcer, cfg SessionConfig) ports.SessionService {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock
	}
	return &sessionService{
		scheduler: scheduler,
		announcer: resolveAnnouncer(announcer),
		clock:     clock,
		cfg:       cfg,
		logger:    resolveLogger(cfg.Logger),
		sessions:  make(map[string]*domain.CreationSession),
		reprompts: make(map[string]ports.Task),
		drafts:    make(map[string]domain.Draft),
	}
}

func (s *sessionService) Start(authorID string) (*domain.CreationSession, error) {
	return s.open(domain.NewCreationSession(authorID, s.clock.Now()))
}

func (s *sessionService) StartEditing(authorID string, poll *domain.Poll) (*domain.CreationSession, error) {
	return s.open(domain.NewEditingSession(authorID, poll, s.clock.Now()))
}

func (s *sessionService) open(session *domain.CreationSession) (*domain.CreationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.AuthorID]; exists {
		return nil, domain.ErrSessionAlreadyActive
	}
	s.sessions[session.AuthorID] = session
	s.startReprompt(session.AuthorID)

	s.logger.Info("creation session started",
		"author_id", session.AuthorID,
		"editing", session.IsEditing(),
	)
	return session.Clone(), nil
}

func (s *sessionService) Get(authorID string) (*domain.CreationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[authorID]
	if !ok {
		return nil, domain.ErrNoActiveSession
	}
	return session.Clone(), nil
}

func (s *sessionService) SetField(authorID string, field domain.Field, value string) (*domain.CreationSession, error) {
	return s.mutate(authorID, func(session *domain.CreationSession) error {
		return session.Set(field, value)
	})
}

func (s *sessionService) Await(authorID string, field domain.Field) (*domain.CreationSession, error) {
	return s.mutate(authorID, func(session *domain.CreationSession) error {
		return session.Await(field)
	})
}

func (s *sessionService) mutate(authorID string, fn func(*domain.CreationSession) error) (*domain.CreationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[authorID]
	if !ok {
		return nil, domain.ErrNoActiveSession
	}
	if err := fn(session); err != nil {
		return session.Clone(), err
	}
	return session.Clone(), nil
}

func (s *sessionService) FillAwaited(authorID, raw string) (*domain.CreationSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[authorID]
	if !ok {
		return nil, false, nil
	}
	field := session.Awaiting
	filled, err := session.Fill(raw)
	if err != nil {
		s.logger.Debug("awaited input rejected",
			"author_id", authorID,
			"field", field.String(),
			"error", err,
		)
	}
	return session.Clone(), filled, err
}

func (s *sessionService) End(authorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, authorID)
	if task, ok := s.reprompts[authorID]; ok {
		task.Cancel()
		delete(s.reprompts, authorID)
	}
}

func (s *sessionService) SaveDraft(authorID string) (domain.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[authorID]
	if !ok {
		return domain.Draft{}, domain.ErrNoActiveSession
	}
	if strings.TrimSpace(session.Code) == "" {
		return domain.Draft{}, domain.ErrMissingCode
	}

	draft := domain.NewDraft(session, s.clock.Now())
	s.drafts[domain.CodeKey(session.Code)] = draft
	return draft, nil
}

func (s *sessionService) LoadDraft(authorID, code string) (*domain.CreationSession, error) {
	s.mu.Lock()
	draft, ok := s.drafts[domain.CodeKey(code)]
	s.mu.Unlock()
	if !ok {
		return nil, domain.ErrDraftNotFound
	}
	return s.open(draft.Session(authorID, s.clock.Now()))
}

func (s *sessionService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for authorID, task := range s.reprompts {
		task.Cancel()
		delete(s.reprompts, authorID)
	}
}

// startReprompt must be called with s.mu held.
func (s *sessionService) startReprompt(authorID string) {
	if s.cfg.RepromptInterval <= 0 || s.scheduler == nil {
		return
	}
	if previous, ok := s.reprompts[authorID]; ok {
		previous.Cancel()
	}
	s.reprompts[authorID] = s.scheduler.ScheduleRepeating(repromptKey(authorID), s.cfg.RepromptInterval, func() {
		s.reprompt(authorID)
	})
}

func (s *sessionService) reprompt(authorID string) {
	s.mu.Lock()
	session, ok := s.sessions[authorID]
	if !ok {
		if task, exists := s.reprompts[authorID]; exists {
			task.Cancel()
			delete(s.reprompts, authorID)
		}
		s.mu.Unlock()
		return
	}
	if s.cfg.RepromptOnlyWhenIdle && session.IsAwaiting() {
		s.mu.Unlock()
		return
	}
	snapshot := session.Clone()
	s.mu.Unlock()

	s.announcer.Announce(context.Background(), ports.SessionIdle{Session: snapshot})
}

func repromptKey(authorID string) string {
	return "session-reprompt:" + authorID
}
