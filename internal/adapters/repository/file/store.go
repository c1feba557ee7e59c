package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
)

type snapshot struct {
	Polls []storedPoll `json:"polls"`
	Votes []storedVote `json:"votes"`
}

type storedPoll struct {
	ID        uuid.UUID         `json:"id"`
	Code      string            `json:"code,omitempty"`
	Question  string            `json:"question"`
	Options   []string          `json:"options"`
	CreatedAt int64             `json:"created_at"`
	ClosesAt  int64             `json:"closes_at"`
	Status    domain.PollStatus `json:"status"`
}

type storedVote struct {
	PollID      uuid.UUID `json:"poll_id"`
	VoterID     string    `json:"voter_id"`
	OptionIndex int       `json:"option_index"`
	VotedAt     int64     `json:"voted_at"`
}

type voteKey struct {
	pollID  uuid.UUID
	voterID string
}

type store struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	polls map[uuid.UUID]storedPoll
	codes map[string]uuid.UUID
	votes map[voteKey]storedVote
}

// Open loads the JSON snapshot at path, creating an empty store when the file
// does not exist yet. Every write rewrites the whole file.
func Open(path string, logger *slog.Logger) (ports.Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &store{
		path:   path,
		logger: logger,
		polls:  make(map[uuid.UUID]storedPoll),
		codes:  make(map[string]uuid.UUID),
		votes:  make(map[voteKey]storedVote),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *store) load() error {
	content, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read store file: %w: %w", domain.ErrStorageUnavailable, err)
	}
	if len(strings.TrimSpace(string(content))) == 0 {
		return nil
	}

	var snap snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return fmt.Errorf("failed to decode store file %s: %w", s.path, err)
	}
	for _, p := range snap.Polls {
		s.polls[p.ID] = p
		if key := domain.CodeKey(p.Code); key != "" {
			s.codes[key] = p.ID
		}
	}
	for _, v := range snap.Votes {
		if _, ok := s.polls[v.PollID]; !ok {
			continue
		}
		s.votes[voteKey{v.PollID, v.VoterID}] = v
	}
	s.logger.Debug("file store loaded", "path", s.path, "polls", len(s.polls), "votes", len(s.votes))
	return nil
}

// persist must be called with s.mu held for writing.
func (s *store) persist() error {
	snap := snapshot{
		Polls: make([]storedPoll, 0, len(s.polls)),
		Votes: make([]storedVote, 0, len(s.votes)),
	}
	for _, p := range s.polls {
		snap.Polls = append(snap.Polls, p)
	}
	for _, v := range s.votes {
		snap.Votes = append(snap.Votes, v)
	}
	sort.Slice(snap.Polls, func(i, j int) bool { return snap.Polls[i].ID.String() < snap.Polls[j].ID.String() })
	sort.Slice(snap.Votes, func(i, j int) bool {
		a, b := snap.Votes[i], snap.Votes[j]
		if a.PollID != b.PollID {
			return a.PollID.String() < b.PollID.String()
		}
		return a.VoterID < b.VoterID
	})

	content, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w: %w", domain.ErrStorageUnavailable, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w: %w", domain.ErrStorageUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write store file: %w: %w", domain.ErrStorageUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync store file: %w: %w", domain.ErrStorageUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close store file: %w: %w", domain.ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w: %w", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *store) SavePoll(ctx context.Context, poll *domain.Poll) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := poll.CodeKey()
	if key != "" {
		if owner, ok := s.codes[key]; ok && owner != poll.ID {
			return domain.ErrCodeInUse
		}
	}

	previous, existed := s.polls[poll.ID]
	next := toStored(poll)
	s.polls[poll.ID] = next
	if existed {
		if oldKey := domain.CodeKey(previous.Code); oldKey != "" && oldKey != key {
			delete(s.codes, oldKey)
		}
	}
	if key != "" {
		s.codes[key] = poll.ID
	}

	if err := s.persist(); err != nil {
		// roll back the in-memory change
		if key != "" {
			delete(s.codes, key)
		}
		if existed {
			s.polls[poll.ID] = previous
			if oldKey := domain.CodeKey(previous.Code); oldKey != "" {
				s.codes[oldKey] = poll.ID
			}
		} else {
			delete(s.polls, poll.ID)
		}
		return err
	}
	return nil
}

func (s *store) GetPoll(ctx context.Context, id uuid.UUID) (*domain.Poll, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.polls[id]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	return p.toDomain(), nil
}

func (s *store) FindByIdentifierOrCode(ctx context.Context, ref string) (*domain.Poll, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ref = strings.TrimSpace(ref)
	if id, err := uuid.Parse(ref); err == nil {
		if p, ok := s.polls[id]; ok {
			return p.toDomain(), nil
		}
	}
	if id, ok := s.codes[domain.CodeKey(ref)]; ok {
		return s.polls[id].toDomain(), nil
	}
	return nil, domain.ErrPollNotFound
}

func (s *store) ListPolls(ctx context.Context) ([]*domain.Poll, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	polls := make([]*domain.Poll, 0, len(s.polls))
	for _, p := range s.polls {
		polls = append(polls, p.toDomain())
	}
	sort.Slice(polls, func(i, j int) bool {
		if !polls[i].CreatedAt.Equal(polls[j].CreatedAt) {
			return polls[i].CreatedAt.After(polls[j].CreatedAt)
		}
		return polls[i].ID.String() < polls[j].ID.String()
	})
	return polls, nil
}

func (s *store) RemovePoll(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.polls[id]
	if !ok {
		return nil
	}

	removed := make(map[voteKey]storedVote)
	for k, v := range s.votes {
		if k.pollID == id {
			removed[k] = v
			delete(s.votes, k)
		}
	}
	delete(s.polls, id)
	key := domain.CodeKey(p.Code)
	if key != "" {
		delete(s.codes, key)
	}

	if err := s.persist(); err != nil {
		s.polls[id] = p
		if key != "" {
			s.codes[key] = id
		}
		for k, v := range removed {
			s.votes[k] = v
		}
		return err
	}
	return nil
}

func (s *store) SaveVote(ctx context.Context, vote *domain.Vote) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.polls[vote.PollID]; !ok {
		return false, domain.ErrPollNotFound
	}
	k := voteKey{vote.PollID, vote.VoterID}
	if _, ok := s.votes[k]; ok {
		return false, nil
	}
	s.votes[k] = storedVote{
		PollID:      vote.PollID,
		VoterID:     vote.VoterID,
		OptionIndex: vote.OptionIndex,
		VotedAt:     vote.VotedAt.Unix(),
	}
	if err := s.persist(); err != nil {
		delete(s.votes, k)
		return false, err
	}
	return true, nil
}

func (s *store) HasVoted(ctx context.Context, pollID uuid.UUID, voterID string) (bool, error) {
	_, found, err := s.GetVoterChoice(ctx, pollID, voterID)
	return found, err
}

func (s *store) GetVoterChoice(ctx context.Context, pollID uuid.UUID, voterID string) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.votes[voteKey{pollID, voterID}]
	if !ok {
		return 0, false, nil
	}
	return v.OptionIndex, true, nil
}

func (s *store) GetTally(ctx context.Context, pollID uuid.UUID) (domain.Tally, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tally := domain.Tally{}
	for k, v := range s.votes {
		if k.pollID == pollID {
			tally[v.OptionIndex]++
		}
	}
	return tally, nil
}

func (s *store) Close() error {
	return nil
}

func toStored(p *domain.Poll) storedPoll {
	return storedPoll{
		ID:        p.ID,
		Code:      strings.TrimSpace(p.Code),
		Question:  p.Question,
		Options:   append([]string(nil), p.Options...),
		CreatedAt: p.CreatedAt.Unix(),
		ClosesAt:  p.ClosesAt.Unix(),
		Status:    p.Status,
	}
}

func (p storedPoll) toDomain() *domain.Poll {
	return &domain.Poll{
		ID:        p.ID,
		Code:      p.Code,
		Question:  p.Question,
		Options:   append([]string(nil), p.Options...),
		CreatedAt: time.Unix(p.CreatedAt, 0).UTC(),
		ClosesAt:  time.Unix(p.ClosesAt, 0).UTC(),
		Status:    p.Status,
	}
}
