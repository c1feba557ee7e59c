package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type PollStatus string

const (
	PollStatusOpen   PollStatus = "OPEN"
	PollStatusClosed PollStatus = "CLOSED"
)

const (
	MinOptions = 2
	MaxOptions = 6
)

// DefaultDuration is used when a session is published without a duration.
const DefaultDuration = time.Hour

type Poll struct {
	ID        uuid.UUID  `json:"id"`
	Code      string     `json:"code,omitempty"`
	Question  string     `json:"question"`
	Options   []string   `json:"options"`
	CreatedAt time.Time  `json:"created_at"`
	ClosesAt  time.Time  `json:"closes_at"`
	Status    PollStatus `json:"status"`
}

// IsOpen reports whether the poll still accepts votes at the given instant.
func (p *Poll) IsOpen(now time.Time) bool {
	return p.Status == PollStatusOpen && now.Before(p.ClosesAt)
}

func (p *Poll) IsClosed() bool {
	return p.Status == PollStatusClosed
}

// CodeKey is the lookup key for the poll's code. Empty when the poll has no code.
func (p *Poll) CodeKey() string {
	return CodeKey(p.Code)
}

func (p *Poll) Clone() *Poll {
	c := *p
	c.Options = append([]string(nil), p.Options...)
	return &c
}

// CodeKey normalizes a human code for case-insensitive comparison.
func CodeKey(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
