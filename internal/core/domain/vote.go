package domain

import (
	"time"

	"github.com/google/uuid"
)

type Vote struct {
	PollID      uuid.UUID `json:"poll_id"`
	VoterID     string    `json:"voter_id"`
	OptionIndex int       `json:"option_index"`
	VotedAt     time.Time `json:"voted_at"`
}
