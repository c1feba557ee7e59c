package announcer

import (
	"context"
	"log/slog"

	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
)

type logAnnouncer struct {
	logger *slog.Logger
}

// NewLogAnnouncer writes every event as a structured log line.
func NewLogAnnouncer(logger *slog.Logger) ports.Announcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &logAnnouncer{logger: logger}
}

func (a *logAnnouncer) Announce(ctx context.Context, event ports.Event) {
	attrs := []any{"event", event.EventName()}

	switch e := event.(type) {
	case ports.PollPublished:
		attrs = append(attrs, "poll_id", e.Poll.ID, "code", e.Poll.Code, "closes_at", e.Poll.ClosesAt, "edited", e.Edited)
	case ports.PollClosed:
		attrs = append(attrs, "poll_id", e.Poll.ID, "code", e.Poll.Code, "outcome", e.Outcome.Kind, "votes", e.Tally.Total(), "manual", e.Manual)
		if e.Outcome.Kind == domain.OutcomeWinner && e.Outcome.OptionIndex < len(e.Poll.Options) {
			attrs = append(attrs, "winner", e.Poll.Options[e.Outcome.OptionIndex])
		}
	case ports.VoteAccepted:
		attrs = append(attrs, "poll_id", e.Poll.ID, "voter_id", e.VoterID, "option_index", e.OptionIndex)
	case ports.SessionIdle:
		attrs = append(attrs, "author_id", e.Session.AuthorID, "awaiting", e.Session.Awaiting.String())
	case ports.CloseFailed:
		a.logger.WarnContext(ctx, "announcement", append(attrs, "poll_id", e.PollID, "error", e.Err)...)
		return
	}

	a.logger.InfoContext(ctx, "announcement", attrs...)
}
