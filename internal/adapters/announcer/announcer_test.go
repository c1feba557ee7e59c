package announcer

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
)

type recorder struct {
	events []ports.Event
}

func (r *recorder) Announce(_ context.Context, e ports.Event) {
	r.events = append(r.events, e)
}

func TestFanoutSkipsNilAndKeepsOrder(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	f := Fanout(a, nil, b)

	f.Announce(context.Background(), ports.CloseFailed{PollID: uuid.New()})

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestLogAnnouncerWritesWinner(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	poll := &domain.Poll{
		ID:       uuid.New(),
		Code:     "lunch",
		Options:  []string{"Pizza", "Sushi"},
		ClosesAt: time.Now(),
		Status:   domain.PollStatusClosed,
	}
	tally := domain.Tally{1: 2}

	NewLogAnnouncer(logger).Announce(context.Background(), ports.PollClosed{
		Poll:    poll,
		Tally:   tally,
		Outcome: domain.ResolveOutcome(tally),
	})

	out := buf.String()
	assert.Contains(t, out, `"event":"poll_closed"`)
	assert.Contains(t, out, `"winner":"Sushi"`)
	assert.Contains(t, out, `"votes":2`)
}
