package slack

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/slack-go/slack"

	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
)

const webhookTimeout = 10 * time.Second

// WebhookAnnouncer posts public poll events to an incoming webhook. Posts run
// in the background so timers and request handlers never wait on Slack.
type WebhookAnnouncer struct {
	url    string
	clock  func() time.Time
	logger *slog.Logger
	wg     sync.WaitGroup
}

var _ ports.Announcer = (*WebhookAnnouncer)(nil)

func NewWebhookAnnouncer(url string, logger *slog.Logger) *WebhookAnnouncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookAnnouncer{url: url, clock: time.Now, logger: logger}
}

func (a *WebhookAnnouncer) Announce(_ context.Context, event ports.Event) {
	msg, ok := a.message(event)
	if !ok {
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
		defer cancel()
		if err := slack.PostWebhookContext(ctx, a.url, msg); err != nil {
			a.logger.Error("failed to post slack webhook", "event", event.EventName(), "error", err)
		}
	}()
}

// Wait blocks until pending posts are done.
func (a *WebhookAnnouncer) Wait() {
	a.wg.Wait()
}

func (a *WebhookAnnouncer) message(event ports.Event) (*slack.WebhookMessage, bool) {
	switch e := event.(type) {
	case ports.PollPublished:
		prefix := "New poll: "
		if e.Edited {
			prefix = "Poll updated: "
		}
		return &slack.WebhookMessage{Text: prefix + FormatPoll(e.Poll, a.clock())}, true
	case ports.PollClosed:
		return &slack.WebhookMessage{Text: FormatOutcome(e.Poll, e.Outcome, e.Tally)}, true
	case ports.CloseFailed:
		return &slack.WebhookMessage{Text: fmt.Sprintf(":warning: Closing poll %s failed, retrying shortly.", e.PollID)}, true
	default:
		return nil, false
	}
}
