package slack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/goccy/go-json"
	"github.com/mattn/go-shellwords"
	"github.com/slack-go/slack"

	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
	"github.com/vncsmyrnk/timedpolls/internal/core/ports"
)

const helpMessage = "Create a poll with `/poll create [question]`, then fill it in:\n" +
	"- `/poll code <code>`, `/poll question <text>`, `/poll duration <1d2h30m>`\n" +
	"- `/poll option <1-6> <text>`\n" +
	"Leave the value out to send it as your next `/poll` message.\n" +
	"Then `/poll publish`, or `/poll cancel`. Drafts: `/poll save`, `/poll load <code>`.\n" +
	"Other commands: `/poll vote <poll> <n>`, `/poll results <poll>`, `/poll close <poll>`, " +
	"`/poll edit <poll>`, `/poll remove <poll>`, `/poll list`."

type CommandHandler struct {
	polls         ports.PollService
	sessions      ports.SessionService
	signingSecret string
	logger        *slog.Logger
	now           func() time.Time
}

// NewCommandHandler serves the /poll slash command. An empty signing secret
// disables request verification.
func NewCommandHandler(polls ports.PollService, sessions ports.SessionService, signingSecret string, logger *slog.Logger) *CommandHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandHandler{
		polls:         polls,
		sessions:      sessions,
		signingSecret: signingSecret,
		logger:        logger,
		now:           time.Now,
	}
}

func (h *CommandHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cmd, err := h.parse(r)
	if err != nil {
		h.logger.Warn("rejected slash command", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	writeJSON(w, h.Dispatch(r.Context(), cmd.UserID, cmd.Text))
}

func (h *CommandHandler) parse(r *http.Request) (slack.SlashCommand, error) {
	if h.signingSecret == "" {
		return slack.SlashCommandParse(r)
	}

	verifier, err := slack.NewSecretsVerifier(r.Header, h.signingSecret)
	if err != nil {
		return slack.SlashCommand{}, err
	}
	r.Body = io.NopCloser(io.TeeReader(r.Body, &verifier))

	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		return slack.SlashCommand{}, err
	}
	if err := verifier.Ensure(); err != nil {
		return slack.SlashCommand{}, err
	}
	return cmd, nil
}

// Dispatch runs one /poll invocation for userID and returns the reply. Only
// the subcommand and reference arguments are split off; free text such as a
// question or an option label is kept verbatim.
func (h *CommandHandler) Dispatch(ctx context.Context, userID, text string) slack.Msg {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return ephemeral(helpMessage)
	}

	first, tail := cutWord(raw)
	sub := strings.ToLower(first)
	rest := splitArgs(tail)
	switch sub {
	case "help":
		return ephemeral(helpMessage)
	case "create":
		session, err := h.sessions.Start(userID)
		if err != nil {
			return h.failure(err)
		}
		if question := valueOf(tail); question != "" {
			session, err = h.sessions.SetField(userID, domain.Field{Kind: domain.FieldQuestion}, question)
			if err != nil {
				return h.failure(err)
			}
		}
		return ephemeral(FormatSession(session))
	case "edit":
		if len(rest) != 1 {
			return ephemeral("Usage: `/poll edit <poll>`")
		}
		session, err := h.polls.BeginEdit(ctx, userID, rest[0])
		if err != nil {
			return h.failure(err)
		}
		return ephemeral(FormatSession(session))
	case "code", "question", "duration":
		field, _ := domain.ParseField(sub, 0)
		return h.setOrAwait(userID, field, valueOf(tail))
	case "option":
		number, value := cutWord(tail)
		if number == "" {
			return ephemeral("Usage: `/poll option <1-6> [text]`")
		}
		n, err := strconv.Atoi(number)
		if err != nil {
			return ephemeral(fmt.Sprintf("%q is not an option number", number))
		}
		field, err := domain.ParseField(string(domain.FieldOption), n-1)
		if err != nil {
			return h.failure(err)
		}
		return h.setOrAwait(userID, field, valueOf(value))
	case "publish":
		poll, err := h.polls.Publish(ctx, userID)
		if err != nil {
			return h.failure(err)
		}
		return inChannel(FormatPoll(poll, h.now()))
	case "cancel":
		h.sessions.End(userID)
		return ephemeral("Draft discarded.")
	case "save":
		draft, err := h.sessions.SaveDraft(userID)
		if err != nil {
			return h.failure(err)
		}
		return ephemeral(fmt.Sprintf("Draft saved. Load it later with `/poll load %s`.", draft.Code))
	case "load":
		if len(rest) != 1 {
			return ephemeral("Usage: `/poll load <code>`")
		}
		session, err := h.sessions.LoadDraft(userID, rest[0])
		if err != nil {
			return h.failure(err)
		}
		return ephemeral(FormatSession(session))
	case "close":
		if len(rest) != 1 {
			return ephemeral("Usage: `/poll close <poll>`")
		}
		result, err := h.polls.Close(ctx, rest[0])
		if err != nil {
			return h.failure(err)
		}
		if result.AlreadyClosed {
			return ephemeral(FormatOutcome(result.Poll, result.Outcome, result.Tally))
		}
		return inChannel(FormatOutcome(result.Poll, result.Outcome, result.Tally))
	case "remove":
		if len(rest) != 1 {
			return ephemeral("Usage: `/poll remove <poll>`")
		}
		if err := h.polls.Remove(ctx, rest[0]); err != nil {
			return h.failure(err)
		}
		return ephemeral("Poll removed.")
	case "vote":
		if len(rest) != 2 {
			return ephemeral("Usage: `/poll vote <poll> <number>`")
		}
		n, err := strconv.Atoi(rest[1])
		if err != nil {
			return ephemeral(fmt.Sprintf("%q is not an option number", rest[1]))
		}
		if _, err := h.polls.Vote(ctx, ports.VoteInput{PollRef: rest[0], VoterID: userID, OptionIndex: n - 1}); err != nil {
			return h.failure(err)
		}
		return ephemeral("Your vote was recorded.")
	case "results":
		if len(rest) != 1 {
			return ephemeral("Usage: `/poll results <poll>`")
		}
		results, err := h.polls.Results(ctx, rest[0])
		if err != nil {
			return h.failure(err)
		}
		return ephemeral(FormatPoll(results.Poll, h.now()) + "\n" + formatTally(results.Poll, results.Tally))
	case "list":
		polls, err := h.polls.List(ctx)
		if err != nil {
			return h.failure(err)
		}
		return ephemeral(formatList(polls, h.now()))
	default:
		return h.fillOrHelp(userID, raw)
	}
}

func (h *CommandHandler) setOrAwait(userID string, field domain.Field, value string) slack.Msg {
	var (
		session *domain.CreationSession
		err     error
	)
	if value == "" {
		session, err = h.sessions.Await(userID, field)
	} else {
		session, err = h.sessions.SetField(userID, field, value)
	}
	if err != nil {
		return h.failure(err)
	}
	return ephemeral(FormatSession(session))
}

// cutWord splits s after its first whitespace-separated word.
func cutWord(s string) (word, rest string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		return s[:i], strings.TrimSpace(s[i:])
	}
	return s, ""
}

// splitArgs splits reference arguments, honouring quotes when they balance.
func splitArgs(s string) []string {
	if args, err := shellwords.Parse(s); err == nil {
		return args
	}
	return strings.Fields(s)
}

// valueOf returns free text as typed, dropping one pair of surrounding quotes.
func valueOf(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '"' && s[0] != '\'') {
		return s
	}
	if args, err := shellwords.Parse(s); err == nil && len(args) == 1 {
		return args[0]
	}
	return s
}

func (h *CommandHandler) fillOrHelp(userID, raw string) slack.Msg {
	if raw == "" {
		return ephemeral(helpMessage)
	}
	session, filled, err := h.sessions.FillAwaited(userID, raw)
	if err != nil {
		return h.failure(err)
	}
	if !filled {
		return ephemeral("Sorry, I don't know that command.\n" + helpMessage)
	}
	return ephemeral(FormatSession(session))
}

func (h *CommandHandler) failure(err error) slack.Msg {
	if errors.Is(err, domain.ErrStorageUnavailable) {
		h.logger.Error("slash command failed", "error", err)
		return ephemeral("Sorry, polls are unavailable right now. Try again in a moment.")
	}
	return ephemeral("Sorry, " + userMessage(err))
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionAlreadyActive):
		return "you already have a draft in progress. Publish it or `/poll cancel` first."
	case errors.Is(err, domain.ErrNoActiveSession):
		return "you have no draft in progress. Start one with `/poll create`."
	case errors.Is(err, domain.ErrInvalidDurationFormat):
		return "that duration is not valid. Use something like `1d2h30m` or `45m`."
	default:
		return err.Error() + "."
	}
}

func formatList(polls []*domain.Poll, now time.Time) string {
	if len(polls) == 0 {
		return "There are no polls yet."
	}
	lines := make([]string, 0, len(polls))
	for _, p := range polls {
		state := "closed"
		if p.IsOpen(now) {
			state = "open"
		}
		lines = append(lines, fmt.Sprintf("`%s` %s (%s)", pollRef(p), p.Question, state))
	}
	return strings.Join(lines, "\n")
}

func ephemeral(text string) slack.Msg {
	return slack.Msg{ResponseType: "ephemeral", Text: text}
}

func inChannel(text string) slack.Msg {
	return slack.Msg{ResponseType: "in_channel", Text: text}
}

func writeJSON(w http.ResponseWriter, d any) {
	res, err := json.Marshal(d)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(res)
}
