package slack

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vncsmyrnk/timedpolls/internal/core/domain"
)

var optionEmojis = []string{":one:", ":two:", ":three:", ":four:", ":five:", ":six:"}

func optionLabel(i int) string {
	if i >= 0 && i < len(optionEmojis) {
		return optionEmojis[i]
	}
	return fmt.Sprintf("%d.", i+1)
}

func FormatPoll(poll *domain.Poll, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*", poll.Question)
	if poll.Code != "" {
		fmt.Fprintf(&b, " (`%s`)", poll.Code)
	}
	b.WriteString("\n")
	for i, opt := range poll.Options {
		fmt.Fprintf(&b, "%s %s\n", optionLabel(i), opt)
	}
	if poll.IsOpen(now) {
		fmt.Fprintf(&b, "Closes %s. Vote with `/poll vote %s <number>`", humanize.RelTime(poll.ClosesAt, now, "ago", "from now"), pollRef(poll))
	} else {
		b.WriteString("This poll is closed.")
	}
	return b.String()
}

func FormatOutcome(poll *domain.Poll, outcome domain.Outcome, tally domain.Tally) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Poll *%s* is closed. ", poll.Question)

	switch outcome.Kind {
	case domain.OutcomeNoVotes:
		b.WriteString("No votes were cast.")
	case domain.OutcomeWinner:
		fmt.Fprintf(&b, "The winner is %s *%s* with %s.", optionLabel(outcome.OptionIndex), optionText(poll, outcome.OptionIndex), plural(outcome.Votes, "vote"))
	case domain.OutcomeTie:
		labels := make([]string, 0, len(outcome.Leaders))
		for _, i := range outcome.Leaders {
			labels = append(labels, "*"+optionText(poll, i)+"*")
		}
		fmt.Fprintf(&b, "It's a tie between %s with %s each.", strings.Join(labels, ", "), plural(outcome.Votes, "vote"))
	}

	if tally.Total() > 0 {
		b.WriteString("\n")
		b.WriteString(formatTally(poll, tally))
	}
	return b.String()
}

func formatTally(poll *domain.Poll, tally domain.Tally) string {
	indexes := make([]int, 0, len(poll.Options))
	for i := range poll.Options {
		indexes = append(indexes, i)
	}
	sort.SliceStable(indexes, func(a, b int) bool { return tally[indexes[a]] > tally[indexes[b]] })

	lines := make([]string, 0, len(indexes))
	for _, i := range indexes {
		lines = append(lines, fmt.Sprintf("%s %s: %d", optionLabel(i), poll.Options[i], tally[i]))
	}
	return strings.Join(lines, "\n")
}

func FormatSession(s *domain.CreationSession) string {
	var b strings.Builder
	if s.IsEditing() {
		b.WriteString("*Editing poll*\n")
	} else {
		b.WriteString("*New poll draft*\n")
	}
	fmt.Fprintf(&b, "Code: %s\n", orUnset(s.Code))

	question := ""
	if s.Question != nil {
		question = *s.Question
	}
	fmt.Fprintf(&b, "Question: %s\n", orUnset(question))

	duration := "default"
	if s.DurationSeconds != nil {
		duration = (time.Duration(*s.DurationSeconds) * time.Second).String()
	}
	fmt.Fprintf(&b, "Duration: %s\n", duration)

	for i, opt := range s.Options {
		fmt.Fprintf(&b, "%s %s\n", optionLabel(i), orUnset(opt))
	}
	if s.IsAwaiting() {
		fmt.Fprintf(&b, "Waiting for the %s. Send it with `/poll <text>`.", s.Awaiting.String())
	} else {
		b.WriteString("Use `/poll publish` when ready.")
	}
	return b.String()
}

func optionText(poll *domain.Poll, i int) string {
	if i >= 0 && i < len(poll.Options) {
		return poll.Options[i]
	}
	return "?"
}

func pollRef(poll *domain.Poll) string {
	if poll.Code != "" {
		return poll.Code
	}
	return poll.ID.String()
}

func orUnset(v string) string {
	if strings.TrimSpace(v) == "" {
		return "_not set_"
	}
	return v
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return humanize.Comma(int64(n)) + " " + word + "s"
}
