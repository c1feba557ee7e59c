package domain

import "sort"

// Tally maps an option index to its vote count. Options without votes are absent.
type Tally map[int]int

func (t Tally) Total() int {
	total := 0
	for _, count := range t {
		total += count
	}
	return total
}

type OutcomeKind string

const (
	OutcomeNoVotes OutcomeKind = "no_votes"
	OutcomeWinner  OutcomeKind = "winner"
	OutcomeTie     OutcomeKind = "tie"
)

type Outcome struct {
	Kind OutcomeKind `json:"kind"`
	// OptionIndex is only meaningful for OutcomeWinner.
	OptionIndex int `json:"option_index"`
	Votes       int `json:"votes"`
	// Leaders lists every option sharing the top count, in index order.
	Leaders []int `json:"leaders,omitempty"`
}

// ResolveOutcome picks the winner of a tally. Zero counts never take part.
func ResolveOutcome(tally Tally) Outcome {
	maxCount := 0
	for _, count := range tally {
		if count > maxCount {
			maxCount = count
		}
	}
	if maxCount == 0 {
		return Outcome{Kind: OutcomeNoVotes, OptionIndex: -1}
	}

	var leaders []int
	for index, count := range tally {
		if count == maxCount {
			leaders = append(leaders, index)
		}
	}
	sort.Ints(leaders)

	if len(leaders) > 1 {
		return Outcome{Kind: OutcomeTie, OptionIndex: -1, Votes: maxCount, Leaders: leaders}
	}
	return Outcome{Kind: OutcomeWinner, OptionIndex: leaders[0], Votes: maxCount, Leaders: leaders}
}
