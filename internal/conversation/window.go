package conversation

import (
	"strings"

	"hypnosd/pkg/types"
)

// Turn delimiters understood by the engine's chat template.
const (
	TurnStart = "<start_of_turn>"
	TurnEnd   = "<end_of_turn>"
)

// DefaultHeadroom is the safety margin kept free on top of the generation reserve.
const DefaultHeadroom = 50

// tokensPerWord approximates tokenizer output from a whitespace word count.
const tokensPerWord = 1.3

// EstimateTokens returns the approximate token cost of text: words × 1.3,
// truncated toward zero.
func EstimateTokens(text string) int {
	return int(float64(len(strings.Fields(text))) * tokensPerWord)
}

// Budget describes how much of the context window the prompt may use.
type Budget struct {
	// Total is the engine context size in tokens.
	Total int
	// Generation is reserved for the reply.
	Generation int
	// Headroom is an extra safety margin. Negative means DefaultHeadroom.
	Headroom int
}

// Limit is the exclusive upper bound for the estimated prompt cost.
func (b Budget) Limit() int {
	h := b.Headroom
	if h < 0 {
		h = DefaultHeadroom
	}
	return b.Total - b.Generation - h
}

// Window is the part of a history that fits the budget.
type Window struct {
	System []types.Message
	Turns  []types.Message
	// Dropped counts the oldest non-system turns left out.
	Dropped int
	// EstimatedTokens is the cost of System plus Turns.
	EstimatedTokens int
}

// SelectWindow keeps every system message and the longest run of most recent
// turns whose cumulative cost, seeded with the system cost, stays below
// b.Limit(). The scan stops at the first turn that does not fit; older turns
// are dropped with it.
func SelectWindow(history []types.Message, b Budget) Window {
	var w Window
	turns := make([]types.Message, 0, len(history))
	for _, m := range history {
		if m.Role == types.RoleSystem {
			w.System = append(w.System, m)
			w.EstimatedTokens += EstimateTokens(m.Content)
			continue
		}
		turns = append(turns, m)
	}

	limit := b.Limit()
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		cost := EstimateTokens(turns[i].Content)
		if w.EstimatedTokens+cost >= limit {
			break
		}
		w.EstimatedTokens += cost
		start = i
	}
	w.Turns = turns[start:]
	w.Dropped = start
	return w
}

// Messages returns the selected messages in prompt order.
func (w Window) Messages() []types.Message {
	out := make([]types.Message, 0, len(w.System)+len(w.Turns))
	out = append(out, w.System...)
	return append(out, w.Turns...)
}

// Prompt renders the selected messages as delimited turns followed by an open
// model turn.
func (w Window) Prompt() string {
	var b strings.Builder
	for _, m := range w.Messages() {
		b.WriteString(TurnStart)
		b.WriteString(string(m.Role))
		b.WriteByte('\n')
		b.WriteString(strings.TrimSpace(m.Content))
		b.WriteString(TurnEnd)
		b.WriteByte('\n')
	}
	b.WriteString(TurnStart)
	b.WriteString(string(types.RoleModel))
	b.WriteByte('\n')
	return b.String()
}
