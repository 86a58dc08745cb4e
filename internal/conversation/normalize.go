// Package conversation turns a client-held history into an engine prompt.
//
// Normalize enforces the single leading system message. SelectWindow trims the
// normalized history to the model context budget and renders the turn-delimited
// prompt the Gemma-style engine expects.
package conversation

import "hypnosd/pkg/types"

// SystemMessage builds the persona message.
func SystemMessage(persona string) types.Message {
	return types.Message{Role: types.RoleSystem, Content: persona}
}

// Normalize returns a new history with every system message removed, the
// persona inserted first and userMessage appended last. The input is not modified.
func Normalize(history []types.Message, persona, userMessage string) []types.Message {
	out := make([]types.Message, 0, len(history)+2)
	out = append(out, SystemMessage(persona))
	for _, m := range history {
		if m.Role == types.RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return append(out, types.Message{Role: types.RoleUser, Content: userMessage})
}

// CountSystem returns how many system messages h holds.
func CountSystem(h []types.Message) int {
	n := 0
	for _, m := range h {
		if m.Role == types.RoleSystem {
			n++
		}
	}
	return n
}
