// Package prompt serializes pinned context, recent memory and the new user
// message into the single text payload sent to the assistant.
package prompt

import (
	"strings"

	"github.com/ent0n29/mentra/internal/memory"
)

// HistoryTurns is how many of the retained turns are replayed into a prompt.
const HistoryTurns = 4

const (
	pinnedHeader  = "CONTEXT (pinned):"
	historyHeader = "CHAT HISTORY:"
	assistantCue  = "Assistant:"
)

// Compose builds the request payload. It does not mutate turns.
func Compose(pinned string, turns []memory.Turn, msg string) string {
	lines := make([]string, 0, 8)
	if pinned != "" {
		lines = append(lines, pinnedHeader, pinned, "")
	}
	if len(turns) > 0 {
		lines = append(lines, historyHeader)
		recent := turns
		if len(recent) > HistoryTurns {
			recent = recent[len(recent)-HistoryTurns:]
		}
		for _, t := range recent {
			lines = append(lines, t.Role.Label()+": "+t.Content)
		}
		lines = append(lines, "")
	}
	lines = append(lines, memory.RoleUser.Label()+": "+msg, assistantCue)
	return strings.Join(lines, "\n")
}
