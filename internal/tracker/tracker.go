// Package tracker advances a per-day task index on short confirmation replies
// and recognises assistant replies that declare the day finished.
package tracker

import (
	"regexp"
	"strings"
)

// Transition is the outcome of observing one successful exchange.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionAdvanced
	TransitionCompleted
)

func (t Transition) String() string {
	switch t {
	case TransitionAdvanced:
		return "advanced"
	case TransitionCompleted:
		return "completed"
	default:
		return "none"
	}
}

// State is the completion state of the active day plan.
type State struct {
	TasksCompleted   bool
	DayTasks         []string
	CurrentTaskIndex int
}

var confirmations = map[string]struct{}{
	"ok":      {},
	"done":    {},
	"yes":     {},
	"y":       {},
	"ok done": {},
}

// IsConfirmation reports whether msg, trimmed and lower-cased, is exactly one of
// the accepted short confirmations. "okay" or "Done." do not count.
func IsConfirmation(msg string) bool {
	_, ok := confirmations[strings.ToLower(strings.TrimSpace(msg))]
	return ok
}

var (
	tasksCompletedRe = regexp.MustCompile(`(?i)tasks?\s+completed`)
	dayCompletedRe   = regexp.MustCompile(`(?i)day\s+\d+\s+completed`)
)

// MatchesCompletionPhrase is a text heuristic over the assistant's own reply:
// "task(s) completed" or "day <n> completed", case-insensitive. It fires on any
// occurrence, so a reply quoting the phrase is a false positive.
func MatchesCompletionPhrase(reply string) bool {
	return tasksCompletedRe.MatchString(reply) || dayCompletedRe.MatchString(reply)
}

// Tracker is not safe for concurrent use; the panel controller serializes access.
type Tracker struct {
	state State
}

func New() *Tracker { return &Tracker{} }

// Begin starts tracking a new day.
func (t *Tracker) Begin(tasks []string) {
	t.state = State{DayTasks: append([]string(nil), tasks...)}
}

// Observe runs the index transition for a successful exchange whose user
// message was userMsg. On TransitionCompleted the task list is cleared and the
// tracker is locked until the next Begin or Reset.
func (t *Tracker) Observe(userMsg string) Transition {
	if t.state.TasksCompleted || len(t.state.DayTasks) == 0 {
		return TransitionNone
	}
	if !IsConfirmation(userMsg) {
		return TransitionNone
	}
	t.state.CurrentTaskIndex++
	if t.state.CurrentTaskIndex < len(t.state.DayTasks) {
		return TransitionAdvanced
	}
	t.state = State{TasksCompleted: true}
	return TransitionCompleted
}

// Lock marks the day completed without touching the index.
func (t *Tracker) Lock() {
	t.state.TasksCompleted = true
}

// Reset returns to idle.
func (t *Tracker) Reset() {
	t.state = State{}
}

func (t *Tracker) Completed() bool { return t.state.TasksCompleted }

// Pending reports whether a day is active with tasks still open.
func (t *Tracker) Pending() bool {
	return !t.state.TasksCompleted && t.state.CurrentTaskIndex < len(t.state.DayTasks)
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	s := t.state
	s.DayTasks = append([]string(nil), s.DayTasks...)
	return s
}
