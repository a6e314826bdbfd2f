// Package plan models the day plan carried by a start-day signal and builds the
// instruction message that opens a day in the panel.
package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// IntentHelpOverview asks the assistant to explain all of a day's tasks in one answer.
const IntentHelpOverview = "help_overview"

// Day is one entry of a study plan.
type Day struct {
	Day   int      `json:"day"`
	Goal  string   `json:"goal"`
	Tasks []string `json:"tasks"`
	Quiz  []string `json:"quiz,omitempty"`
}

// Plan is an ordered collection of days.
type Plan struct {
	Days []Day `json:"days"`
}

// Find returns the entry whose day number equals day, or nil.
func (p *Plan) Find(day int) *Day {
	if p == nil {
		return nil
	}
	for i := range p.Days {
		if p.Days[i].Day == day {
			return &p.Days[i]
		}
	}
	return nil
}

// StartDay is the signal that opens a day in the panel. Day is zero when the
// signal carried no usable day number; Plan is nil when absent or malformed.
type StartDay struct {
	Day    int    `json:"day"`
	Intent string `json:"intent,omitempty"`
	Plan   *Plan  `json:"plan,omitempty"`
}

// UnmarshalJSON decodes loosely shaped payloads: numbers may arrive as strings,
// task entries may be non-strings, and malformed sub-objects are dropped rather
// than failing the whole signal.
func (s *StartDay) UnmarshalJSON(raw []byte) error {
	var loose struct {
		Day    json.RawMessage `json:"day"`
		Intent json.RawMessage `json:"intent"`
		Plan   json.RawMessage `json:"plan"`
	}
	*s = StartDay{}
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil
	}
	s.Day = looseInt(loose.Day)
	s.Intent = looseString(loose.Intent)
	s.Plan = loosePlan(loose.Plan)
	return nil
}

// DecodeStartDay never fails: anything unreadable yields the zero signal, which
// takes the fallback path.
func DecodeStartDay(raw []byte) StartDay {
	var s StartDay
	_ = json.Unmarshal(raw, &s)
	return s
}

// DayTasks returns the task list of the signalled day, or nil.
func (s StartDay) DayTasks() []string {
	d := s.Plan.Find(s.Day)
	if s.Day == 0 || d == nil {
		return nil
	}
	return append([]string(nil), d.Tasks...)
}

// BuildStartDayMessage renders the instruction sent when a day starts.
// matched is false when the day or its plan entry was missing and the minimal
// fallback line was produced instead.
func BuildStartDayMessage(s StartDay) (msg string, matched bool) {
	d := s.Plan.Find(s.Day)
	if s.Day == 0 || d == nil {
		return FallbackMessage(s.Day), false
	}

	goal := strings.TrimSpace(d.Goal)
	taskLines := make([]string, 0, len(d.Tasks))
	for _, t := range d.Tasks {
		taskLines = append(taskLines, "- "+strings.TrimSpace(t))
	}

	var lines []string
	if s.Intent == IntentHelpOverview {
		lines = []string{"HELP_OVERVIEW", fmt.Sprintf("Day: %d", s.Day)}
	} else {
		lines = []string{"START_DAY", fmt.Sprintf("Day: %d", s.Day)}
	}
	if goal != "" {
		lines = append(lines, "Goal: "+goal)
	}
	if len(taskLines) > 0 {
		lines = append(lines, "Tasks:\n"+strings.Join(taskLines, "\n"))
	}
	if s.Intent == IntentHelpOverview {
		lines = append(lines,
			"INSTRUCTION:",
			"Explain ALL tasks together in ONE coherent answer.",
			"Give: overview of how they connect + steps for each + common pitfalls + quick checklist.",
			"Keep it concise and practical. Do not end with a question.",
		)
	}
	return strings.Join(lines, "\n"), true
}

// FallbackMessage is the single line sent when no plan entry matches.
func FallbackMessage(day int) string {
	if day == 0 {
		return "Start Day ."
	}
	return fmt.Sprintf("Start Day %d.", day)
}

func loosePlan(raw json.RawMessage) *Plan {
	var obj struct {
		Days []json.RawMessage `json:"days"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &obj) != nil || obj.Days == nil {
		return nil
	}
	p := &Plan{Days: make([]Day, 0, len(obj.Days))}
	for _, rawDay := range obj.Days {
		var d struct {
			Day   json.RawMessage `json:"day"`
			Goal  json.RawMessage `json:"goal"`
			Tasks json.RawMessage `json:"tasks"`
			Quiz  json.RawMessage `json:"quiz"`
		}
		if json.Unmarshal(rawDay, &d) != nil {
			continue
		}
		p.Days = append(p.Days, Day{
			Day:   looseInt(d.Day),
			Goal:  looseString(d.Goal),
			Tasks: looseStrings(d.Tasks),
			Quiz:  looseStrings(d.Quiz),
		})
	}
	return p
}

func looseInt(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if json.Unmarshal(raw, &f) == nil {
		return intFromFloat(f)
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0
		}
		return intFromFloat(f)
	}
	return 0
}

func intFromFloat(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0
	}
	return int(f)
}

func looseString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var v any
	if json.Unmarshal(raw, &v) != nil || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func looseStrings(raw json.RawMessage) []string {
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, looseString(item))
	}
	return out
}
