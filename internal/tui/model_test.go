package tui

import (
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/mentra/internal/agent"
	"github.com/ent0n29/mentra/internal/memory"
	"github.com/ent0n29/mentra/internal/plan"
)

type fakeController struct {
	mu     sync.Mutex
	sent   []string
	stops  int
	opens  int
	closes int
	days   []plan.StartDay
}

func (f *fakeController) Send(msg string, _ agent.SendOptions) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return true
}

func (f *fakeController) Stop()  { f.mu.Lock(); f.stops++; f.mu.Unlock() }
func (f *fakeController) Open()  { f.mu.Lock(); f.opens++; f.mu.Unlock() }
func (f *fakeController) Close() { f.mu.Lock(); f.closes++; f.mu.Unlock() }

func (f *fakeController) StartDay(sig plan.StartDay) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.days = append(f.days, sig)
	return true
}

func typeText(m *model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func TestEnterDispatchesSendThroughCmd(t *testing.T) {
	ctrl := &fakeController{}
	m := newModel(ctrl, Options{})
	typeText(m, "plan my day")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Empty(t, ctrl.sent, "Update must not call the controller directly")

	cmd()
	assert.Equal(t, []string{"plan my day"}, ctrl.sent)
}

func TestEnterIgnoredWhenBusyLockedOrBlank(t *testing.T) {
	ctrl := &fakeController{}
	m := newModel(ctrl, Options{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)

	typeText(m, "hello")
	m.Update(busyMsg(true))
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)

	m.Update(busyMsg(false))
	m.Update(lockMsg(true))
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), lockedHelpLine)
}

func TestEscStopsWhenBusy(t *testing.T) {
	ctrl := &fakeController{}
	m := newModel(ctrl, Options{})
	m.Update(busyMsg(true))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, 1, ctrl.stops)
	assert.Zero(t, ctrl.closes)
}

func TestEscClosesWhenIdle(t *testing.T) {
	ctrl := &fakeController{}
	m := newModel(ctrl, Options{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Zero(t, ctrl.stops)
}

func TestCtrlCQuits(t *testing.T) {
	m := newModel(&fakeController{}, Options{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestPresenterMessagesUpdateTranscript(t *testing.T) {
	m := newModel(&fakeController{}, Options{})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	m.Update(appendMsg{role: memory.RoleUser, text: "hi"})
	m.Update(thinkingMsg{id: "t1", on: true})
	assert.Contains(t, m.transcript(), thinkingLabel)

	m.Update(thinkingMsg{id: "t1"})
	m.Update(appendMsg{role: memory.RoleAssistant, text: "Do **task one** first."})
	out := m.transcript()
	assert.NotContains(t, out, thinkingLabel)
	assert.Contains(t, out, "hi")
	assert.Contains(t, out, "task one")
	assert.NotContains(t, out, "**")

	m.Update(placeholderMsg("Ask about day 2"))
	assert.Equal(t, "Ask about day 2", m.input.Placeholder)

	m.Update(clearMsg{})
	assert.Empty(t, m.entries)
	assert.Empty(t, strings.TrimSpace(m.transcript()))
}

func TestClearInputMessage(t *testing.T) {
	m := newModel(&fakeController{}, Options{})
	typeText(m, "draft")
	require.Equal(t, "draft", m.input.Value())

	m.Update(clearInputMsg{})
	assert.Empty(t, m.input.Value())
}

func TestInitSignalsStartDay(t *testing.T) {
	ctrl := &fakeController{}
	sig := plan.StartDay{Day: 2}
	m := newModel(ctrl, Options{StartDay: &sig})

	runOpenCmd(t, m)
	require.Len(t, ctrl.days, 1)
	assert.Equal(t, 2, ctrl.days[0].Day)
	assert.Zero(t, ctrl.opens)
}

func TestInitOpensPanel(t *testing.T) {
	ctrl := &fakeController{}
	m := newModel(ctrl, Options{})

	runOpenCmd(t, m)
	assert.Equal(t, 1, ctrl.opens)
}

// runOpenCmd runs the controller command batched by Init without driving the
// blink and spinner ticks.
func runOpenCmd(t *testing.T, m *model) {
	t.Helper()
	batch, ok := m.Init()().(tea.BatchMsg)
	require.True(t, ok)
	require.Len(t, batch, 3)
	batch[2]()
}

func TestRenderAssistantStripsBoldMarkers(t *testing.T) {
	out := renderAssistant("  **Day 1**: read the brief  ")
	assert.NotContains(t, out, "**")
	assert.Contains(t, out, "Day 1")
	assert.Contains(t, out, ": read the brief")
}

func TestPresenterWithoutProgramIsSafe(t *testing.T) {
	p := NewPresenter()
	id := p.ShowThinking()
	assert.NotEmpty(t, id)
	p.Append(memory.RoleUser, "x")
	p.RemoveThinking(id)
	p.SetBusy(true)
	p.Clear()
}

var _ agent.Presenter = (*Presenter)(nil)
var _ Controller = (*agent.Controller)(nil)
