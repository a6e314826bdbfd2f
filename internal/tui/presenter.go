package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/ent0n29/mentra/internal/memory"
)

type appendMsg struct {
	role memory.Role
	text string
}

type thinkingMsg struct {
	id string
	on bool
}

type busyMsg bool

type lockMsg bool

type placeholderMsg string

type (
	clearInputMsg struct{}
	focusMsg      struct{}
	openMsg       struct{}
	clearMsg      struct{}
)

// Presenter forwards controller render calls into a running tea.Program.
// Program.Send blocks until the event loop receives the message, so the model
// must never call the controller from inside Update; it dispatches through
// tea.Cmd instead.
type Presenter struct {
	mu      sync.RWMutex
	program *tea.Program
}

func NewPresenter() *Presenter { return &Presenter{} }

// Attach binds the program. Calls made before Attach are dropped.
func (p *Presenter) Attach(program *tea.Program) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.program = program
}

func (p *Presenter) send(msg tea.Msg) {
	p.mu.RLock()
	program := p.program
	p.mu.RUnlock()
	if program != nil {
		program.Send(msg)
	}
}

func (p *Presenter) Append(role memory.Role, text string) { p.send(appendMsg{role: role, text: text}) }

func (p *Presenter) ShowThinking() string {
	id := uuid.NewString()
	p.send(thinkingMsg{id: id, on: true})
	return id
}

func (p *Presenter) RemoveThinking(id string)   { p.send(thinkingMsg{id: id}) }
func (p *Presenter) SetBusy(busy bool)          { p.send(busyMsg(busy)) }
func (p *Presenter) LockInput()                 { p.send(lockMsg(true)) }
func (p *Presenter) UnlockInput()               { p.send(lockMsg(false)) }
func (p *Presenter) ClearInput()                { p.send(clearInputMsg{}) }
func (p *Presenter) SetPlaceholder(text string) { p.send(placeholderMsg(text)) }
func (p *Presenter) Focus()                     { p.send(focusMsg{}) }
func (p *Presenter) Open()                      { p.send(openMsg{}) }
func (p *Presenter) Clear()                     { p.send(clearMsg{}) }
