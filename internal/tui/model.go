// Package tui is a terminal rendition of the agent panel.
package tui

import (
	"context"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ent0n29/mentra/internal/agent"
	"github.com/ent0n29/mentra/internal/memory"
	"github.com/ent0n29/mentra/internal/plan"
)

// Controller is the part of agent.Controller the terminal panel drives.
type Controller interface {
	Send(msg string, opts agent.SendOptions) bool
	Stop()
	Open()
	Close()
	StartDay(sig plan.StartDay) bool
}

// Options configures Run.
type Options struct {
	// StartDay, when set, is signalled right after the panel opens.
	StartDay *plan.StartDay
	Title    string
}

const (
	promptSymbol   = "› "
	inputHeight    = 3
	headerHeight   = 1
	footerHeight   = 1
	defaultWidth   = 80
	thinkingLabel  = "thinking"
	helpLine       = "enter send · alt+enter newline · esc stop/close · ctrl+c quit"
	lockedHelpLine = "day completed · esc close · ctrl+c quit"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	userLabel      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Render("You")
	assistantLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Render("Mentra")
	thinkingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boldStyle      = lipgloss.NewStyle().Bold(true)

	boldPattern = regexp.MustCompile(`\*\*(.+?)\*\*`)
)

type entry struct {
	role memory.Role
	text string
}

type model struct {
	ctrl  Controller
	opts  Options
	title string

	input    textarea.Model
	spinner  spinner.Model
	viewport viewport.Model

	entries  []entry
	thinking []string
	busy     bool
	locked   bool
	width    int
	height   int
}

func newModel(ctrl Controller, opts Options) *model {
	input := textarea.New()
	input.Prompt = promptSymbol
	input.Placeholder = agent.DefaultPlaceholder
	input.ShowLineNumbers = false
	input.CharLimit = 0
	input.SetHeight(inputHeight)
	input.SetWidth(defaultWidth)
	input.KeyMap.InsertNewline.SetKeys("alt+enter")
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = thinkingStyle

	title := opts.Title
	if title == "" {
		title = "Mentra"
	}

	return &model{
		ctrl:     ctrl,
		opts:     opts,
		title:    title,
		input:    input,
		spinner:  sp,
		viewport: viewport.New(defaultWidth, 20),
		width:    defaultWidth,
	}
}

func (m *model) Init() tea.Cmd {
	ctrl, start := m.ctrl, m.opts.StartDay
	return tea.Batch(textarea.Blink, m.spinner.Tick, func() tea.Msg {
		if start != nil {
			ctrl.StartDay(*start)
		} else {
			ctrl.Open()
		}
		return nil
	})
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.SetWidth(msg.Width)
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-inputHeight-headerHeight-footerHeight-1, 3)
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if len(m.thinking) > 0 {
			m.refresh()
		}
		return m, cmd
	case appendMsg:
		m.entries = append(m.entries, entry{role: msg.role, text: msg.text})
		m.refresh()
		return m, nil
	case thinkingMsg:
		if msg.on {
			m.thinking = append(m.thinking, msg.id)
		} else {
			m.thinking = removeID(m.thinking, msg.id)
		}
		m.refresh()
		return m, nil
	case busyMsg:
		m.busy = bool(msg)
		m.syncFocus()
		return m, nil
	case lockMsg:
		m.locked = bool(msg)
		m.syncFocus()
		return m, nil
	case clearInputMsg:
		m.input.Reset()
		return m, nil
	case placeholderMsg:
		m.input.Placeholder = string(msg)
		return m, nil
	case focusMsg:
		m.syncFocus()
		return m, nil
	case openMsg:
		m.refresh()
		return m, nil
	case clearMsg:
		m.entries = nil
		m.thinking = nil
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctrl := m.ctrl
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		if m.busy {
			return m, func() tea.Msg { ctrl.Stop(); return nil }
		}
		return m, tea.Sequence(func() tea.Msg { ctrl.Close(); return nil }, tea.Quit)
	case tea.KeyEnter:
		if msg.Alt {
			break
		}
		if m.busy || m.locked {
			return m, nil
		}
		value := m.input.Value()
		if strings.TrimSpace(value) == "" {
			return m, nil
		}
		return m, func() tea.Msg { ctrl.Send(value, agent.SendOptions{}); return nil }
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	if m.busy || m.locked {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) syncFocus() {
	if m.busy || m.locked {
		m.input.Blur()
		return
	}
	m.input.Focus()
}

func (m *model) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m *model) transcript() string {
	width := max(m.width-2, 20)
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if e.role == memory.RoleUser {
			b.WriteString(userLabel + "\n")
			b.WriteString(lipgloss.NewStyle().Width(width).Render(strings.TrimSpace(e.text)))
			continue
		}
		b.WriteString(assistantLabel + "\n")
		b.WriteString(lipgloss.NewStyle().Width(width).Render(renderAssistant(e.text)))
	}
	for range m.thinking {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.spinner.View() + thinkingStyle.Render(" "+thinkingLabel))
	}
	return b.String()
}

func (m *model) View() string {
	help := helpLine
	if m.locked {
		help = lockedHelpLine
	}
	return strings.Join([]string{
		titleStyle.Render(m.title),
		m.viewport.View(),
		m.input.View(),
		helpStyle.Render(help),
	}, "\n")
}

// renderAssistant applies the panel's markup subset: **bold** spans only.
func renderAssistant(text string) string {
	return boldPattern.ReplaceAllStringFunc(strings.TrimSpace(text), func(s string) string {
		return boldStyle.Render(s[2 : len(s)-2])
	})
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Run opens the terminal panel and blocks until the user quits or ctx ends.
// newController receives the presenter the controller must render through.
func Run(ctx context.Context, newController func(agent.Presenter) Controller, opts Options) error {
	presenter := NewPresenter()
	ctrl := newController(presenter)
	program := tea.NewProgram(newModel(ctrl, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	presenter.Attach(program)
	_, err := program.Run()
	return err
}
