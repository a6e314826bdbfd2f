package panel

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/mentra/internal/memory"
	"github.com/ent0n29/mentra/internal/observability"
	"github.com/ent0n29/mentra/internal/protocol"
)

// DefaultDeliverTimeout bounds how long a presenter call waits on a slow
// connection before the message is dropped.
const DefaultDeliverTimeout = 600 * time.Millisecond

// Outbox hands server messages to a connection's writer goroutine.
type Outbox struct {
	ch      chan<- any
	done    <-chan struct{}
	timeout time.Duration
	metrics *observability.Metrics
}

func NewOutbox(ch chan<- any, done <-chan struct{}, metrics *observability.Metrics) *Outbox {
	return &Outbox{ch: ch, done: done, timeout: DefaultDeliverTimeout, metrics: metrics}
}

// Deliver queues msg. It gives up when the connection is gone or the queue
// stays full past the timeout.
func (o *Outbox) Deliver(msg any) bool {
	select {
	case <-o.done:
		o.metrics.ObserveWSWriteError("closed")
		return false
	default:
	}

	timer := time.NewTimer(o.timeout)
	defer timer.Stop()
	select {
	case o.ch <- msg:
		return true
	case <-o.done:
		o.metrics.ObserveWSWriteError("closed")
		return false
	case <-timer.C:
		o.metrics.ObserveWSWriteError("timeout")
		return false
	}
}

// Deliverer is what EventPresenter writes to.
type Deliverer interface {
	Deliver(msg any) bool
}

// EventPresenter turns controller render calls into protocol messages.
type EventPresenter struct {
	out   Deliverer
	newID func() string
}

func NewEventPresenter(out Deliverer) *EventPresenter {
	return &EventPresenter{out: out, newID: uuid.NewString}
}

func (p *EventPresenter) Append(role memory.Role, text string) {
	text = strings.TrimSpace(text)
	html := EscapeText(text)
	if role == memory.RoleAssistant {
		html = RenderMarkup(text)
	}
	p.out.Deliver(protocol.Transcript{
		Type: protocol.TypeTranscript,
		Role: string(role),
		HTML: html,
		Text: text,
	})
}

func (p *EventPresenter) ShowThinking() string {
	id := p.newID()
	p.out.Deliver(protocol.Thinking{Type: protocol.TypeThinkingStart, ID: id})
	return id
}

func (p *EventPresenter) RemoveThinking(id string) {
	p.out.Deliver(protocol.Thinking{Type: protocol.TypeThinkingEnd, ID: id})
}

func (p *EventPresenter) SetBusy(busy bool) {
	p.out.Deliver(protocol.Busy{Type: protocol.TypeBusy, Busy: busy})
}

func (p *EventPresenter) LockInput()   { p.signal(protocol.TypeInputLocked) }
func (p *EventPresenter) UnlockInput() { p.signal(protocol.TypeInputUnlocked) }
func (p *EventPresenter) ClearInput()  { p.signal(protocol.TypeInputCleared) }
func (p *EventPresenter) Focus()       { p.signal(protocol.TypeFocus) }
func (p *EventPresenter) Open()        { p.signal(protocol.TypePanelOpened) }
func (p *EventPresenter) Clear()       { p.signal(protocol.TypeTranscriptCleared) }

func (p *EventPresenter) SetPlaceholder(text string) {
	p.out.Deliver(protocol.Placeholder{Type: protocol.TypePlaceholder, Text: text})
}

func (p *EventPresenter) signal(t protocol.MessageType) {
	p.out.Deliver(protocol.Signal{Type: t})
}

// MessageType returns the wire type of a server message, for metric labels.
func MessageType(msg any) string {
	switch m := msg.(type) {
	case protocol.Transcript:
		return string(m.Type)
	case protocol.Thinking:
		return string(m.Type)
	case protocol.Busy:
		return string(m.Type)
	case protocol.Signal:
		return string(m.Type)
	case protocol.Placeholder:
		return string(m.Type)
	case protocol.SystemEvent:
		return string(m.Type)
	case protocol.ErrorEvent:
		return string(m.Type)
	default:
		return "unknown"
	}
}
