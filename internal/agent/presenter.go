package agent

import "github.com/ent0n29/mentra/internal/memory"

// Presenter renders controller output. The controller calls it while holding
// its own lock, so implementations must not call back into the Controller
// synchronously.
type Presenter interface {
	// Append adds a transcript entry. User text arrives trimmed and must be shown
	// verbatim; assistant text may carry **bold** and newlines.
	Append(role memory.Role, text string)
	// ShowThinking adds the transient thinking indicator and returns its handle.
	ShowThinking() string
	RemoveThinking(id string)
	// SetBusy toggles the input and swaps the send control for the stop control.
	SetBusy(busy bool)
	LockInput()
	UnlockInput()
	ClearInput()
	SetPlaceholder(text string)
	Focus()
	Open()
	// Clear empties the transcript.
	Clear()
}

// NopPresenter discards all render instructions.
type NopPresenter struct{}

func (NopPresenter) Append(memory.Role, string) {}
func (NopPresenter) ShowThinking() string       { return "" }
func (NopPresenter) RemoveThinking(string)      {}
func (NopPresenter) SetBusy(bool)               {}
func (NopPresenter) LockInput()                 {}
func (NopPresenter) UnlockInput()               {}
func (NopPresenter) ClearInput()                {}
func (NopPresenter) SetPlaceholder(string)      {}
func (NopPresenter) Focus()                     {}
func (NopPresenter) Open()                      {}
func (NopPresenter) Clear()                     {}
