// Package agent is the conversational controller behind one agent panel: it
// owns the session memory, the day-plan completion tracker and the single
// in-flight assistant request.
package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/mentra/internal/assistant"
	"github.com/ent0n29/mentra/internal/logging"
	"github.com/ent0n29/mentra/internal/memory"
	"github.com/ent0n29/mentra/internal/observability"
	"github.com/ent0n29/mentra/internal/plan"
	"github.com/ent0n29/mentra/internal/prompt"
	"github.com/ent0n29/mentra/internal/reliability"
	"github.com/ent0n29/mentra/internal/tracker"
)

const (
	DefaultPlaceholder = "Type a message..."

	EmptyReplyGlyph    = "…"
	StoppedNotice      = "Stopped."
	NetworkErrorNotice = "Network error. Try again."
	CompletionNotice   = "Good. Day tasks completed."
)

// Options configures a Controller. Client and Memory are required.
type Options struct {
	Client    assistant.Client
	Memory    *memory.Memory
	Presenter Presenter
	// PageURL is the URL of the page embedding the panel; it selects the page
	// context sent with every request.
	PageURL string
	// DisablePhraseCompletion turns off locking on completion phrases in replies.
	DisablePhraseCompletion bool
	TabID                   string
	Logger                  *zap.Logger
	Metrics                 *observability.Metrics
}

// SendOptions controls a single submission.
type SendOptions struct {
	// Raw sends the message as-is instead of composing it with pinned context
	// and history.
	Raw bool
}

// Controller serializes all state changes behind one mutex. Network calls run
// in their own goroutine; a completion only touches shared state when its token
// is still the active one. Memory snapshots are flushed after the mutex is
// released, so a slow store never blocks Stop or Send.
type Controller struct {
	client    assistant.Client
	mem       *memory.Memory
	presenter Presenter
	page      assistant.PageContext
	tracker   *tracker.Tracker
	phrase    bool
	tabID     string
	logger    *zap.Logger
	metrics   *observability.Metrics

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu          sync.Mutex
	busy        bool
	inputLocked bool
	isOpen      bool
	nextToken   int64
	activeToken int64
	cancel      context.CancelFunc
	// Requests with a token at or below quietBelow finish without a transcript notice.
	quietBelow int64
}

type request struct {
	token      int64
	userText   string
	payload    assistant.Request
	thinkingID string
	startedAt  time.Time
}

func New(opts Options) *Controller {
	presenter := opts.Presenter
	if presenter == nil {
		presenter = NopPresenter{}
	}
	mem := opts.Memory
	if mem == nil {
		mem = memory.New(memory.Options{})
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		client:     opts.Client,
		mem:        mem,
		presenter:  presenter,
		page:       assistant.ContextFromURL(opts.PageURL),
		tracker:    tracker.New(),
		phrase:     !opts.DisablePhraseCompletion,
		tabID:      opts.TabID,
		logger:     logging.OrNop(opts.Logger).Named("agent").With(zap.String("tab_id", opts.TabID)),
		metrics:    opts.Metrics,
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// Send submits msg. It returns false without any effect when msg is blank, a
// request is already in flight, or input is locked after a completed day.
func (c *Controller) Send(msg string, opts SendOptions) bool {
	c.mu.Lock()
	ok := c.sendLocked(msg, opts)
	c.mu.Unlock()

	c.mem.Flush()
	return ok
}

func (c *Controller) sendLocked(msg string, opts SendOptions) bool {
	text := strings.TrimSpace(msg)
	if text == "" || c.busy || c.inputLocked || c.baseCtx.Err() != nil {
		return false
	}

	if c.tracker.Completed() {
		c.tracker.Reset()
		c.mem.Clear()
	}

	c.presenter.Append(memory.RoleUser, text)
	c.presenter.ClearInput()
	c.setBusyLocked(true)

	if c.cancel != nil {
		c.cancel()
	}
	c.nextToken++
	token := c.nextToken
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.activeToken = token
	c.cancel = cancel

	thinkingID := c.presenter.ShowThinking()

	composed := text
	if !opts.Raw {
		composed = prompt.Compose(c.mem.Pinned(), c.mem.Turns(), text)
	}
	r := request{
		token:      token,
		userText:   text,
		payload:    c.page.Request(composed),
		thinkingID: thinkingID,
		startedAt:  time.Now(),
	}

	c.logger.Debug("request started", zap.Int64("token", token), zap.Bool("raw", opts.Raw))
	c.wg.Add(1)
	go c.run(ctx, cancel, r)
	return true
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, r request) {
	defer c.wg.Done()
	defer cancel()

	resp, err := c.client.Chat(ctx, r.payload)
	c.finish(r, resp, err, ctx.Err())
	c.mem.Flush()
}

func (c *Controller) finish(r request, resp assistant.Response, err, ctxErr error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.presenter.RemoveThinking(r.thinkingID)

	current := c.activeToken == r.token
	outcome := reliability.Classify(err)
	if ctxErr != nil {
		outcome = reliability.OutcomeCancelled
	}
	c.metrics.ObserveRequest(string(outcome), time.Since(r.startedAt))

	switch {
	case outcome == reliability.OutcomeCancelled:
		if r.token > c.quietBelow {
			c.presenter.Append(memory.RoleAssistant, StoppedNotice)
		}
	case !current:
		c.logger.Debug("dropping stale completion", zap.Int64("token", r.token), zap.Int64("active", c.activeToken))
	case outcome == reliability.OutcomeServerError:
		se, _ := assistant.AsStatusError(err)
		c.logger.Info("assistant request failed", zap.Int("status", se.Code), zap.String("error", se.Message))
		c.presenter.Append(memory.RoleAssistant, se.Notice())
	case outcome == reliability.OutcomeNetwork:
		c.logger.Warn("assistant request error", zap.Error(err))
		c.presenter.Append(memory.RoleAssistant, NetworkErrorNotice)
	default:
		c.completeLocked(r, resp)
	}

	if current {
		c.activeToken = 0
		c.cancel = nil
		c.setBusyLocked(false)
		c.presenter.Focus()
	}
}

func (c *Controller) completeLocked(r request, resp assistant.Response) {
	reply := strings.TrimSpace(resp.Reply)
	shown := reply
	if shown == "" {
		shown = EmptyReplyGlyph
	}
	c.presenter.Append(memory.RoleAssistant, shown)

	if c.phrase && tracker.MatchesCompletionPhrase(reply) {
		if c.tracker.Pending() {
			s := c.tracker.Snapshot()
			c.logger.Warn("completion phrase before all tasks confirmed",
				zap.Int("task_index", s.CurrentTaskIndex),
				zap.Int("tasks", len(s.DayTasks)))
			c.metrics.ObserveDisagreement()
		}
		c.tracker.Lock()
		c.lockInputLocked()
		c.metrics.ObserveCompletion("phrase")
	}

	c.mem.Push(memory.RoleUser, r.userText)
	c.mem.Push(memory.RoleAssistant, shown)

	if c.tracker.Observe(r.userText) == tracker.TransitionCompleted {
		c.presenter.Append(memory.RoleAssistant, CompletionNotice)
		c.mem.Clear()
		c.presenter.SetPlaceholder(DefaultPlaceholder)
		c.metrics.ObserveCompletion("index")
		c.logger.Info("day tasks completed")
	}
}

// Stop cancels the in-flight request, if any, and clears the busy state
// immediately. The cancelled call may still run to completion in the
// background; its result is discarded.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
		c.activeToken = 0
	}
	c.setBusyLocked(false)
}

// Open shows the panel with the default placeholder and focused input.
func (c *Controller) Open() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openLocked()
}

func (c *Controller) openLocked() {
	c.isOpen = true
	c.presenter.Open()
	c.presenter.SetPlaceholder(DefaultPlaceholder)
	c.presenter.Focus()
}

// Close tears the panel session down: the in-flight request is stopped, memory
// and completion state are reset and the transcript is cleared.
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopLocked()
	c.quietBelow = c.nextToken
	c.mem.Clear()
	c.tracker.Reset()
	if c.inputLocked {
		c.inputLocked = false
		c.presenter.UnlockInput()
	}
	c.presenter.Clear()
	c.isOpen = false
	c.mu.Unlock()

	c.mem.Flush()
}

// StartDay re-initialises the panel for the signalled day and sends the day's
// instruction message raw. A request still in flight is stopped first so the
// signal is never dropped by the busy guard.
func (c *Controller) StartDay(sig plan.StartDay) bool {
	c.mu.Lock()
	ok := c.startDayLocked(sig)
	c.mu.Unlock()

	c.mem.Flush()
	return ok
}

func (c *Controller) startDayLocked(sig plan.StartDay) bool {
	c.openLocked()
	c.stopLocked()
	c.quietBelow = c.nextToken

	c.tracker.Reset()
	c.inputLocked = false
	c.presenter.UnlockInput()
	c.presenter.SetPlaceholder(DefaultPlaceholder)

	c.mem.Clear()
	tasks := sig.DayTasks()
	c.tracker.Begin(tasks)

	msg, matched := plan.BuildStartDayMessage(sig)
	if matched || sig.Intent != plan.IntentHelpOverview {
		c.mem.SetPinned(msg)
	}
	c.logger.Info("day started",
		zap.Int("day", sig.Day),
		zap.String("intent", sig.Intent),
		zap.Bool("matched", matched),
		zap.Int("tasks", len(tasks)))
	return c.sendLocked(msg, SendOptions{Raw: true})
}

// Shutdown cancels every request and waits for their goroutines to return.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	c.stopLocked()
	c.quietBelow = c.nextToken
	c.mu.Unlock()

	c.baseCancel()
	c.wg.Wait()
}

// Wait blocks until all request goroutines started so far have returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

func (c *Controller) InputLocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputLocked
}

func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isOpen
}

// Completion returns a copy of the day-plan completion state.
func (c *Controller) Completion() tracker.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.Snapshot()
}

// Memory exposes the session memory for read access.
func (c *Controller) Memory() *memory.Memory {
	return c.mem
}

func (c *Controller) setBusyLocked(busy bool) {
	if c.busy == busy {
		return
	}
	c.busy = busy
	c.presenter.SetBusy(busy)
}

func (c *Controller) lockInputLocked() {
	c.inputLocked = true
	c.presenter.LockInput()
}
