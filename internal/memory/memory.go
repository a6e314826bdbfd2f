// Package memory holds the bounded, tab-scoped conversation memory of an agent
// panel and the stores its snapshots are persisted to.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/mentra/internal/logging"
)

const (
	DefaultMaxTurns     = 12
	DefaultMaxCharsEach = 12000

	// TruncationMarker is appended to content cut at the per-turn bound.
	TruncationMarker = "…"

	persistTimeout = 2 * time.Second
)

// Options configures a Memory.
type Options struct {
	MaxTurns     int
	MaxCharsEach int
	Store        SnapshotStore
	TabID        string
	Logger       *zap.Logger
	// DeferPersist makes Push and Clear only mark the memory dirty. The owner
	// writes the snapshot with Flush, typically after releasing its own locks.
	DeferPersist bool
}

// Memory is the rolling window of recent turns plus the pinned context block.
// Every mutation of the turn sequence rewrites the tab snapshot; persistence
// failures are logged and never surfaced.
type Memory struct {
	mu       sync.RWMutex
	turns    []Turn
	pinned   string
	maxTurns int
	maxChars int

	// version counts turn mutations; synced is the version last written.
	version  uint64
	flushMu  sync.Mutex
	synced   uint64
	deferred bool

	store  SnapshotStore
	tabID  string
	logger *zap.Logger
}

func New(opts Options) *Memory {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.MaxCharsEach <= 0 {
		opts.MaxCharsEach = DefaultMaxCharsEach
	}
	return &Memory{
		maxTurns: opts.MaxTurns,
		maxChars: opts.MaxCharsEach,
		store:    opts.Store,
		tabID:    opts.TabID,
		deferred: opts.DeferPersist,
		logger:   logging.OrNop(opts.Logger).Named("memory"),
	}
}

// Push appends a turn, truncates its content and evicts the oldest turns past
// the bound.
func (m *Memory) Push(role Role, content string) {
	m.mu.Lock()
	m.turns = append(m.turns, Turn{Role: role, Content: Clamp(content, m.maxChars)})
	if len(m.turns) > m.maxTurns {
		m.turns = append([]Turn(nil), m.turns[len(m.turns)-m.maxTurns:]...)
	}
	m.version++
	m.mu.Unlock()

	if !m.deferred {
		m.Flush()
	}
}

// Clear empties turns and pinned context and drops the stored snapshot.
func (m *Memory) Clear() {
	m.mu.Lock()
	m.turns = nil
	m.pinned = ""
	m.version++
	m.mu.Unlock()

	if !m.deferred {
		m.Flush()
	}
}

// Flush writes the current turns to the store when they changed since the
// last successful write. An empty memory deletes the stored snapshot.
// Concurrent flushes are serialized and each writes the newest state.
func (m *Memory) Flush() {
	if m.store == nil {
		return
	}
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	m.mu.RLock()
	version := m.version
	snapshot := cloneTurns(m.turns)
	m.mu.RUnlock()
	if version == m.synced {
		return
	}
	if m.persist(snapshot) {
		m.synced = version
	}
}

func (m *Memory) SetPinned(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pinned = text
}

func (m *Memory) Pinned() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pinned
}

// Turns returns a copy of the retained turns, oldest first.
func (m *Memory) Turns() []Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneTurns(m.turns)
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.turns)
}

// Restore loads the tab snapshot. Missing or malformed data leaves the memory
// empty.
func (m *Memory) Restore(ctx context.Context) {
	if m.store == nil {
		return
	}
	payload, err := m.store.Load(ctx, m.tabID)
	if err != nil {
		if !errors.Is(err, ErrSnapshotNotFound) {
			m.logger.Debug("snapshot unavailable", zap.String("tab_id", m.tabID), zap.Error(err))
		}
		return
	}

	turns, err := DecodeSnapshot(payload)
	if err != nil {
		m.logger.Debug("discarding malformed snapshot", zap.String("tab_id", m.tabID), zap.Error(err))
		return
	}
	for i := range turns {
		turns[i].Content = Clamp(turns[i].Content, m.maxChars)
	}
	if len(turns) > m.maxTurns {
		turns = turns[len(turns)-m.maxTurns:]
	}

	m.mu.Lock()
	m.turns = turns
	m.mu.Unlock()
}

func (m *Memory) persist(snapshot []Turn) bool {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if len(snapshot) == 0 {
		if err := m.store.Delete(ctx, m.tabID); err != nil {
			m.logger.Warn("clear snapshot failed", zap.String("tab_id", m.tabID), zap.Error(err))
			return false
		}
		return true
	}
	payload, err := EncodeSnapshot(snapshot)
	if err != nil {
		m.logger.Warn("encode snapshot failed", zap.Error(err))
		return false
	}
	if err := m.store.Save(ctx, m.tabID, payload); err != nil {
		m.logger.Warn("save snapshot failed", zap.String("tab_id", m.tabID), zap.Error(err))
		return false
	}
	return true
}

// EncodeSnapshot serializes turns as a JSON array of {role, content}.
func EncodeSnapshot(turns []Turn) ([]byte, error) {
	if turns == nil {
		turns = []Turn{}
	}
	return json.Marshal(turns)
}

var errUnknownRole = errors.New("snapshot contains unknown role")

// DecodeSnapshot parses a persisted snapshot, rejecting unknown roles.
func DecodeSnapshot(payload []byte) ([]Turn, error) {
	var turns []Turn
	if err := json.Unmarshal(payload, &turns); err != nil {
		return nil, err
	}
	for _, t := range turns {
		if !t.Role.Valid() {
			return nil, errUnknownRole
		}
	}
	return turns, nil
}

// Clamp trims s and cuts it to n characters, appending TruncationMarker when cut.
func Clamp(s string, n int) string {
	t := strings.TrimSpace(s)
	r := []rune(t)
	if len(r) <= n {
		return t
	}
	return string(r[:n]) + TruncationMarker
}

func cloneTurns(in []Turn) []Turn {
	if len(in) == 0 {
		return nil
	}
	out := make([]Turn, len(in))
	copy(out, in)
	return out
}
