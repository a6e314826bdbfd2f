package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrEnded    = errors.New("session ended")
)

// Session is one browser tab hosting an agent panel. Its memory snapshot lives
// exactly as long as the session.
type Session struct {
	ID             string    `json:"tab_id"`
	PageURL        string    `json:"page_url"`
	Status         Status    `json:"status"`
	Connected      bool      `json:"connected"`
	RequestCount   int       `json:"request_count"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Lease is one panel connection's exclusive hold on a tab. A newer Attach for
// the same tab revokes the current lease.
type Lease struct {
	TabID string

	gen      uint64
	revoked  chan struct{}
	released chan struct{}
	prior    *Lease
}

// Revoked is closed when another connection takes the tab over or the tab is
// ended. The holder should close its connection and Detach.
func (l *Lease) Revoked() <-chan struct{} { return l.revoked }

// WaitPrior blocks until the connection this lease took over has detached, so
// the new holder does not restore memory the old one is still writing.
func (l *Lease) WaitPrior(ctx context.Context) error {
	if l.prior == nil {
		return nil
	}
	select {
	case <-l.prior.released:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	leases            map[string]*Lease
	nextGen           uint64
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 30 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		leases:            make(map[string]*Lease),
		inactivityTimeout: inactivityTimeout,
	}
}

// SetExpireHook registers a callback run, outside the lock, for every session
// ended by the janitor.
func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func (m *Manager) Create(pageURL string) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		PageURL:        pageURL,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return clone(s)
}

func (m *Manager) Get(tabID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[tabID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (m *Manager) Touch(tabID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[tabID]
	if !ok {
		return ErrNotFound
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// Attach marks the tab as having a live panel connection. A tab holds one
// connection at a time: attaching again revokes the previous lease, so a
// reconnecting browser takes over from a socket that has not been noticed dead
// yet. Ended tabs cannot be attached.
func (m *Manager) Attach(tabID string) (*Session, *Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[tabID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	if s.Status != StatusActive {
		return nil, nil, ErrEnded
	}

	m.nextGen++
	lease := &Lease{
		TabID:    tabID,
		gen:      m.nextGen,
		revoked:  make(chan struct{}),
		released: make(chan struct{}),
	}
	if prior, ok := m.leases[tabID]; ok {
		close(prior.revoked)
		lease.prior = prior
	}
	m.leases[tabID] = lease

	s.Connected = true
	s.LastActivityAt = time.Now().UTC()
	return clone(s), lease, nil
}

// Detach releases lease. The tab is only marked disconnected when lease is
// still the current one; a superseded connection leaves the newer one alone.
func (m *Manager) Detach(lease *Lease) {
	if lease == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-lease.released:
		return
	default:
		close(lease.released)
	}
	if current, ok := m.leases[lease.TabID]; !ok || current.gen != lease.gen {
		return
	}
	delete(m.leases, lease.TabID)
	if s, ok := m.sessions[lease.TabID]; ok {
		s.Connected = false
		s.LastActivityAt = time.Now().UTC()
	}
}

// RecordRequest counts one panel submission.
func (m *Manager) RecordRequest(tabID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[tabID]
	if !ok {
		return ErrNotFound
	}
	s.RequestCount++
	s.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) End(tabID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[tabID]
	if !ok {
		return nil, ErrNotFound
	}
	s.Status = StatusEnded
	s.Connected = false
	s.LastActivityAt = time.Now().UTC()
	if lease, ok := m.leases[tabID]; ok {
		close(lease.revoked)
		delete(m.leases, tabID)
	}
	return clone(s), nil
}

// StartJanitor expires inactive tabs until ctx is done. The returned channel is
// closed when the janitor goroutine exits.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
	return done
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if s.Status == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.Status != StatusActive {
			// Ended tabs are kept for one more timeout so late lookups still resolve.
			if now.Sub(s.LastActivityAt) >= m.inactivityTimeout {
				delete(m.sessions, id)
			}
			continue
		}
		if s.Connected || now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		s.Status = StatusEnded
		s.LastActivityAt = now
		expired = append(expired, clone(s))
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
