// Package session tracks operator logins and their role-scoped expiry
// countdowns. At most one active session exists per user; a second login
// cancels and replaces the prior countdown atomically, so a stale timer can
// never tear down a newer session.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/weighops/authcore/internal/clock"
)

// ExpireFunc is invoked (outside the manager lock) when a session countdown
// fires before an explicit End.
type ExpireFunc func(sess *Session)

type entry struct {
	session *Session
	timer   clock.Timer
	gen     uint64
}

// Manager owns the per-user session table and expiry timers.
type Manager struct {
	mu       sync.Mutex
	clock    clock.Clock
	onExpire ExpireFunc
	active   map[int64]*entry
	nextGen  uint64
}

// NewManager creates a Manager. onExpire may be nil.
func NewManager(clk clock.Clock, onExpire ExpireFunc) *Manager {
	if clk == nil {
		clk = clock.System()
	}
	return &Manager{
		clock:    clk,
		onExpire: onExpire,
		active:   make(map[int64]*entry),
	}
}

// Start opens a session for userID with a fresh opaque token and starts a
// single-shot countdown of the given duration. An existing session for the
// same user is deactivated and its timer cancelled under the same lock, so
// replacement is atomic.
func (m *Manager) Start(userID int64, lifetime, countdown time.Duration) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prior, ok := m.active[userID]; ok {
		prior.timer.Stop()
		prior.session.Active = false
		delete(m.active, userID)
	}

	now := m.clock.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(lifetime),
		Active:    true,
	}

	m.nextGen++
	gen := m.nextGen
	e := &entry{session: sess, gen: gen}
	e.timer = m.clock.AfterFunc(countdown, func() {
		m.fire(userID, gen)
	})
	m.active[userID] = e

	out := *sess
	return &out
}

// End closes the session for userID, cancelling its countdown. It returns
// the closed session, or nil when none was active — making End and a
// concurrent timer fire idempotent with respect to each other.
func (m *Manager) End(userID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.active[userID]
	if !ok {
		return nil
	}
	e.timer.Stop()
	e.session.Active = false
	delete(m.active, userID)

	out := *e.session
	return &out
}

// Get returns a copy of the active session for userID.
func (m *Manager) Get(userID int64) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.active[userID]
	if !ok {
		return nil, false
	}
	out := *e.session
	return &out, true
}

func (m *Manager) fire(userID int64, gen uint64) {
	m.mu.Lock()
	e, ok := m.active[userID]
	if !ok || e.gen != gen {
		// Logged out, or replaced by a newer login, before the timer ran.
		m.mu.Unlock()
		return
	}
	e.session.Active = false
	delete(m.active, userID)
	expired := *e.session
	m.mu.Unlock()

	if m.onExpire != nil {
		m.onExpire(&expired)
	}
}
