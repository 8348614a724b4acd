// Package escalate tracks temporary privilege grants. A user holds at most
// one grant at a time; a new request overwrites the previous grant and its
// countdown under the same lock.
package escalate

import (
	"sync"
	"time"

	"github.com/weighops/authcore/internal/clock"
)

// ExpireFunc is invoked (outside the manager lock) when a grant countdown
// fires before an explicit Clear.
type ExpireFunc func(userID int64, role uint8)

type grant struct {
	role      uint8
	expiresAt time.Time
	timer     clock.Timer
	gen       uint64
}

// Manager owns the per-user grant table and expiry timers.
type Manager struct {
	mu       sync.Mutex
	clock    clock.Clock
	onExpire ExpireFunc
	grants   map[int64]*grant
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
		grants:   make(map[int64]*grant),
	}
}

// Grant records an elevated role for userID with a single-shot countdown.
// Any previous grant for the user is cancelled and replaced.
func (m *Manager) Grant(userID int64, role uint8, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prior, ok := m.grants[userID]; ok {
		prior.timer.Stop()
	}

	m.nextGen++
	gen := m.nextGen
	g := &grant{
		role:      role,
		expiresAt: m.clock.Now().Add(ttl),
		gen:       gen,
	}
	g.timer = m.clock.AfterFunc(ttl, func() {
		m.fire(userID, gen)
	})
	m.grants[userID] = g
}

// Clear drops the grant for userID and cancels its countdown. It reports
// the cleared role and whether a grant existed, so Clear racing a timer
// fire resolves to whichever ran first.
func (m *Manager) Clear(userID int64) (uint8, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.grants[userID]
	if !ok {
		return 0, false
	}
	g.timer.Stop()
	delete(m.grants, userID)
	return g.role, true
}

// Get returns the granted role for userID if the grant has not yet expired.
// The wall-clock deadline is checked as well as the timer so the grant
// reads as gone exactly at its expiry instant.
func (m *Manager) Get(userID int64) (uint8, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.grants[userID]
	if !ok {
		return 0, false
	}
	if !m.clock.Now().Before(g.expiresAt) {
		return 0, false
	}
	return g.role, true
}

func (m *Manager) fire(userID int64, gen uint64) {
	m.mu.Lock()
	g, ok := m.grants[userID]
	if !ok || g.gen != gen {
		m.mu.Unlock()
		return
	}
	delete(m.grants, userID)
	role := g.role
	m.mu.Unlock()

	if m.onExpire != nil {
		m.onExpire(userID, role)
	}
}
