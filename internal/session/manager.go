package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/mtlprog/eventpass/internal/domain"
)

// Manager keeps one Session per (asset DID, account).
//
// Sessions idle for longer than idleTTL are evicted, and at most maxSessions
// are kept; inserting beyond that evicts the least recently used one. A new
// session whose first load fails is not kept.
type Manager struct {
	assets      AssetSource
	resolver    SlotResolver
	idleTTL     time.Duration
	maxSessions int
	now         func() time.Time

	mu        sync.Mutex
	sessions  map[string]*entry
	lastSweep time.Time
}

type entry struct {
	session  *Session
	lastUsed time.Time
}

// NewManager creates a Manager. idleTTL <= 0 disables idle eviction and
// maxSessions <= 0 disables the size limit.
func NewManager(assets AssetSource, resolver SlotResolver, idleTTL time.Duration, maxSessions int) *Manager {
	return &Manager{
		assets:      assets,
		resolver:    resolver,
		idleTTL:     idleTTL,
		maxSessions: maxSessions,
		now:         time.Now,
		sessions:    make(map[string]*entry),
	}
}

func sessionKey(did, account string) string {
	return did + "|" + strings.ToLower(account)
}

// Get returns the session for did and account, creating it if needed.
// Accounts are compared case-insensitively.
func (m *Manager) Get(did, account string) (*Session, bool) {
	key := sessionKey(did, account)
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweep(now)

	if e, ok := m.sessions[key]; ok {
		e.lastUsed = now
		return e.session, false
	}
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		m.evictOldest()
	}
	s := New(did, strings.ToLower(account), m.assets, m.resolver)
	m.sessions[key] = &entry{session: s, lastUsed: now}
	return s, true
}

// Refresh refreshes the session for did and account. A session that has never
// loaded successfully is dropped when its refresh fails.
func (m *Manager) Refresh(ctx context.Context, did, account string) (State, error) {
	s, _ := m.Get(did, account)
	state, err := s.Refresh(ctx)
	if err != nil && !errors.Is(err, ErrSuperseded) {
		m.discard(did, account, s)
	}
	return state, err
}

// Load returns the last applied state of the session, refreshing it first if
// it has never been loaded.
func (m *Manager) Load(ctx context.Context, did, account string) (State, error) {
	s, _ := m.Get(did, account)
	if state := s.State(); state.Generation > 0 {
		return state, nil
	}

	state, err := m.Refresh(ctx, did, account)
	if errors.Is(err, ErrSuperseded) {
		if state = s.State(); state.Generation > 0 {
			return state, nil
		}
		return State{}, domain.NewError(domain.KindTransient, err)
	}
	return state, err
}

// Len returns the number of sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// discard removes s if it is still the stored session and has no applied state.
func (m *Manager) discard(did, account string, s *Session) {
	if s.State().Generation > 0 {
		return
	}
	key := sessionKey(did, account)

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[key]; ok && e.session == s {
		delete(m.sessions, key)
	}
}

// sweep drops idle sessions, at most once per idleTTL. Caller holds mu.
func (m *Manager) sweep(now time.Time) {
	if m.idleTTL <= 0 || now.Sub(m.lastSweep) < m.idleTTL {
		return
	}
	m.lastSweep = now
	for key, e := range m.sessions {
		if now.Sub(e.lastUsed) > m.idleTTL {
			delete(m.sessions, key)
		}
	}
}

// evictOldest drops the least recently used session. Caller holds mu.
func (m *Manager) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, e := range m.sessions {
		if oldestKey == "" || e.lastUsed.Before(oldest) {
			oldestKey, oldest = key, e.lastUsed
		}
	}
	delete(m.sessions, oldestKey)
}
