// Package locks provides the process-local mutual-exclusion primitives
// spec.md §4.2 requires: a per-space consolidation lock, created lazily on
// first touch, and a single token-registry lock. Neither survives a process
// restart and neither coordinates across processes — Live Memory runs as
// one long-lived process, so this is sufficient (see Design Notes §9).
package locks

import "sync"

// Manager owns the space-id-keyed mutex map plus the token-registry mutex.
// The zero value is not usable; construct with NewManager.
type Manager struct {
	mu     sync.Mutex // guards spaces map membership only, not its mutexes
	spaces map[string]*sync.Mutex

	tokenMu sync.Mutex
}

// NewManager returns a Manager ready for use.
func NewManager() *Manager {
	return &Manager{spaces: make(map[string]*sync.Mutex)}
}

func (m *Manager) spaceLock(spaceID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.spaces[spaceID]
	if !ok {
		l = &sync.Mutex{}
		m.spaces[spaceID] = l
	}
	return l
}

// TryLockSpace attempts to acquire the consolidation lock for spaceID
// without blocking. It reports whether the lock was acquired; callers must
// call UnlockSpace when done, and only if acquired is true.
func (m *Manager) TryLockSpace(spaceID string) (acquired bool) {
	return m.spaceLock(spaceID).TryLock()
}

// UnlockSpace releases the consolidation lock for spaceID. Calling it
// without a matching successful TryLockSpace panics, same as sync.Mutex.
func (m *Manager) UnlockSpace(spaceID string) {
	m.spaceLock(spaceID).Unlock()
}

// IsSpaceHeld reports whether spaceID's consolidation lock is currently
// held, without acquiring it. Cheap: try-then-release-if-acquired.
func (m *Manager) IsSpaceHeld(spaceID string) bool {
	l := m.spaceLock(spaceID)
	if l.TryLock() {
		l.Unlock()
		return false
	}
	return true
}

// LockTokenRegistry acquires the single token-registry mutex, blocking
// until available. Every create/revoke/update of the token registry holds
// this for the duration of its read-modify-write cycle.
func (m *Manager) LockTokenRegistry() {
	m.tokenMu.Lock()
}

// UnlockTokenRegistry releases the token-registry mutex.
func (m *Manager) UnlockTokenRegistry() {
	m.tokenMu.Unlock()
}
