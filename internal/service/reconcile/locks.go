package reconcile_service

import (
	"sync"

	"github.com/google/uuid"
)

type pairKey struct {
	eventID  uuid.UUID
	playerID uuid.UUID
}

// pairLocks serializes saves per (event, player) pair. Two saves for the
// same pair queue behind each other; saves for different pairs do not
// contend. Entries are reference-counted and removed when idle.
type pairLocks struct {
	mu    sync.Mutex
	pairs map[pairKey]*pairLock
}

type pairLock struct {
	mu   sync.Mutex
	refs int
}

func newPairLocks() *pairLocks {
	return &pairLocks{pairs: make(map[pairKey]*pairLock)}
}

func (l *pairLocks) lock(key pairKey) {
	l.mu.Lock()
	entry, ok := l.pairs[key]
	if !ok {
		entry = &pairLock{}
		l.pairs[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

func (l *pairLocks) unlock(key pairKey) {
	l.mu.Lock()
	entry := l.pairs[key]
	entry.refs--
	if entry.refs == 0 {
		delete(l.pairs, key)
	}
	l.mu.Unlock()

	entry.mu.Unlock()
}
