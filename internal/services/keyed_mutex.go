package services

import (
	"fmt"
	"sync"
)

// KeyedMutex serializes work per key so concurrent lifecycle transitions of
// the same resource cannot interleave. One instance is shared by every
// service that transitions drift events; a per-service instance would let a
// scan refresh race a user resolve. Entries are reference counted and
// removed once the last holder unlocks.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates an empty lock set
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock acquires the mutex for the given key, creating it on first use
func (k *KeyedMutex) Lock(key string) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
}

// Unlock releases the mutex for the given key
func (k *KeyedMutex) Unlock(key string) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		k.mu.Unlock()
		panic(fmt.Sprintf("unlock of unheld key %q", key))
	}
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	l.mu.Unlock()
}

// resourceKey builds the lock key for a resource within an environment
func resourceKey(environmentID int64, resourceID string) string {
	return fmt.Sprintf("%d/%s", environmentID, resourceID)
}
