package reconciler

import (
	"sync"
)

// handleLocks serializes work per order handle. The order row is the unit of
// consistency; two webhook deliveries for the same handle must not interleave
// or one of them loses its update. Deliveries for different handles proceed
// in parallel.
type handleLocks struct {
	mu    sync.Mutex
	locks map[string]*handleLock
}

type handleLock struct {
	mu   sync.Mutex
	refs int
}

func newHandleLocks() *handleLocks {
	return &handleLocks{
		locks: make(map[string]*handleLock),
	}
}

// Lock acquires the lock for a handle, creating it on first use.
func (h *handleLocks) Lock(handle string) {
	h.mu.Lock()
	l, ok := h.locks[handle]
	if !ok {
		l = &handleLock{}
		h.locks[handle] = l
	}
	l.refs++
	h.mu.Unlock()

	l.mu.Lock()
}

// Unlock releases the lock for a handle and frees it once nothing waits on it.
func (h *handleLocks) Unlock(handle string) {
	h.mu.Lock()
	l, ok := h.locks[handle]
	if !ok {
		h.mu.Unlock()
		return
	}
	l.refs--
	if l.refs == 0 {
		delete(h.locks, handle)
	}
	h.mu.Unlock()

	l.mu.Unlock()
}
