package chat

import (
	"context"
	"sync"
)

// sessionRegistry tracks the cancel functions of in-flight requests,
// grouped by session. A session may have several concurrent requests;
// each gets its own handle so that finishing one never clobbers
// another.
type sessionRegistry struct {
	mu     sync.Mutex
	next   uint64
	active map[string]map[uint64]context.CancelFunc
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{active: make(map[string]map[uint64]context.CancelFunc)}
}

// add registers cancel under sessionID and returns a release function
// that removes the handle. release is idempotent and safe to call after
// the session was already cancelled.
func (r *sessionRegistry) add(sessionID string, cancel context.CancelFunc) (release func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	id := r.next
	if r.active[sessionID] == nil {
		r.active[sessionID] = make(map[uint64]context.CancelFunc)
	}
	r.active[sessionID][id] = cancel

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if handles, ok := r.active[sessionID]; ok {
			delete(handles, id)
			if len(handles) == 0 {
				delete(r.active, sessionID)
			}
		}
	}
}

// cancelSession aborts every request registered under sessionID and
// drops the bookkeeping. Unknown sessions are a no-op, so calling it
// twice is harmless.
func (r *sessionRegistry) cancelSession(sessionID string) {
	r.mu.Lock()
	handles := r.active[sessionID]
	delete(r.active, sessionID)
	r.mu.Unlock()

	for _, cancel := range handles {
		cancel()
	}
}

// cancelAll aborts every registered request.
func (r *sessionRegistry) cancelAll() {
	r.mu.Lock()
	all := r.active
	r.active = make(map[string]map[uint64]context.CancelFunc)
	r.mu.Unlock()

	for _, handles := range all {
		for _, cancel := range handles {
			cancel()
		}
	}
}

// count reports the number of in-flight requests for sessionID.
func (r *sessionRegistry) count(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active[sessionID])
}
