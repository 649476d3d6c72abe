package relay

import "sync"

// Registry tracks active relay sessions for diagnostics and shutdown. It has
// no authority over individual session state; sessions register on start and
// unregister from their own teardown path.
//
// The mu mutex makes the draining check and the map insert atomic in
// Register, so no session can slip in after StartDraining returns.
type Registry struct {
	mu       sync.Mutex
	draining bool
	sessions map[*Session]struct{}
	wg       sync.WaitGroup
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[*Session]struct{})}
}

// Register adds a session. Returns false if the registry is draining, meaning
// no new sessions should be accepted.
func (r *Registry) Register(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.draining {
		return false
	}
	r.sessions[s] = struct{}{}
	r.wg.Add(1)
	return true
}

// Unregister removes a session. Must be called exactly once per successful
// Register; the session's teardown sync.Once guarantees that.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s]; !ok {
		return
	}
	delete(r.sessions, s)
	r.wg.Done()
}

// ForEach visits every active session. The visitor runs under the registry
// lock; it must not call Register or Unregister.
func (r *Registry) ForEach(visit func(*Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for s := range r.sessions {
		visit(s)
	}
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// StartDraining makes future Register calls fail so in-flight sessions can
// finish while no new ones start.
func (r *Registry) StartDraining() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draining = true
}

// IsDraining reports whether the registry is in draining mode.
func (r *Registry) IsDraining() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draining
}

// CloseAll force-closes every active session. Used at process shutdown after
// the drain timeout expires.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	active := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		active = append(active, s)
	}
	r.mu.Unlock()

	// teardown unregisters, so close outside the lock
	for _, s := range active {
		s.Close()
	}
}

// Wait blocks until all registered sessions have unregistered.
func (r *Registry) Wait() {
	r.wg.Wait()
}
