package store

import (
	"sync"

	"github.com/asifanwar1/taskothon/domain"
)

// SessionSource is the slice of the auth collaborator the identity store
// needs. Satisfied by auth.Service.
type SessionSource interface {
	CurrentIdentity() *domain.Identity
	OnIdentityChanged(func(*domain.Identity)) func()
}

// IdentityStore tracks the authenticated principal and notifies subscribers
// when the logical identity changes. It registers a single change listener
// with the auth collaborator on first use and keeps it for the life of the
// process: identity must stay current even while no UI is mounted.
type IdentityStore struct {
	source SessionSource

	mu          sync.Mutex
	initialized bool
	registered  bool
	current     *domain.Identity
	listeners   map[int]func()
	nextID      int
}

// NewIdentityStore creates an uninitialized store; the collaborator is not
// queried until the first Snapshot or Subscribe.
func NewIdentityStore(source SessionSource) *IdentityStore {
	return &IdentityStore{
		source:    source,
		listeners: make(map[int]func()),
	}
}

// Snapshot returns the current identity, or nil when unauthenticated.
// It never fails: an unavailable collaborator reads as signed out.
func (s *IdentityStore) Snapshot() *domain.Identity {
	s.ensureInitialized()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe registers listener for identity changes and returns an
// idempotent unsubscribe.
func (s *IdentityStore) Subscribe(listener func()) func() {
	s.ensureInitialized()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// ensureInitialized queries the collaborator once and registers the
// process-lifetime change listener. Completion of initialization counts as
// a notifiable change.
func (s *IdentityStore) ensureInitialized() {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return
	}
	s.initialized = true
	s.current = s.source.CurrentIdentity()
	register := !s.registered
	s.registered = true
	s.mu.Unlock()

	if register {
		// Never torn down.
		s.source.OnIdentityChanged(s.handleChange)
	}
	s.notifyAll()
}

func (s *IdentityStore) handleChange(id *domain.Identity) {
	s.mu.Lock()
	changed := !s.initialized || !domain.SameUser(s.current, id)
	s.current = id
	s.initialized = true
	s.mu.Unlock()

	// Display-field churn under the same user id is not worth a render.
	if changed {
		s.notifyAll()
	}
}

func (s *IdentityStore) notifyAll() {
	s.mu.Lock()
	cbs := make([]func(), 0, len(s.listeners))
	for _, cb := range s.listeners {
		cbs = append(cbs, cb)
	}
	s.mu.Unlock()

	for _, cb := range cbs {
		cb()
	}
}
