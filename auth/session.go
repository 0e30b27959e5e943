// Package auth is the session collaborator: it owns the current identity,
// persists the session token between runs, and reports identity changes.
package auth

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/asifanwar1/taskothon/domain"
)

const sessionTokenKey = "sessionToken"

// TokenStore persists the session token. Satisfied by kv.Store.
type TokenStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Service implements the auth/session collaborator contract.
type Service struct {
	validator *Validator
	tokens    TokenStore
	logger    *log.Logger

	mu        sync.Mutex
	current   *domain.Identity
	listeners map[int]func(*domain.Identity)
	nextID    int
}

// NewService creates the session service and restores any persisted session.
// A token that fails to load or validate leaves the service unauthenticated;
// it never fails construction.
func NewService(ctx context.Context, validator *Validator, tokens TokenStore, logger *log.Logger) *Service {
	s := &Service{
		validator: validator,
		tokens:    tokens,
		logger:    logger,
		listeners: make(map[int]func(*domain.Identity)),
	}

	token, err := tokens.Get(ctx, sessionTokenKey)
	if err != nil {
		logger.WithError(err).Warn("session restore: token store unavailable")
		return s
	}
	if token == "" {
		return s
	}
	id, err := validator.IdentityFromToken(token)
	if err != nil {
		logger.WithError(err).Info("session restore: stored token rejected")
		return s
	}
	s.current = id
	return s
}

// CurrentIdentity returns the authenticated principal, or nil. Synchronous,
// never fails.
func (s *Service) CurrentIdentity() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// OnIdentityChanged registers cb for session changes. The returned
// unsubscribe is idempotent.
func (s *Service) OnIdentityChanged(cb func(*domain.Identity)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = cb
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

// BeginSession validates the token, persists it, and publishes the new
// identity. Failures are reported as SyncError.
func (s *Service) BeginSession(ctx context.Context, token string) error {
	id, err := s.validator.IdentityFromToken(token)
	if err != nil {
		return &domain.SyncError{Op: "begin", Err: err}
	}
	if err := s.tokens.Set(ctx, sessionTokenKey, token); err != nil {
		return &domain.SyncError{Op: "begin", Err: err}
	}
	s.setIdentity(id)
	return nil
}

// EndSession clears the persisted token and publishes the signed-out state.
func (s *Service) EndSession(ctx context.Context) error {
	if err := s.tokens.Delete(ctx, sessionTokenKey); err != nil {
		return &domain.SyncError{Op: "end", Err: err}
	}
	s.setIdentity(nil)
	return nil
}

func (s *Service) setIdentity(id *domain.Identity) {
	s.mu.Lock()
	s.current = id
	cbs := make([]func(*domain.Identity), 0, len(s.listeners))
	for _, cb := range s.listeners {
		cbs = append(cbs, cb)
	}
	s.mu.Unlock()

	for _, cb := range cbs {
		cb(id)
	}
}
