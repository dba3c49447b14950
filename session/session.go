// Package session holds the console's authenticated state: the bearer token,
// the identity derived from it and the active chat conversation.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Session is safe for concurrent use; chat frames read the active
// conversation from transport goroutines.
type Session struct {
	mu       sync.RWMutex
	store    Store
	token    string
	identity Identity
	hasID    bool
	convID   *int64
}

// New returns an empty session backed by store.
func New(store Store) *Session {
	if store == nil {
		store = &memoryStore{}
	}
	return &Session{store: store}
}

// Restore loads the persisted token, if any, and derives the identity.
func Restore(ctx context.Context, store Store) (*Session, error) {
	s := New(store)
	tok, err := s.store.Load(ctx)
	if err != nil {
		return s, fmt.Errorf("load token: %w", err)
	}
	s.apply(tok)
	return s, nil
}

// SetToken replaces the token, persists it and re-derives the identity.
// The in-memory token changes even if persisting fails.
func (s *Session) SetToken(ctx context.Context, token string) error {
	s.apply(token)
	if err := s.store.Save(ctx, token); err != nil {
		log.Warn().Err(err).Msg("[session] persist token failed")
		return fmt.Errorf("persist token: %w", err)
	}
	return nil
}

// Clear resets the token to empty.
func (s *Session) Clear(ctx context.Context) error {
	return s.SetToken(ctx, "")
}

func (s *Session) apply(token string) {
	id, ok := ParseIdentity(token)
	s.mu.Lock()
	s.token = token
	s.identity = id
	s.hasID = ok
	s.mu.Unlock()
}

// Token implements api.TokenSource.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a token is present.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Email returns the subject decoded from the token.
func (s *Session) Email() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.Subject, s.hasID
}

// EmailOr returns the decoded subject or fallback.
func (s *Session) EmailOr(fallback string) string {
	if e, ok := s.Email(); ok {
		return e
	}
	return fallback
}

// ExpiresAt returns the token expiry when the claims carry one.
func (s *Session) ExpiresAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.ExpiresAt, !s.identity.ExpiresAt.IsZero()
}

// Conversation returns the active conversation id.
func (s *Session) Conversation() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.convID == nil {
		return 0, false
	}
	return *s.convID, true
}

// SetConversation makes id the active conversation used to stamp outgoing
// messages and filter incoming ones.
func (s *Session) SetConversation(id int64) {
	s.mu.Lock()
	s.convID = &id
	s.mu.Unlock()
}

// ClearConversation removes the conversation filter.
func (s *Session) ClearConversation() {
	s.mu.Lock()
	s.convID = nil
	s.mu.Unlock()
}

// Close closes the underlying store.
func (s *Session) Close() error {
	return s.store.Close()
}
