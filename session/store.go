package session

import (
	"sync"
	"time"
)

// Store holds at most one current Session. It is safe for concurrent use by
// foreground calls and background refreshes, and is injected into the
// transport and the auth manager rather than living in a global.
type Store struct {
	mu      sync.RWMutex
	current *Session
	nowFunc func() time.Time
}

type StoreOption func(*Store)

// WithNowFunc sets the clock used for validity checks (primarily for testing)
func WithNowFunc(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowFunc = now
	}
}

func NewStore(options ...StoreOption) *Store {
	s := &Store{nowFunc: time.Now}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Set replaces the current session.
func (s *Store) Set(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &session
}

// Current returns a copy of the current session. It never blocks on I/O.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// Clear removes the current session.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// Replace swaps in next only while the current session still carries
// refreshToken, and reports whether it did. A refresh that raced a sign-out
// or a new sign-in therefore never overwrites the newer state.
func (s *Store) Replace(refreshToken string, next Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.RefreshToken != refreshToken {
		return false
	}
	s.current = &next
	return true
}

// ClearIf removes the current session only while it still carries
// refreshToken.
func (s *Store) ClearIf(refreshToken string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.RefreshToken != refreshToken {
		return false
	}
	s.current = nil
	return true
}

// ValidAccessToken returns the current access token if a session exists and
// has not expired.
func (s *Store) ValidAccessToken() (string, bool) {
	current, ok := s.Current()
	if !ok || !current.IsValid(s.nowFunc()) {
		return "", false
	}
	return current.AccessToken, true
}

func (s *Store) Now() time.Time {
	return s.nowFunc()
}
