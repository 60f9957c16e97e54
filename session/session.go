package session

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// ExpirySkew is how long before its real expiry a session is treated as
// expired, absorbing clock skew and in-flight request latency.
const ExpirySkew = 60 * time.Second

// Session is the bearer-token pair held for the signed-in identity.
// ExpiresAt is always derived from IssuedAt + expires_in by New.
type Session struct {
	AccessToken  string    // Bearer token presented to the backend
	RefreshToken string    // Opaque token exchanged for a new pair
	TokenType    string    // Normally "bearer"
	IssuedAt     time.Time // Local time the pair was received
	ExpiresAt    time.Time // IssuedAt + expires_in
	AuthUserID   uuid.UUID // Authentication provider account id
	Identity     *Identity // Resolved once per sign-in/sign-up and kept across refreshes
}

// New creates a session whose expiry is derived from issuedAt.
func New(accessToken, refreshToken string, expiresIn time.Duration, issuedAt time.Time) Session {
	return Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		IssuedAt:     issuedAt,
		ExpiresAt:    issuedAt.Add(expiresIn),
	}
}

// IsExpired reports whether fewer than ExpirySkew remain at now.
func (s Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt.Add(-ExpirySkew))
}

func (s Session) IsValid(now time.Time) bool {
	return s.AccessToken != "" && !s.IsExpired(now)
}

// TimeUntilExpiry returns the time left before the real expiry, never negative.
func (s Session) TimeUntilExpiry(now time.Time) time.Duration {
	remaining := s.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// WithIdentity returns a copy of s carrying identity.
func (s Session) WithIdentity(identity *Identity) Session {
	s.Identity = identity
	return s
}

// OAuth2Token exposes the pair in golang.org/x/oauth2 form. The expiry
// includes the skew so oauth2 treats the token as stale at the same moment
// IsExpired does.
func (s Session) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: s.RefreshToken,
		Expiry:       s.ExpiresAt.Add(-ExpirySkew),
	}
}
