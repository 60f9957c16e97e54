package auth

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/session"
	"github.com/jrsteele09/go-garage-desk/transport"
	"github.com/pkg/errors"

	apperrors "github.com/jrsteele09/go-garage-desk/internal/errors"
)

// Account is the authentication provider's view of the signed-in user.
type Account struct {
	ID        uuid.UUID      `json:"id"`
	Email     string         `json:"email"`
	Metadata  map[string]any `json:"user_metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

// tokenResponse is the Auth endpoint's session payload. Some deployments
// nest it under "session".
type tokenResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int64          `json:"expires_in"`
	User         *Account       `json:"user"`
	Session      *tokenResponse `json:"session"`
}

func decodeTokenResponse(resp *transport.Response) (tokenResponse, error) {
	var tr tokenResponse
	if err := transport.DecodeObject(resp, &tr); err != nil {
		return tokenResponse{}, err
	}
	if tr.AccessToken == "" && tr.Session != nil {
		nested := *tr.Session
		if nested.User == nil {
			nested.User = tr.User
		}
		return nested, nil
	}
	return tr, nil
}

// newSession derives expiry from issuedAt + expires_in. When expires_in is
// absent the token's own exp claim supplies it.
func newSession(tr tokenResponse, issuedAt time.Time) (session.Session, error) {
	if tr.AccessToken == "" {
		return session.Session{}, &apperrors.AuthFailedError{Reason: "response carries no access token"}
	}

	claims := jwt.MapClaims{}
	_, _, parseErr := jwt.NewParser().ParseUnverified(tr.AccessToken, claims)

	expiresIn := time.Duration(tr.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		if parseErr != nil {
			return session.Session{}, &apperrors.AuthFailedError{Reason: "token response has no expiry", Cause: parseErr}
		}
		exp, err := claims.GetExpirationTime()
		if err != nil || exp == nil {
			return session.Session{}, &apperrors.AuthFailedError{Reason: "token response has no expiry"}
		}
		expiresIn = exp.Sub(issuedAt)
	}

	s := session.New(tr.AccessToken, tr.RefreshToken, expiresIn, issuedAt)
	if tr.TokenType != "" {
		s.TokenType = tr.TokenType
	}

	if tr.User != nil && tr.User.ID != uuid.Nil {
		s.AuthUserID = tr.User.ID
		return s, nil
	}
	if parseErr == nil {
		if sub, err := claims.GetSubject(); err == nil {
			if id, err := uuid.Parse(sub); err == nil {
				s.AuthUserID = id
				return s, nil
			}
		}
	}
	return session.Session{}, &apperrors.AuthFailedError{Reason: "response does not identify the account"}
}

// authFailure turns an Auth endpoint failure into AuthFailed, keeping the
// underlying transport or remote error reachable.
func authFailure(err error, fallback string) error {
	var remote *apperrors.RemoteRequestFailedError
	if errors.As(err, &remote) {
		return &apperrors.AuthFailedError{Reason: reasonFrom(remote.Body, fallback), Cause: err}
	}
	return &apperrors.AuthFailedError{Reason: fallback, Cause: err}
}

func reasonFrom(body, fallback string) string {
	var payload map[string]any
	if json.Unmarshal([]byte(body), &payload) != nil {
		return fallback
	}
	for _, key := range []string{"error_description", "msg", "message", "error"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	return fallback
}
