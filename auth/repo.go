package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/session"
	"github.com/jrsteele09/go-garage-desk/transport"
)

// IdentityRepo resolves and creates application identities. users.Repo
// implements it.
type IdentityRepo interface {
	FindByAuthUserID(ctx context.Context, authUserID uuid.UUID) (*session.Identity, error)
	Create(ctx context.Context, identity session.Identity) (session.Identity, error)
}

// AuthClient performs exchanges with the Auth endpoint. transport.Client
// implements it.
type AuthClient interface {
	Auth(ctx context.Context, req transport.AuthRequest) (*transport.Response, error)
}

var _ AuthClient = (*transport.Client)(nil)
