package users

import (
	"context"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/session"
)

// UserRepo is the identity store used by the auth manager and by screens
// that list staff and clients.
type UserRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*User, error)
	Create(ctx context.Context, user User) (User, error)
	FindByAuthUserID(ctx context.Context, authUserID uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ListByRole(ctx context.Context, role session.Role) ([]User, error)
	ListByShop(ctx context.Context, shopID uuid.UUID) ([]User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Register(ctx context.Context, user User) (User, error)
}
