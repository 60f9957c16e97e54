package users

import (
	"context"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/internal/errors"
	"github.com/jrsteele09/go-garage-desk/query"
	"github.com/jrsteele09/go-garage-desk/resource"
	"github.com/jrsteele09/go-garage-desk/session"
)

var _ UserRepo = (*Repository)(nil)

// Repository is the backend-backed UserRepo.
type Repository struct {
	*resource.Repository[User]
}

func NewRepository(client resource.Transport, opts ...resource.Option) *Repository {
	return &Repository{Repository: resource.New[User](client, Resource, opts...)}
}

func (r *Repository) FindByAuthUserID(ctx context.Context, authUserID uuid.UUID) (*User, error) {
	return r.FindOneBy(ctx, "auth_user_id", authUserID)
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.FindOneBy(ctx, "email", NormalizeEmail(email))
}

func (r *Repository) ListByRole(ctx context.Context, role session.Role) ([]User, error) {
	return r.FilterAndOrder(ctx, query.Equal("role", string(role)), "full_name", query.Ascending)
}

func (r *Repository) ListByShop(ctx context.Context, shopID uuid.UUID) ([]User, error) {
	return r.FilterAndOrder(ctx, query.Equal("shop_id", shopID), "full_name", query.Ascending)
}

// ListMechanics returns the mechanics affiliated with a shop.
func (r *Repository) ListMechanics(ctx context.Context, shopID uuid.UUID) ([]User, error) {
	return r.List(ctx, query.New().
		Where(query.Equal("shop_id", shopID), query.Equal("role", string(session.RoleMechanic))).
		OrderBy("full_name", query.Ascending))
}

func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.ExistsBy(ctx, "email", NormalizeEmail(email))
}

// Register creates an identity, failing with ErrAlreadyExists when the email
// is taken.
func (r *Repository) Register(ctx context.Context, user User) (User, error) {
	user.Email = NormalizeEmail(user.Email)
	exists, err := r.EmailExists(ctx, user.Email)
	if err != nil {
		return User{}, err
	}
	if exists {
		return User{}, errors.Wrapf(errors.ErrAlreadyExists, "[Repository.Register] %s", user.Email)
	}

	created, err := r.Create(ctx, user)
	if err != nil {
		var remote *errors.RemoteRequestFailedError
		if errors.As(err, &remote) && remote.Conflict() {
			return User{}, errors.Wrapf(errors.ErrAlreadyExists, "[Repository.Register] %s", user.Email)
		}
		return User{}, err
	}
	return created, nil
}

// Search matches term against name and email.
func (r *Repository) Search(ctx context.Context, term string) ([]User, error) {
	return r.SearchMultiple(ctx, term, "full_name", "email")
}
