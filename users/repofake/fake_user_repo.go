package fakeuserrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/internal/errors"
	"github.com/jrsteele09/go-garage-desk/session"
	"github.com/jrsteele09/go-garage-desk/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

// FakeUserRepo is an in-memory UserRepo. Err, when set, is returned by every
// call.
type FakeUserRepo struct {
	users map[uuid.UUID]users.User
	lock  sync.RWMutex
	Err   error
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{users: make(map[uuid.UUID]users.User)}
}

func (ur *FakeUserRepo) Get(_ context.Context, id uuid.UUID) (*users.User, error) {
	return ur.find(func(u users.User) bool { return u.ID == id })
}

func (ur *FakeUserRepo) Create(_ context.Context, user users.User) (users.User, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()
	if ur.Err != nil {
		return users.User{}, ur.Err
	}

	user.Email = users.NormalizeEmail(user.Email)
	for _, existing := range ur.users {
		if existing.Email == user.Email || existing.AuthUserID == user.AuthUserID {
			return users.User{}, &errors.RemoteRequestFailedError{Status: 409, Body: "duplicate key"}
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	ur.users[user.ID] = user
	return user, nil
}

func (ur *FakeUserRepo) FindByAuthUserID(_ context.Context, authUserID uuid.UUID) (*users.User, error) {
	return ur.find(func(u users.User) bool { return u.AuthUserID == authUserID })
}

func (ur *FakeUserRepo) FindByEmail(_ context.Context, email string) (*users.User, error) {
	email = users.NormalizeEmail(email)
	return ur.find(func(u users.User) bool { return u.Email == email })
}

func (ur *FakeUserRepo) ListByRole(_ context.Context, role session.Role) ([]users.User, error) {
	return ur.filter(func(u users.User) bool { return u.Role == role })
}

func (ur *FakeUserRepo) ListByShop(_ context.Context, shopID uuid.UUID) ([]users.User, error) {
	return ur.filter(func(u users.User) bool { return u.ShopID != nil && *u.ShopID == shopID })
}

func (ur *FakeUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	u, err := ur.FindByEmail(ctx, email)
	return u != nil, err
}

func (ur *FakeUserRepo) Register(ctx context.Context, user users.User) (users.User, error) {
	exists, err := ur.EmailExists(ctx, user.Email)
	if err != nil {
		return users.User{}, err
	}
	if exists {
		return users.User{}, errors.ErrAlreadyExists
	}
	return ur.Create(ctx, user)
}

// Len returns the number of stored identities.
func (ur *FakeUserRepo) Len() int {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return len(ur.users)
}

func (ur *FakeUserRepo) find(match func(users.User) bool) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	if ur.Err != nil {
		return nil, ur.Err
	}
	for _, u := range ur.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, nil
}

func (ur *FakeUserRepo) filter(match func(users.User) bool) ([]users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	if ur.Err != nil {
		return nil, ur.Err
	}
	out := make([]users.User, 0)
	for _, u := range ur.users {
		if match(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FullName < out[j].FullName
	})
	return out, nil
}
