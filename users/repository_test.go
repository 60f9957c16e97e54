package users_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/internal/backendfake"
	"github.com/jrsteele09/go-garage-desk/internal/errors"
	"github.com/jrsteele09/go-garage-desk/session"
	"github.com/jrsteele09/go-garage-desk/transport"
	"github.com/jrsteele09/go-garage-desk/users"
	fakeuserrepo "github.com/jrsteele09/go-garage-desk/users/repofake"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *users.Repository {
	t.Helper()
	srv := backendfake.Start()
	t.Cleanup(srv.Close)
	return users.NewRepository(transport.New(srv.ClientConfig(), session.NewStore()))
}

func fullNames(list []users.User) []string {
	out := make([]string, len(list))
	for i, u := range list {
		out[i] = u.FullName
	}
	return out
}

func TestRepository_RegisterAndFind(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	authID := uuid.New()

	created, err := repo.Register(ctx, users.User{AuthUserID: authID, Email: " Jo@Example.com", FullName: "Jo", Role: session.RoleClient})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)
	require.Equal(t, "jo@example.com", created.Email)

	byEmail, err := repo.FindByEmail(ctx, "JO@example.com")
	require.NoError(t, err)
	require.Equal(t, created, *byEmail)

	byAuth, err := repo.FindByAuthUserID(ctx, authID)
	require.NoError(t, err)
	require.Equal(t, created, *byAuth)

	missing, err := repo.FindByAuthUserID(ctx, uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)

	_, err = repo.Register(ctx, users.User{AuthUserID: uuid.New(), Email: "jo@example.com", Role: session.RoleClient})
	require.ErrorIs(t, err, errors.ErrAlreadyExists)

	_, err = repo.Register(ctx, users.User{AuthUserID: authID, Email: "other@example.com", Role: session.RoleClient})
	require.ErrorIs(t, err, errors.ErrAlreadyExists, "a conflicting auth account is reported the same way")
}

func TestRepository_Listings(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	shop := uuid.New()
	otherShop := uuid.New()

	for _, u := range []users.User{
		{FullName: "Zed", Email: "zed@x.test", Role: session.RoleMechanic, ShopID: &shop},
		{FullName: "Amy", Email: "amy@x.test", Role: session.RoleMechanic, ShopID: &shop},
		{FullName: "Bob", Email: "bob@x.test", Role: session.RoleAdmin, ShopID: &shop},
		{FullName: "Cat", Email: "cat@x.test", Role: session.RoleMechanic, ShopID: &otherShop},
		{FullName: "Dan", Email: "dan@x.test", Role: session.RoleClient},
	} {
		u.AuthUserID = uuid.New()
		_, err := repo.Register(ctx, u)
		require.NoError(t, err)
	}

	mechanics, err := repo.ListByRole(ctx, session.RoleMechanic)
	require.NoError(t, err)
	require.Equal(t, []string{"Amy", "Cat", "Zed"}, fullNames(mechanics))

	staff, err := repo.ListByShop(ctx, shop)
	require.NoError(t, err)
	require.Equal(t, []string{"Amy", "Bob", "Zed"}, fullNames(staff))

	shopMechanics, err := repo.ListMechanics(ctx, shop)
	require.NoError(t, err)
	require.Equal(t, []string{"Amy", "Zed"}, fullNames(shopMechanics))

	found, err := repo.Search(ctx, "da")
	require.NoError(t, err)
	require.Equal(t, []string{"Dan"}, fullNames(found))

	exists, err := repo.EmailExists(ctx, "CAT@x.test")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestFakeUserRepo(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()
	ctx := context.Background()
	shop := uuid.New()

	created, err := repo.Register(ctx, users.User{AuthUserID: uuid.New(), Email: "Mo@X.test", FullName: "Mo", Role: session.RoleMechanic, ShopID: &shop})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	_, err = repo.Register(ctx, users.User{AuthUserID: uuid.New(), Email: "mo@x.test"})
	require.ErrorIs(t, err, errors.ErrAlreadyExists)

	_, err = repo.Create(ctx, users.User{AuthUserID: created.AuthUserID, Email: "new@x.test"})
	var remote *errors.RemoteRequestFailedError
	require.True(t, errors.As(err, &remote))
	require.True(t, remote.Conflict())

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created, *got)

	staff, err := repo.ListByShop(ctx, shop)
	require.NoError(t, err)
	require.Len(t, staff, 1)

	repo.Err = errors.ErrTransport
	_, err = repo.FindByEmail(ctx, "mo@x.test")
	require.ErrorIs(t, err, errors.ErrTransport)
}
