package vehicles_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/internal/backendfake"
	"github.com/jrsteele09/go-garage-desk/internal/errors"
	"github.com/jrsteele09/go-garage-desk/query"
	"github.com/jrsteele09/go-garage-desk/session"
	"github.com/jrsteele09/go-garage-desk/transport"
	"github.com/jrsteele09/go-garage-desk/vehicles"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *vehicles.Repository {
	t.Helper()
	var tick atomic.Int64
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	srv := backendfake.Start(backendfake.WithNowFunc(func() time.Time {
		return start.Add(time.Duration(tick.Add(1)) * time.Second)
	}))
	t.Cleanup(srv.Close)
	return vehicles.NewRepository(transport.New(srv.ClientConfig(), session.NewStore()))
}

func TestRepository_ListByClientNewestFirst(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	owner := uuid.New()

	for _, v := range []vehicles.Vehicle{
		{ClientID: owner, Make: "Ford", Model: "Focus", Year: 2015, LicensePlate: "ab12 cde"},
		{ClientID: uuid.New(), Make: "Fiat", Model: "Panda", LicensePlate: "XY99ZZZ"},
		{ClientID: owner, Make: "Honda", Model: "Jazz", Year: 2021, LicensePlate: "GH34IJK"},
	} {
		_, err := repo.Add(ctx, v)
		require.NoError(t, err)
	}

	owned, err := repo.ListByClient(ctx, owner)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	require.Equal(t, "Honda Jazz (2021)", owned[0].Description())
	require.Equal(t, "Ford Focus (2015)", owned[1].Description())
}

func TestRepository_LicensePlate(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	added, err := repo.Add(ctx, vehicles.Vehicle{ClientID: uuid.New(), Make: "Ford", Model: "Ka", LicensePlate: " ab12 cde "})
	require.NoError(t, err)
	require.Equal(t, "AB12CDE", added.LicensePlate)

	found, err := repo.FindByLicensePlate(ctx, "Ab12 CDE")
	require.NoError(t, err)
	require.Equal(t, added, *found)

	_, err = repo.Add(ctx, vehicles.Vehicle{ClientID: uuid.New(), LicensePlate: "AB12CDE"})
	var remote *errors.RemoteRequestFailedError
	require.True(t, errors.As(err, &remote))
	require.True(t, remote.Conflict())

	upserted, err := repo.Upsert(ctx, vehicles.Vehicle{ID: added.ID, ClientID: added.ClientID, Make: "Ford", Model: "Ka+", LicensePlate: "AB12CDE"})
	require.NoError(t, err)
	require.Equal(t, added.ID, upserted.ID)
	require.Equal(t, "Ka+", upserted.Model)

	count, err := repo.Count(ctx, query.New())
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
