package payments_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/internal/backendfake"
	"github.com/jrsteele09/go-garage-desk/internal/errors"
	"github.com/jrsteele09/go-garage-desk/payments"
	"github.com/jrsteele09/go-garage-desk/session"
	"github.com/jrsteele09/go-garage-desk/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) (*payments.Repository, *backendfake.Server) {
	t.Helper()
	var tick atomic.Int64
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	srv := backendfake.Start(backendfake.WithNowFunc(func() time.Time {
		return start.Add(time.Duration(tick.Add(1)) * time.Minute)
	}))
	t.Cleanup(srv.Close)
	return payments.NewRepository(transport.New(srv.ClientConfig(), session.NewStore())), srv
}

func TestRepository_Lifecycle(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	request := uuid.New()

	none, err := repo.ForRequest(ctx, request)
	require.NoError(t, err)
	require.Nil(t, none)

	first, err := repo.Create(ctx, payments.Payment{ServiceRequestID: request, Amount: 80, Status: payments.StatusPending})
	require.NoError(t, err)
	_, err = repo.Create(ctx, payments.Payment{ServiceRequestID: request, Amount: 20, Status: payments.StatusPending})
	require.NoError(t, err)
	other, err := repo.Create(ctx, payments.Payment{ServiceRequestID: uuid.New(), Amount: 300, Status: payments.StatusPending})
	require.NoError(t, err)

	got, err := repo.ForRequest(ctx, request)
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)

	forRequest, err := repo.ListByRequest(ctx, request)
	require.NoError(t, err)
	require.InDelta(t, 100, payments.Total(forRequest), 0.001)

	completed, err := repo.MarkCompleted(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, payments.StatusCompleted, completed.Status)
	_, err = repo.MarkFailed(ctx, other.ID)
	require.NoError(t, err)

	pending, err := repo.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	done, err := repo.Completed(ctx)
	require.NoError(t, err)
	require.Len(t, done, 1)
	failed, err := repo.Failed(ctx)
	require.NoError(t, err)
	require.Equal(t, other.ID, failed[0].ID)

	_, err = repo.MarkCompleted(ctx, uuid.New())
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestRepository_RangeAndRecent(t *testing.T) {
	repo, srv := newRepo(t)
	ctx := context.Background()
	for _, amount := range []float64{10, 25, 50, 75, 100} {
		_, err := repo.Create(ctx, payments.Payment{ServiceRequestID: uuid.New(), Amount: amount, Status: payments.StatusPending})
		require.NoError(t, err)
	}

	inRange, err := repo.ListByAmountRange(ctx, 25, 75)
	require.NoError(t, err)
	amounts := make([]float64, 0, len(inRange))
	for _, p := range inRange {
		amounts = append(amounts, p.Amount)
	}
	assert.ElementsMatch(t, []float64{25, 50, 75}, amounts)

	srv.ResetRequests()
	recent, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.InDelta(t, 100, recent[0].Amount, 0.001)
	require.InDelta(t, 75, recent[1].Amount, 0.001)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	require.Equal(t, "2", reqs[0].Query.Get("limit"), "the window is applied by the backend")
	require.Equal(t, "created_at.desc", reqs[0].Query.Get("order"))
}
