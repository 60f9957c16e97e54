// Package payments is the repository for service request payments.
package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/internal/errors"
	"github.com/jrsteele09/go-garage-desk/query"
	"github.com/jrsteele09/go-garage-desk/resource"
)

const Resource = "payments"

type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
)

type Payment struct {
	ID               uuid.UUID `json:"id,omitzero"`
	ServiceRequestID uuid.UUID `json:"service_request_id"`
	Amount           float64   `json:"amount"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"created_at,omitzero"`
}

type Repository struct {
	*resource.Repository[Payment]
}

func NewRepository(client resource.Transport, opts ...resource.Option) *Repository {
	return &Repository{Repository: resource.New[Payment](client, Resource, opts...)}
}

func (r *Repository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]Payment, error) {
	return r.FilterAndOrder(ctx, query.Equal("service_request_id", requestID), "created_at", query.Ascending)
}

// ForRequest returns the first payment raised for a request, or nil.
func (r *Repository) ForRequest(ctx context.Context, requestID uuid.UUID) (*Payment, error) {
	items, err := r.List(ctx, query.New().
		Where(query.Equal("service_request_id", requestID)).
		OrderBy("created_at", query.Ascending).
		Limit(1))
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

func (r *Repository) ListByStatus(ctx context.Context, status Status) ([]Payment, error) {
	return r.FindBy(ctx, "status", string(status))
}

func (r *Repository) Pending(ctx context.Context) ([]Payment, error) {
	return r.ListByStatus(ctx, StatusPending)
}

func (r *Repository) Completed(ctx context.Context) ([]Payment, error) {
	return r.ListByStatus(ctx, StatusCompleted)
}

func (r *Repository) Failed(ctx context.Context) ([]Payment, error) {
	return r.ListByStatus(ctx, StatusFailed)
}

// ListByAmountRange returns payments with amount within [low, high].
func (r *Repository) ListByAmountRange(ctx context.Context, low, high float64) ([]Payment, error) {
	return r.Range(ctx, "amount", low, high)
}

// UpdateStatus sets a payment's status. A missing payment is ErrNotFound.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (Payment, error) {
	p, err := r.Patch(ctx, id, map[string]any{"status": string(status)})
	if err != nil {
		return Payment{}, errors.Wrapf(err, "[Repository.UpdateStatus] payment %s", id)
	}
	return p, nil
}

func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID) (Payment, error) {
	return r.UpdateStatus(ctx, id, StatusCompleted)
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) (Payment, error) {
	return r.UpdateStatus(ctx, id, StatusFailed)
}

// Recent returns the newest payments, ordered and limited by the backend.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Payment, error) {
	return r.List(ctx, query.New().OrderBy("created_at", query.Descending).Limit(limit))
}

// Total sums the amounts of payments.
func Total(payments []Payment) float64 {
	var total float64
	for _, p := range payments {
		total += p.Amount
	}
	return total
}
