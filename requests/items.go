package requests

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/internal/errors"
	"github.com/jrsteele09/go-garage-desk/query"
	"github.com/jrsteele09/go-garage-desk/resource"
)

// Source is who added an item to a request.
type Source string

const (
	SourceClient   Source = "client"
	SourceMechanic Source = "mechanic"
)

// Item is one catalog service on a request.
type Item struct {
	ID               uuid.UUID `json:"id,omitzero"`
	ServiceRequestID uuid.UUID `json:"service_request_id"`
	ServiceID        uuid.UUID `json:"service_id"`
	Quantity         int       `json:"quantity"`
	PriceEstimated   float64   `json:"price_estimated"`
	PriceFinal       *float64  `json:"price_final"`
	Source           Source    `json:"source"`
	Approved         bool      `json:"is_approved"`
	CreatedAt        time.Time `json:"created_at,omitzero"`
}

// Subtotal is the estimated price times quantity.
func (i Item) Subtotal() float64 {
	return i.PriceEstimated * float64(i.Quantity)
}

type ItemRepository struct {
	*resource.Repository[Item]
}

func NewItemRepository(client resource.Transport, opts ...resource.Option) *ItemRepository {
	return &ItemRepository{Repository: resource.New[Item](client, ItemsResource, opts...)}
}

func (r *ItemRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]Item, error) {
	return r.FilterAndOrder(ctx, query.Equal("service_request_id", requestID), "created_at", query.Ascending)
}

func (r *ItemRepository) ListByService(ctx context.Context, serviceID uuid.UUID) ([]Item, error) {
	return r.FindBy(ctx, "service_id", serviceID)
}

func (r *ItemRepository) ListBySource(ctx context.Context, source Source) ([]Item, error) {
	return r.FindBy(ctx, "source", string(source))
}

func (r *ItemRepository) ApprovedItems(ctx context.Context, requestID uuid.UUID) ([]Item, error) {
	return r.List(ctx, query.New().
		Where(query.Equal("service_request_id", requestID), query.Equal("is_approved", true)).
		OrderBy("created_at", query.Ascending))
}

// PendingItems returns the items not yet approved. Rows with no approval
// flag count as pending, so the split happens client-side.
func (r *ItemRepository) PendingItems(ctx context.Context, requestID uuid.UUID) ([]Item, error) {
	items, err := r.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	pending := make([]Item, 0, len(items))
	for _, item := range items {
		if !item.Approved {
			pending = append(pending, item)
		}
	}
	return pending, nil
}

func (r *ItemRepository) Approve(ctx context.Context, id uuid.UUID) (Item, error) {
	item, err := r.Patch(ctx, id, map[string]any{"is_approved": true})
	if err != nil {
		return Item{}, errors.Wrapf(err, "[ItemRepository.Approve] item %s", id)
	}
	return item, nil
}

func (r *ItemRepository) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) (Item, error) {
	if quantity < 1 {
		return Item{}, errors.InvalidQuery("quantity must be positive, got %d", quantity)
	}
	item, err := r.Patch(ctx, id, map[string]any{"quantity": quantity})
	if err != nil {
		return Item{}, errors.Wrapf(err, "[ItemRepository.UpdateQuantity] item %s", id)
	}
	return item, nil
}

// EstimatedTotal sums the subtotals of items.
func EstimatedTotal(items []Item) float64 {
	var total float64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}
