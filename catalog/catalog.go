// Package catalog is the repository for the priced services a shop offers.
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/query"
	"github.com/jrsteele09/go-garage-desk/resource"
)

const Resource = "services"

// Service is one catalog entry. Names are unique.
type Service struct {
	ID          uuid.UUID `json:"id,omitzero"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	BasePrice   float64   `json:"base_price"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

type Repository struct {
	*resource.Repository[Service]
}

// NewRepository creates the catalog repository. Upsert merges on name.
func NewRepository(client resource.Transport, opts ...resource.Option) *Repository {
	opts = append([]resource.Option{resource.WithNaturalKey("name")}, opts...)
	return &Repository{Repository: resource.New[Service](client, Resource, opts...)}
}

func (r *Repository) FindByName(ctx context.Context, name string) (*Service, error) {
	return r.FindOneBy(ctx, "name", name)
}

// Search matches term against name and description.
func (r *Repository) Search(ctx context.Context, term string) ([]Service, error) {
	return r.SearchMultiple(ctx, term, "name", "description")
}

// ListByPriceRange returns services priced within [low, high].
func (r *Repository) ListByPriceRange(ctx context.Context, low, high float64) ([]Service, error) {
	return r.Range(ctx, "base_price", low, high)
}

func (r *Repository) ListOrderedByPrice(ctx context.Context, direction query.Direction) ([]Service, error) {
	return r.AllOrdered(ctx, "base_price", direction)
}

func (r *Repository) ListOrderedByName(ctx context.Context) ([]Service, error) {
	return r.AllOrdered(ctx, "name", query.Ascending)
}

// ListAffordable returns services strictly cheaper than maxPrice, cheapest
// first.
func (r *Repository) ListAffordable(ctx context.Context, maxPrice float64) ([]Service, error) {
	return r.FilterAndOrder(ctx, query.LessThan("base_price", maxPrice), "base_price", query.Ascending)
}

func (r *Repository) NameExists(ctx context.Context, name string) (bool, error) {
	return r.ExistsBy(ctx, "name", name)
}
