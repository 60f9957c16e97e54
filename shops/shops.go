// Package shops is the repository for mechanic shops.
package shops

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/query"
	"github.com/jrsteele09/go-garage-desk/resource"
)

const Resource = "mechanic_shops"

type Shop struct {
	ID        uuid.UUID `json:"id,omitzero"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

type Repository struct {
	*resource.Repository[Shop]
}

func NewRepository(client resource.Transport, opts ...resource.Option) *Repository {
	return &Repository{Repository: resource.New[Shop](client, Resource, opts...)}
}

func (r *Repository) FindByName(ctx context.Context, name string) (*Shop, error) {
	return r.FindOneBy(ctx, "name", name)
}

// ListByCity returns the shops of a city ordered by name.
func (r *Repository) ListByCity(ctx context.Context, city string) ([]Shop, error) {
	return r.FilterAndOrder(ctx, query.Equal("city", city), "name", query.Ascending)
}

// Search matches term against name, address and city.
func (r *Repository) Search(ctx context.Context, term string) ([]Shop, error) {
	return r.SearchMultiple(ctx, term, "name", "address", "city")
}
