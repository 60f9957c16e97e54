// Package vehicles is the repository for client vehicles.
package vehicles

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/query"
	"github.com/jrsteele09/go-garage-desk/resource"
)

const Resource = "vehicles"

type Vehicle struct {
	ID           uuid.UUID `json:"id,omitzero"`
	ClientID     uuid.UUID `json:"client_id"`
	Make         string    `json:"make"`
	Model        string    `json:"model"`
	Year         int       `json:"year,omitempty"`
	LicensePlate string    `json:"license_plate"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
}

// Description is the make, model and year shown next to a request.
func (v Vehicle) Description() string {
	parts := []string{v.Make, v.Model}
	if v.Year > 0 {
		parts = append(parts, "("+strconv.Itoa(v.Year)+")")
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

type Repository struct {
	*resource.Repository[Vehicle]
}

// NewRepository creates the vehicles repository. Upsert merges on the
// license plate.
func NewRepository(client resource.Transport, opts ...resource.Option) *Repository {
	opts = append([]resource.Option{resource.WithNaturalKey("license_plate")}, opts...)
	return &Repository{Repository: resource.New[Vehicle](client, Resource, opts...)}
}

// ListByClient returns a client's vehicles, newest first.
func (r *Repository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]Vehicle, error) {
	return r.FilterAndOrder(ctx, query.Equal("client_id", clientID), "created_at", query.Descending)
}

// Add registers a vehicle with its plate normalized.
func (r *Repository) Add(ctx context.Context, v Vehicle) (Vehicle, error) {
	v.LicensePlate = NormalizePlate(v.LicensePlate)
	return r.Create(ctx, v)
}

func (r *Repository) FindByLicensePlate(ctx context.Context, plate string) (*Vehicle, error) {
	return r.FindOneBy(ctx, "license_plate", NormalizePlate(plate))
}

// NormalizePlate uppercases a plate and strips its spaces.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(plate), " ", ""))
}
