// Package requests holds the repositories for service requests, their line
// items and their status history.
package requests

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-garage-desk/internal/errors"
	"github.com/jrsteele09/go-garage-desk/internal/utils"
	"github.com/jrsteele09/go-garage-desk/query"
	"github.com/jrsteele09/go-garage-desk/resource"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	Resource              = "service_requests"
	ItemsResource         = "service_request_items"
	StatusUpdatesResource = "service_status_updates"
)

// Status is a service request's position in the shop's workflow.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusRejected   Status = "Rejected"
)

// ServiceRequest is a client's request for work on one vehicle.
type ServiceRequest struct {
	ID                  uuid.UUID  `json:"id,omitzero"`
	ClientID            uuid.UUID  `json:"client_id"`
	VehicleID           uuid.UUID  `json:"vehicle_id"`
	ShopID              *uuid.UUID `json:"shop_id"`
	MechanicID          *uuid.UUID `json:"mechanic_id"`
	Status              Status     `json:"status"`
	TotalPriceEstimated float64    `json:"total_price_estimated"`
	TotalPriceFinal     *float64   `json:"total_price_final"`
	Notes               string     `json:"notes,omitempty"`
	ServiceDescription  string     `json:"service_description,omitempty"`
	CreatedAt           time.Time  `json:"created_at,omitzero"`
}

// Repository serves service requests and records every status change in
// the status history.
type Repository struct {
	*resource.Repository[ServiceRequest]
	history *resource.Repository[StatusUpdate]
	logger  zerolog.Logger
}

func NewRepository(client resource.Transport, opts ...resource.Option) *Repository {
	return &Repository{
		Repository: resource.New[ServiceRequest](client, Resource, opts...),
		history:    resource.New[StatusUpdate](client, StatusUpdatesResource, opts...),
		logger:     log.With().Str("resource", Resource).Logger(),
	}
}

func (r *Repository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]ServiceRequest, error) {
	return r.newestFirst(ctx, query.Equal("client_id", clientID))
}

func (r *Repository) ListByMechanic(ctx context.Context, mechanicID uuid.UUID) ([]ServiceRequest, error) {
	return r.newestFirst(ctx, query.Equal("mechanic_id", mechanicID))
}

func (r *Repository) ListByShop(ctx context.Context, shopID uuid.UUID) ([]ServiceRequest, error) {
	return r.newestFirst(ctx, query.Equal("shop_id", shopID))
}

func (r *Repository) ListByVehicle(ctx context.Context, vehicleID uuid.UUID) ([]ServiceRequest, error) {
	return r.newestFirst(ctx, query.Equal("vehicle_id", vehicleID))
}

func (r *Repository) ListByStatus(ctx context.Context, status Status) ([]ServiceRequest, error) {
	return r.newestFirst(ctx, query.Equal("status", string(status)))
}

// Open creates a pending request and records its first status entry.
func (r *Repository) Open(ctx context.Context, req ServiceRequest) (ServiceRequest, error) {
	req.Status = StatusPending
	created, err := r.Create(ctx, req)
	if err != nil {
		return ServiceRequest{}, err
	}
	if _, err := r.appendHistory(ctx, created.ID, StatusPending, "", req.ClientID); err != nil {
		return created, err
	}
	return created, nil
}

// AssignMechanic accepts a request on behalf of a mechanic and moves it to
// In Progress.
func (r *Repository) AssignMechanic(ctx context.Context, id, mechanicID uuid.UUID) (ServiceRequest, error) {
	updated, err := r.Patch(ctx, id, map[string]any{
		"mechanic_id": mechanicID,
		"status":      string(StatusInProgress),
	})
	if err != nil {
		return ServiceRequest{}, errors.Wrapf(err, "[Repository.AssignMechanic] request %s", id)
	}
	if _, err := r.appendHistory(ctx, id, StatusInProgress, "assigned", mechanicID); err != nil {
		return updated, err
	}
	return updated, nil
}

// UpdateStatus sets the request's status and appends a status update
// carrying note. by is the acting user and may be uuid.Nil.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, note string, by uuid.UUID) (ServiceRequest, error) {
	updated, err := r.Patch(ctx, id, map[string]any{"status": string(status)})
	if err != nil {
		return ServiceRequest{}, errors.Wrapf(err, "[Repository.UpdateStatus] request %s", id)
	}
	if _, err := r.appendHistory(ctx, id, status, note, by); err != nil {
		return updated, err
	}
	return updated, nil
}

// History returns a request's status updates, oldest first.
func (r *Repository) History(ctx context.Context, id uuid.UUID) ([]StatusUpdate, error) {
	return r.history.FilterAndOrder(ctx, query.Equal("service_request_id", id), "created_at", query.Ascending)
}

func (r *Repository) appendHistory(ctx context.Context, id uuid.UUID, status Status, note string, by uuid.UUID) (StatusUpdate, error) {
	created, err := r.history.Create(ctx, StatusUpdate{
		ServiceRequestID: id,
		Status:           status,
		Note:             note,
		CreatedBy:        utils.UUIDPtr(by),
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("request_id", id.String()).Str("status", string(status)).Msg("status changed but history append failed")
		return StatusUpdate{}, errors.Wrapf(err, "[Repository.appendHistory] request %s", id)
	}
	return created, nil
}

func (r *Repository) newestFirst(ctx context.Context, filter query.Filter) ([]ServiceRequest, error) {
	return r.FilterAndOrder(ctx, filter, "created_at", query.Descending)
}
