package requests

import (
	"time"

	"github.com/google/uuid"
)

// StatusUpdate is one entry of a request's status history.
type StatusUpdate struct {
	ID               uuid.UUID  `json:"id,omitzero"`
	ServiceRequestID uuid.UUID  `json:"service_request_id"`
	Status           Status     `json:"status"`
	Note             string     `json:"note,omitempty"`
	CreatedBy        *uuid.UUID `json:"created_by"`
	CreatedAt        time.Time  `json:"created_at,omitzero"`
}
