package session

import (
	"time"

	"github.com/google/uuid"
)

// Role is the application role of an identity.
type Role string

const (
	RoleClient   Role = "client"   // Owns vehicles and raises service requests
	RoleMechanic Role = "mechanic" // Works requests for a shop
	RoleAdmin    Role = "admin"    // Manages a shop, its catalog and staff
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleMechanic, RoleAdmin:
		return true
	}
	return false
}

// Identity is the application-level user record (the "users" resource),
// distinct from the authentication provider's account.
type Identity struct {
	ID         uuid.UUID  `json:"id,omitzero"`         // Internal identifier, assigned by the backend
	AuthUserID uuid.UUID  `json:"auth_user_id"`        // Authentication provider account id
	Email      string     `json:"email"`               // Contact and sign-in email
	FullName   string     `json:"full_name"`           // Display name
	Role       Role       `json:"role"`                // client, mechanic or admin
	ShopID     *uuid.UUID `json:"shop_id"`             // Shop affiliation, nil for clients
	CreatedAt  time.Time  `json:"created_at,omitzero"` // Assigned by the backend
}

func (i *Identity) HasShop() bool {
	return i.ShopID != nil && *i.ShopID != uuid.Nil
}
