// Package users is the repository for application identities (the "users"
// resource), distinct from the authentication provider's accounts.
package users

import (
	"strings"

	"github.com/jrsteele09/go-garage-desk/session"
)

// Resource is the backend resource name.
const Resource = "users"

// User is the application identity record.
type User = session.Identity

// NormalizeEmail lowercases and trims an address the way the Auth endpoint
// stores it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
