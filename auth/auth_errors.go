package auth

import "errors"

var (
	InvalidRoleErr       = errors.New("invalid role")
	MissingCredentialErr = errors.New("email and password are required")

	identityPendingErr = errors.New("identity not yet provisioned")
)
