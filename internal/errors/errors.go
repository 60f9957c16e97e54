package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds surfaced by the backend access layer. Callers branch on these
// with Is; the structured types below carry the details and match the
// corresponding sentinel.
var (
	// Transport errors
	ErrTransport           = errors.New("transport error")
	ErrRemoteRequestFailed = errors.New("remote request failed")
	ErrResponseTooLarge    = errors.New("response too large")

	// Resource errors
	ErrNotFound      = errors.New("not found")
	ErrInvalidQuery  = errors.New("invalid query")
	ErrAlreadyExists = errors.New("already exists")

	// Authentication errors
	ErrAuthFailed             = errors.New("authentication failed")
	ErrIdentityNotProvisioned = errors.New("identity not provisioned")
	ErrNoSession              = errors.New("no session")
)

// TransportError reports a connectivity failure or timeout. It is always
// transient.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// RemoteRequestFailedError reports a non-2xx response.
type RemoteRequestFailedError struct {
	Status int
	Body   string
}

func (e *RemoteRequestFailedError) Error() string {
	return fmt.Sprintf("remote request failed [%d]: %s", e.Status, e.Body)
}

func (e *RemoteRequestFailedError) Is(target error) bool { return target == ErrRemoteRequestFailed }

// Retryable reports whether an idempotent read that failed this way may be retried.
func (e *RemoteRequestFailedError) Retryable() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// Conflict reports a uniqueness or constraint violation.
func (e *RemoteRequestFailedError) Conflict() bool {
	return e.Status == http.StatusConflict
}

// InvalidQueryError is a caller programming error; it is never retried.
type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return "invalid query: " + e.Reason
}

func (e *InvalidQueryError) Is(target error) bool { return target == ErrInvalidQuery }

// InvalidQuery builds an InvalidQueryError.
func InvalidQuery(format string, args ...interface{}) error {
	return &InvalidQueryError{Reason: fmt.Sprintf(format, args...)}
}

// AuthFailedError reports a rejected sign-up, sign-in or refresh.
type AuthFailedError struct {
	Reason string
	Cause  error
}

func (e *AuthFailedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Cause)
	}
	return "authentication failed: " + e.Reason
}

func (e *AuthFailedError) Unwrap() error { return e.Cause }

func (e *AuthFailedError) Is(target error) bool { return target == ErrAuthFailed }

// IsTransient reports whether err is worth retrying for an idempotent call.
func IsTransient(err error) bool {
	if errors.Is(err, ErrTransport) {
		return true
	}
	var remote *RemoteRequestFailedError
	return errors.As(err, &remote) && remote.Retryable()
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
