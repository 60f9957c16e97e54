package errors_test

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/jrsteele09/go-garage-desk/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	t.Run("transport error matches sentinel and unwraps cause", func(t *testing.T) {
		cause := stderrors.New("dial tcp: refused")
		err := errors.Wrapf(&errors.TransportError{Cause: cause}, "[Client.Rest] GET %s", "vehicles")
		require.True(t, errors.Is(err, errors.ErrTransport))
		require.True(t, errors.Is(err, cause))
		require.False(t, errors.Is(err, errors.ErrRemoteRequestFailed))
		require.True(t, errors.IsTransient(err))
	})

	t.Run("remote failure exposes status", func(t *testing.T) {
		err := errors.Wrapf(&errors.RemoteRequestFailedError{Status: http.StatusConflict, Body: "duplicate key"}, "create")
		require.True(t, errors.Is(err, errors.ErrRemoteRequestFailed))

		var remote *errors.RemoteRequestFailedError
		require.True(t, errors.As(err, &remote))
		require.Equal(t, http.StatusConflict, remote.Status)
		require.True(t, remote.Conflict())
		require.False(t, remote.Retryable())
		require.False(t, errors.IsTransient(err))
	})

	t.Run("server errors are retryable", func(t *testing.T) {
		require.True(t, errors.IsTransient(&errors.RemoteRequestFailedError{Status: http.StatusBadGateway}))
		require.True(t, errors.IsTransient(&errors.RemoteRequestFailedError{Status: http.StatusTooManyRequests}))
	})

	t.Run("invalid query", func(t *testing.T) {
		err := errors.InvalidQuery("empty value set for %q", "id")
		require.True(t, errors.Is(err, errors.ErrInvalidQuery))
		require.Contains(t, err.Error(), `"id"`)
		require.False(t, errors.IsTransient(err))
	})

	t.Run("auth failed", func(t *testing.T) {
		cause := &errors.RemoteRequestFailedError{Status: http.StatusBadRequest, Body: "invalid_grant"}
		err := &errors.AuthFailedError{Reason: "sign in rejected", Cause: cause}
		require.True(t, errors.Is(err, errors.ErrAuthFailed))
		require.True(t, errors.Is(err, errors.ErrRemoteRequestFailed))
		require.Contains(t, err.Error(), "sign in rejected")
	})

	t.Run("wrapf nil", func(t *testing.T) {
		require.NoError(t, errors.Wrapf(nil, "nothing"))
	})
}
