package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errCause = errors.New("connection reset by peer")

// =========================================================================
// CONSTRUCTORS
// =========================================================================

func TestConstructors_WrapTheirSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		message  string
	}{
		{"not found", NotFound("pin", "p1"), ErrNotFound, "pin not found with id p1"},
		{"conflict", Conflict("user", "a@example.com"), ErrConflict, "user conflict with id a@example.com"},
		{"validation", ValidationFailed("latitude", "latitude must be at least -90"), ErrValidation, "latitude must be at least -90"},
		{"forbidden", Forbidden("only the author can delete this pin"), ErrForbidden, "only the author can delete this pin"},
		{"unauthenticated", Unauthenticated(), ErrUnauthenticated, "authentication required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.message, tt.err.Error())

			var appErr *AppError
			require.ErrorAs(t, tt.err, &appErr)
			assert.Equal(t, tt.sentinel, appErr.Unwrap())
		})
	}
}

func TestValidationFailed_KeepsField(t *testing.T) {
	err := ValidationFailed("title", "title is required")
	assert.Equal(t, "title", err.Field)
}

// The two auth-resolver failures must stay distinguishable: one means "bad
// token", the other "try again later".
func TestAuthVerificationAndStore_AreDistinct(t *testing.T) {
	verify := AuthVerification(errCause)
	store := Store("looking up user", errCause)

	assert.ErrorIs(t, verify, ErrAuthVerification)
	assert.NotErrorIs(t, verify, ErrStore)
	assert.ErrorIs(t, store, ErrStore)
	assert.NotErrorIs(t, store, ErrAuthVerification)

	// the cause stays in the chain for logs
	assert.ErrorIs(t, verify, errCause)
	assert.ErrorIs(t, store, errCause)

	// but users only see the AppError message
	var appErr *AppError
	require.ErrorAs(t, store, &appErr)
	assert.Equal(t, "looking up user failed, try again", appErr.Message)
	require.ErrorAs(t, verify, &appErr)
	assert.NotContains(t, appErr.Message, "connection reset")
}

// =========================================================================
// CODE
// =========================================================================

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{NotFound("pin", "a"), "not_found"},
		{Forbidden("nope"), "forbidden"},
		{Conflict("user", "a"), "conflict"},
		{Unauthenticated(), "unauthenticated"},
		{AuthVerification(errCause), "auth_verification_failed"},
		{Store("creating pin", errCause), "store_failure"},
		{Store("looking up user", NotFound("user", "u1")), "store_failure"},
		{AuthVerification(Unauthenticated()), "auth_verification_failed"},
		{fmt.Errorf("wrapped: %w", ValidationFailed("title", "title is required")), "validation_error"},
		{errCause, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}
