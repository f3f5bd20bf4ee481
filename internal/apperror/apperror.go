// Package apperror defines the error taxonomy shared by the services, the REST
// handlers and the GraphQL resolvers.
//
// Every domain failure is an *AppError wrapping one sentinel. Callers branch with
// errors.Is on the sentinel and show AppError.Message to users; transports map the
// sentinel to a status (HTTP code or GraphQL extensions.code).
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrAuthVerification means the identity token itself was rejected
	// (bad signature, wrong audience, expired). Retrying with the same token is useless.
	ErrAuthVerification = errors.New("auth verification failed")

	// ErrStore means the persistence layer failed while serving the request.
	// The input may be fine and a retry can succeed.
	ErrStore = errors.New("store failure")
)

type AppError struct {
	Err     error  // sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthenticated is returned by operations that need a signed-in user.
func Unauthenticated() *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: "authentication required",
	}
}

// AuthVerification wraps the provider's rejection reason. The reason is kept in
// the chain for logs but not put into Message.
func AuthVerification(cause error) error {
	return fmt.Errorf("%w: %w", &AppError{
		Err:     ErrAuthVerification,
		Message: "identity token could not be verified",
	}, cause)
}

// Store wraps a persistence failure during op.
func Store(op string, cause error) error {
	return fmt.Errorf("%w: %w", &AppError{
		Err:     ErrStore,
		Message: fmt.Sprintf("%s failed, try again", op),
	}, cause)
}

// Code returns a stable machine-readable name for err, used as the "error" field
// of REST responses and as extensions.code in GraphQL.
func Code(err error) string {
	switch {
	// Resolver failures may wrap another AppError as their cause; their own
	// kind wins.
	case errors.Is(err, ErrStore):
		return "store_failure"
	case errors.Is(err, ErrAuthVerification):
		return "auth_verification_failed"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	default:
		return "internal_error"
	}
}
