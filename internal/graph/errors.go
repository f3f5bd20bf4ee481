package graph

import (
	"errors"

	"github.com/sakif/pinmap/internal/apperror"
)

// resolverError carries a machine-readable code into the "extensions" member of
// a GraphQL error, e.g. {"message": "...", "extensions": {"code": "forbidden"}}.
type resolverError struct {
	err  error
	code string
}

func (e *resolverError) Error() string {
	var appErr *apperror.AppError
	if errors.As(e.err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

func (e *resolverError) Unwrap() error { return e.err }

// Extensions is picked up by graphql-go when building the response.
func (e *resolverError) Extensions() map[string]any {
	ext := map[string]any{"code": e.code}
	var appErr *apperror.AppError
	if errors.As(e.err, &appErr) && appErr.Field != "" {
		ext["field"] = appErr.Field
	}
	return ext
}

func gqlError(err error) error {
	if err == nil {
		return nil
	}
	return &resolverError{err: err, code: apperror.Code(err)}
}
