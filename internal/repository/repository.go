// Package repository declares the storage interfaces the services depend on.
//
// Two implementations exist: repository/sqlite (embedded, the default) and
// repository/mongo (a document store). Both return apperror.ErrNotFound for
// missing records and apperror.ErrConflict for a duplicate user email.
package repository

import (
	"context"

	"github.com/sakif/pinmap/internal/model"
)

type UserRepository interface {
	// Create fills in ID and CreatedAt. A second user with the same email is a conflict.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

type PinRepository interface {
	// CreatePin persists pin for pin.Author.ID, fills in ID and CreatedAt and
	// replaces pin.Author with the stored user.
	CreatePin(ctx context.Context, pin *model.Pin) error
	GetPin(ctx context.Context, id string) (*model.Pin, error)
	// ListPins returns every pin, oldest first.
	ListPins(ctx context.Context) ([]model.Pin, error)
	DeletePin(ctx context.Context, id string) error
	// AddComment appends comment to the pin and returns the updated pin.
	AddComment(ctx context.Context, pinID string, comment model.Comment) (*model.Pin, error)
}

// Store is what the server needs from a backend.
type Store interface {
	UserRepository
	PinRepository
	Close() error
}
