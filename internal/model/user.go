// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents an account created from a verified Google identity.
//
// The email address is the natural key: the Auth Resolver looks users up by the
// email claim of the verified ID token and creates a row only when none exists.
// ID is our own generated identifier (xid for SQLite, ObjectID hex for Mongo) so
// that pins reference users without leaking the provider's subject.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Picture   string    `json:"picture"` // Profile picture URL from the identity provider
	CreatedAt time.Time `json:"createdAt"`
}
