package model

import "time"

// Pin is a geotagged post owned by one user.
//
// Latitude and Longitude are fixed at creation. Comments are embedded in the pin
// (one document per pin in Mongo, a child table in SQLite) and always returned with
// it, so every change event can carry the full pin.
type Pin struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Image     string    `json:"image"`
	Content   string    `json:"content"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	CreatedAt time.Time `json:"createdAt"`
	Author    User      `json:"author"`
	Comments  []Comment `json:"comments"`
}

// Comment is a short text attached to a pin.
type Comment struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Author    User      `json:"author"`
}

// PinInput carries the user-supplied fields of a new pin.
// The validate tags are checked by the pin service before anything is persisted.
type PinInput struct {
	Title     string  `validate:"required,max=100"`
	Image     string  `validate:"omitempty,url"`
	Content   string  `validate:"max=2000"`
	Latitude  float64 `validate:"gte=-90,lte=90"`
	Longitude float64 `validate:"gte=-180,lte=180"`
}
