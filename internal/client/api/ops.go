package api

import (
	"time"

	"github.com/sakif/pinmap/internal/model"
)

const userFields = `_id name email picture`

const pinFields = `
fragment PinFields on Pin {
  _id title image content latitude longitude createdAt
  author { ` + userFields + ` }
  comments { text createdAt author { ` + userFields + ` } }
}`

const (
	meQuery = `query { me { ` + userFields + ` } }`

	getPinsQuery = `query { getPins { ...PinFields } }` + pinFields

	createPinMutation = `mutation ($title: String!, $image: String, $content: String, $latitude: Float!, $longitude: Float!) {
  createPin(title: $title, image: $image, content: $content, latitude: $latitude, longitude: $longitude) { ...PinFields }
}` + pinFields

	deletePinMutation = `mutation ($pinId: ID!) { deletePin(pinId: $pinId) { ...PinFields } }` + pinFields

	createCommentMutation = `mutation ($pinId: ID!, $text: String!) { createComment(pinId: $pinId, text: $text) { ...PinFields } }` + pinFields
)

// subscriptionQuery selects the full pin for one subscription field.
func subscriptionQuery(field string) string {
	return `subscription { ` + field + ` { ...PinFields } }` + pinFields
}

type wireUser struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

func (u wireUser) model() model.User {
	return model.User{ID: u.ID, Name: u.Name, Email: u.Email, Picture: u.Picture}
}

type wireComment struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Author    wireUser  `json:"author"`
}

type wirePin struct {
	ID        string        `json:"_id"`
	Title     string        `json:"title"`
	Image     string        `json:"image"`
	Content   string        `json:"content"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	CreatedAt time.Time     `json:"createdAt"`
	Author    wireUser      `json:"author"`
	Comments  []wireComment `json:"comments"`
}

func (p wirePin) model() model.Pin {
	comments := make([]model.Comment, 0, len(p.Comments))
	for _, c := range p.Comments {
		comments = append(comments, model.Comment{Text: c.Text, CreatedAt: c.CreatedAt, Author: c.Author.model()})
	}
	return model.Pin{
		ID:        p.ID,
		Title:     p.Title,
		Image:     p.Image,
		Content:   p.Content,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		CreatedAt: p.CreatedAt,
		Author:    p.Author.model(),
		Comments:  comments,
	}
}
