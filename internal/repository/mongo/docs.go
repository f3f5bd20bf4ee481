package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/sakif/pinmap/internal/apperror"
	"github.com/sakif/pinmap/internal/model"
)

type userDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Name      string        `bson:"name"`
	Email     string        `bson:"email"`
	Picture   string        `bson:"picture"`
	CreatedAt time.Time     `bson:"created_at"`
}

type commentDoc struct {
	Text      string        `bson:"text"`
	AuthorID  bson.ObjectID `bson:"author"`
	CreatedAt time.Time     `bson:"created_at"`
}

type pinDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Title     string        `bson:"title"`
	Image     string        `bson:"image"`
	Content   string        `bson:"content"`
	Latitude  float64       `bson:"latitude"`
	Longitude float64       `bson:"longitude"`
	AuthorID  bson.ObjectID `bson:"author"`
	Comments  []commentDoc  `bson:"comments"`
	CreatedAt time.Time     `bson:"created_at"`
}

func (d userDoc) toModel() model.User {
	return model.User{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Email:     d.Email,
		Picture:   d.Picture,
		CreatedAt: d.CreatedAt,
	}
}

// toModel resolves author references through users. A reference to a user that
// no longer exists keeps its ID so the pin is still addressable.
func (d pinDoc) toModel(users map[bson.ObjectID]model.User) model.Pin {
	pin := model.Pin{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		Image:     d.Image,
		Content:   d.Content,
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
		CreatedAt: d.CreatedAt,
		Author:    lookupUser(users, d.AuthorID),
		Comments:  make([]model.Comment, 0, len(d.Comments)),
	}
	for _, c := range d.Comments {
		pin.Comments = append(pin.Comments, model.Comment{
			Text:      c.Text,
			CreatedAt: c.CreatedAt,
			Author:    lookupUser(users, c.AuthorID),
		})
	}
	return pin
}

func lookupUser(users map[bson.ObjectID]model.User, id bson.ObjectID) model.User {
	if u, ok := users[id]; ok {
		return u
	}
	return model.User{ID: id.Hex()}
}

// authorIDs lists every user referenced by docs, each once.
func authorIDs(docs []pinDoc) []bson.ObjectID {
	seen := make(map[bson.ObjectID]struct{})
	var ids []bson.ObjectID
	add := func(id bson.ObjectID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, d := range docs {
		add(d.AuthorID)
		for _, c := range d.Comments {
			add(c.AuthorID)
		}
	}
	return ids
}

// parseID turns a hex id into an ObjectID. Malformed ids cannot match any
// document, so they are reported as not found.
func parseID(resource, id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.NilObjectID, apperror.NotFound(resource, id)
	}
	return oid, nil
}
