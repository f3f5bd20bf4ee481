package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/sakif/pinmap/internal/apperror"
	"github.com/sakif/pinmap/internal/model"
)

// Create inserts user. The unique email index turns a racing duplicate into
// apperror.ErrConflict.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	doc := userDoc{
		ID:        bson.NewObjectID(),
		Name:      user.Name,
		Email:     user.Email,
		Picture:   user.Picture,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	if _, err := db.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("mongo: inserting user (email=%s): %w", user.Email, err)
	}

	user.ID = doc.ID.Hex()
	user.CreatedAt = doc.CreatedAt
	return nil
}

func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := parseID("user", id)
	if err != nil {
		return nil, err
	}
	return db.findUser(ctx, bson.D{{Key: "_id", Value: oid}}, id)
}

func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.findUser(ctx, bson.D{{Key: "email", Value: email}}, email)
}

func (db *DB) findUser(ctx context.Context, filter bson.D, key string) (*model.User, error) {
	var doc userDoc
	if err := db.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("user", key)
		}
		return nil, fmt.Errorf("mongo: finding user %s: %w", key, err)
	}
	u := doc.toModel()
	return &u, nil
}

// usersByID loads the given users keyed by ObjectID.
func (db *DB) usersByID(ctx context.Context, ids []bson.ObjectID) (map[bson.ObjectID]model.User, error) {
	out := make(map[bson.ObjectID]model.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cursor, err := db.users.Find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
	if err != nil {
		return nil, fmt.Errorf("mongo: loading authors: %w", err)
	}

	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decoding authors: %w", err)
	}
	for _, d := range docs {
		out[d.ID] = d.toModel()
	}
	return out, nil
}
