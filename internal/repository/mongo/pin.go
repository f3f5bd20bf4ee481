package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/sakif/pinmap/internal/apperror"
	"github.com/sakif/pinmap/internal/model"
)

// CreatePin inserts pin. There are no foreign keys in Mongo, so the author is
// looked up first.
func (db *DB) CreatePin(ctx context.Context, pin *model.Pin) error {
	author, err := db.GetByID(ctx, pin.Author.ID)
	if err != nil {
		return err
	}
	authorID, _ := bson.ObjectIDFromHex(author.ID)

	doc := pinDoc{
		ID:        bson.NewObjectID(),
		Title:     pin.Title,
		Image:     pin.Image,
		Content:   pin.Content,
		Latitude:  pin.Latitude,
		Longitude: pin.Longitude,
		AuthorID:  authorID,
		Comments:  []commentDoc{},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	if _, err := db.pins.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo: inserting pin: %w", err)
	}

	pin.ID = doc.ID.Hex()
	pin.CreatedAt = doc.CreatedAt
	pin.Author = *author
	pin.Comments = []model.Comment{}
	return nil
}

func (db *DB) GetPin(ctx context.Context, id string) (*model.Pin, error) {
	oid, err := parseID("pin", id)
	if err != nil {
		return nil, err
	}

	var doc pinDoc
	if err := db.pins.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("pin", id)
		}
		return nil, fmt.Errorf("mongo: finding pin %s: %w", id, err)
	}

	pins, err := db.populate(ctx, []pinDoc{doc})
	if err != nil {
		return nil, err
	}
	return &pins[0], nil
}

func (db *DB) ListPins(ctx context.Context) ([]model.Pin, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := db.pins.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing pins: %w", err)
	}

	var docs []pinDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decoding pins: %w", err)
	}

	return db.populate(ctx, docs)
}

func (db *DB) DeletePin(ctx context.Context, id string) error {
	oid, err := parseID("pin", id)
	if err != nil {
		return err
	}

	res, err := db.pins.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("mongo: deleting pin %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound("pin", id)
	}
	return nil
}

func (db *DB) AddComment(ctx context.Context, pinID string, comment model.Comment) (*model.Pin, error) {
	oid, err := parseID("pin", pinID)
	if err != nil {
		return nil, err
	}
	authorID, err := parseID("user", comment.Author.ID)
	if err != nil {
		return nil, err
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}

	update := bson.D{{Key: "$push", Value: bson.D{{Key: "comments", Value: commentDoc{
		Text:      comment.Text,
		AuthorID:  authorID,
		CreatedAt: comment.CreatedAt.Truncate(time.Millisecond),
	}}}}}

	res, err := db.pins.UpdateOne(ctx, bson.D{{Key: "_id", Value: oid}}, update)
	if err != nil {
		return nil, fmt.Errorf("mongo: adding comment to pin %s: %w", pinID, err)
	}
	if res.MatchedCount == 0 {
		return nil, apperror.NotFound("pin", pinID)
	}

	return db.GetPin(ctx, pinID)
}

// populate resolves author references for docs in one query.
func (db *DB) populate(ctx context.Context, docs []pinDoc) ([]model.Pin, error) {
	users, err := db.usersByID(ctx, authorIDs(docs))
	if err != nil {
		return nil, err
	}

	pins := make([]model.Pin, 0, len(docs))
	for _, d := range docs {
		pins = append(pins, d.toModel(users))
	}
	return pins, nil
}
