// Package mongo implements the repository interfaces on MongoDB.
//
// Users live in the "users" collection with a unique index on email. Pins live in
// "pins" with the author stored as an ObjectID reference and comments embedded in
// the pin document, so a comment is a single $push.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/sakif/pinmap/internal/repository"
)

var _ repository.Store = (*DB)(nil)

const (
	usersCollection = "users"
	pinsCollection  = "pins"
)

// DB holds the client and the two collections the repository uses.
type DB struct {
	client *mongo.Client
	users  *mongo.Collection
	pins   *mongo.Collection
}

// New connects to uri, pings the server and ensures indexes exist.
func New(ctx context.Context, uri, database string) (*DB, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	db := &DB{
		client: client,
		users:  client.Database(database).Collection(usersCollection),
		pins:   client.Database(database).Collection(pinsCollection),
	}

	if err := db.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return db, nil
}

// Close disconnects the client.
func (db *DB) Close() error {
	return db.client.Disconnect(context.Background())
}

func (db *DB) ensureIndexes(ctx context.Context) error {
	_, err := db.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo: creating users.email index: %w", err)
	}

	_, err = db.pins.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongo: creating pins.created_at index: %w", err)
	}

	return nil
}
