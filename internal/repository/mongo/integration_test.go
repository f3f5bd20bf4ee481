//go:build integration

package mongo

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/sakif/pinmap/internal/apperror"
	"github.com/sakif/pinmap/internal/model"
)

// uri points at MONGO_URI when set, otherwise at a throwaway container.
var uri string

func TestMain(m *testing.M) {
	ctx := context.Background()

	uri = os.Getenv("MONGO_URI")
	var container tc.Container
	if uri == "" {
		var err error
		container, err = tc.GenericContainer(ctx, tc.GenericContainerRequest{
			ContainerRequest: tc.ContainerRequest{
				Image:        "mongo:7",
				ExposedPorts: []string{"27017/tcp"},
				WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(2 * time.Minute),
			},
			Started: true,
		})
		if err != nil {
			panic(err)
		}
		host, err := container.Host(ctx)
		if err != nil {
			panic(err)
		}
		port, err := container.MappedPort(ctx, "27017")
		if err != nil {
			panic(err)
		}
		uri = fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	}

	code := m.Run()
	if container != nil {
		_ = container.Terminate(ctx)
	}
	os.Exit(code)
}

// newTestDB opens a database of its own and drops it when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	name := "pinmap_test_" + xid.New().String()

	db, err := New(ctx, uri, name)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.client.Database(name).Drop(context.Background())
		_ = db.Close()
	})
	return db
}

func createTestUser(t *testing.T, db *DB, name string) *model.User {
	t.Helper()
	user := &model.User{
		Name:    name,
		Email:   name + "@example.com",
		Picture: "https://lh3.googleusercontent.com/a/" + name,
	}
	require.NoError(t, db.Create(context.Background(), user))
	return user
}

func createTestPin(t *testing.T, db *DB, author *model.User, title string) *model.Pin {
	t.Helper()
	pin := &model.Pin{
		Title:     title,
		Image:     "https://example.com/" + title + ".jpg",
		Content:   "content of " + title,
		Latitude:  37.7577,
		Longitude: -122.4376,
		Author:    model.User{ID: author.ID},
	}
	require.NoError(t, db.CreatePin(context.Background(), pin))
	return pin
}

// =========================================================================
// USERS
// =========================================================================

func TestUserCreate(t *testing.T) {
	db := newTestDB(t)

	user := createTestUser(t, db, "ada")

	assert.True(t, bson.IsValidObjectID(user.ID))
	assert.False(t, user.CreatedAt.IsZero())
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "ada")

	err := db.Create(context.Background(), &model.User{Name: "Other Ada", Email: "ada@example.com"})

	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestUserCreate_ConcurrentFirstLogins(t *testing.T) {
	db := newTestDB(t)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = db.Create(context.Background(), &model.User{Name: "Ada", Email: "ada@example.com"})
		}()
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, apperror.ErrConflict)
	}
	assert.Equal(t, 1, created, "the unique email index admits exactly one insert")
}

func TestUserLookups(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ada := createTestUser(t, db, "ada")

	byID, err := db.GetByID(ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", byID.Email)
	assert.Equal(t, ada.Picture, byID.Picture)
	assert.True(t, ada.CreatedAt.Equal(byID.CreatedAt))

	byEmail, err := db.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, ada.ID, byEmail.ID)
}

func TestUserLookups_NotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.GetByID(ctx, bson.NewObjectID().Hex())
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = db.GetByID(ctx, "not-an-object-id")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = db.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// =========================================================================
// PINS
// =========================================================================

func TestCreatePin(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "author")

	pin := createTestPin(t, db, author, "sunset")

	assert.True(t, bson.IsValidObjectID(pin.ID))
	assert.False(t, pin.CreatedAt.IsZero())
	assert.Equal(t, "author@example.com", pin.Author.Email)
	assert.NotNil(t, pin.Comments)
	assert.Empty(t, pin.Comments)
}

func TestCreatePin_UnknownAuthor(t *testing.T) {
	db := newTestDB(t)

	for _, authorID := range []string{bson.NewObjectID().Hex(), "missing"} {
		err := db.CreatePin(context.Background(), &model.Pin{
			Title:  "orphan",
			Author: model.User{ID: authorID},
		})
		assert.ErrorIs(t, err, apperror.ErrNotFound, "author %q", authorID)
	}

	pins, err := db.ListPins(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pins, "nothing is inserted for an unknown author")
}

func TestGetPin(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "author")
	created := createTestPin(t, db, author, "bridge")

	found, err := db.GetPin(context.Background(), created.ID)
	require.NoError(t, err)

	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "bridge", found.Title)
	assert.Equal(t, "content of bridge", found.Content)
	assert.Equal(t, 37.7577, found.Latitude)
	assert.Equal(t, -122.4376, found.Longitude)
	assert.Equal(t, author.ID, found.Author.ID)
	assert.Equal(t, "author", found.Author.Name)
	assert.True(t, created.CreatedAt.Equal(found.CreatedAt), "CreatedAt should round-trip")
}

func TestGetPin_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetPin(context.Background(), bson.NewObjectID().Hex())
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = db.GetPin(context.Background(), "nope")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestListPins_OldestFirst(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	first := createTestPin(t, db, alice, "first")
	second := createTestPin(t, db, bob, "second")
	third := createTestPin(t, db, alice, "third")

	pins, err := db.ListPins(context.Background())
	require.NoError(t, err)
	require.Len(t, pins, 3)

	assert.Equal(t, []string{first.ID, second.ID, third.ID},
		[]string{pins[0].ID, pins[1].ID, pins[2].ID})
	// authors are resolved for every pin
	assert.Equal(t, []string{"alice", "bob", "alice"},
		[]string{pins[0].Author.Name, pins[1].Author.Name, pins[2].Author.Name})
}

func TestListPins_Empty(t *testing.T) {
	db := newTestDB(t)

	pins, err := db.ListPins(context.Background())
	require.NoError(t, err)

	assert.NotNil(t, pins)
	assert.Empty(t, pins)
}

func TestDeletePin(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "author")
	pin := createTestPin(t, db, author, "gone")
	kept := createTestPin(t, db, author, "kept")

	require.NoError(t, db.DeletePin(context.Background(), pin.ID))

	_, err := db.GetPin(context.Background(), pin.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	assert.ErrorIs(t, db.DeletePin(context.Background(), pin.ID), apperror.ErrNotFound)
	assert.ErrorIs(t, db.DeletePin(context.Background(), "nope"), apperror.ErrNotFound)

	pins, err := db.ListPins(context.Background())
	require.NoError(t, err)
	require.Len(t, pins, 1)
	assert.Equal(t, kept.ID, pins[0].ID)
}

func TestAddComment(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "author")
	commenter := createTestUser(t, db, "commenter")
	pin := createTestPin(t, db, author, "cafe")

	updated, err := db.AddComment(context.Background(), pin.ID, model.Comment{
		Text:   "great coffee",
		Author: model.User{ID: commenter.ID},
	})
	require.NoError(t, err)

	require.Len(t, updated.Comments, 1)
	assert.Equal(t, "great coffee", updated.Comments[0].Text)
	assert.Equal(t, "commenter", updated.Comments[0].Author.Name)
	assert.False(t, updated.Comments[0].CreatedAt.IsZero())

	updated, err = db.AddComment(context.Background(), pin.ID, model.Comment{
		Text:   "agreed",
		Author: model.User{ID: author.ID},
	})
	require.NoError(t, err)
	require.Len(t, updated.Comments, 2)
	assert.Equal(t, "agreed", updated.Comments[1].Text)

	pins, err := db.ListPins(context.Background())
	require.NoError(t, err)
	require.Len(t, pins, 1)
	assert.Len(t, pins[0].Comments, 2)
}

func TestAddComment_UnknownPin(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "author")

	for _, pinID := range []string{bson.NewObjectID().Hex(), "nope"} {
		_, err := db.AddComment(context.Background(), pinID, model.Comment{
			Text:   "hello?",
			Author: model.User{ID: author.ID},
		})
		assert.ErrorIs(t, err, apperror.ErrNotFound, "pin %q", pinID)
	}
}
