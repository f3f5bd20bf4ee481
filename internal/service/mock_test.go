package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/pinmap/internal/apperror"
	"github.com/sakif/pinmap/internal/auth"
	"github.com/sakif/pinmap/internal/model"
	"github.com/sakif/pinmap/internal/pubsub"
)

// =========================================================================
// MOCK REPOSITORY
// =========================================================================
//
// mockStore keeps users and pins in memory and implements both repository
// interfaces. The fail* fields simulate a broken database.

var errDBDown = errors.New("database is down")

type mockStore struct {
	mu     sync.Mutex
	users  map[string]*model.User // by ID
	pins   map[string]*model.Pin
	order  []string
	nextID int

	failLookup bool
	failCreate bool
	failDelete bool

	// beforeCreate runs inside Create, before the email check. Tests use it to
	// slip in a competing user.
	beforeCreate func(m *mockStore)
	createCalls  int
}

func newMockStore() *mockStore {
	return &mockStore{
		users: make(map[string]*model.User),
		pins:  make(map[string]*model.Pin),
	}
}

func (m *mockStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *mockStore) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.failCreate {
		return errDBDown
	}
	if m.beforeCreate != nil {
		m.beforeCreate(m)
		m.beforeCreate = nil
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return apperror.Conflict("user", user.Email)
		}
	}
	user.ID = m.id("user")
	user.CreatedAt = time.Now().UTC()
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

// addUserLocked inserts a user directly; callers hold m.mu.
func (m *mockStore) addUserLocked(user model.User) *model.User {
	user.ID = m.id("user")
	m.users[user.ID] = &user
	return &user
}

func (m *mockStore) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLookup {
		return nil, errDBDown
	}
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *u
	return &result, nil
}

func (m *mockStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLookup {
		return nil, errDBDown
	}
	for _, u := range m.users {
		if u.Email == email {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (m *mockStore) CreatePin(_ context.Context, pin *model.Pin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return errDBDown
	}
	pin.ID = m.id("pin")
	pin.CreatedAt = time.Now().UTC()
	stored := *pin
	m.pins[pin.ID] = &stored
	m.order = append(m.order, pin.ID)
	return nil
}

func (m *mockStore) GetPin(_ context.Context, id string) (*model.Pin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLookup {
		return nil, errDBDown
	}
	p, ok := m.pins[id]
	if !ok {
		return nil, apperror.NotFound("pin", id)
	}
	result := *p
	return &result, nil
}

func (m *mockStore) ListPins(_ context.Context) ([]model.Pin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLookup {
		return nil, errDBDown
	}
	var pins []model.Pin
	for _, id := range m.order {
		if p, ok := m.pins[id]; ok {
			pins = append(pins, *p)
		}
	}
	return pins, nil
}

func (m *mockStore) DeletePin(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete {
		return errDBDown
	}
	if _, ok := m.pins[id]; !ok {
		return apperror.NotFound("pin", id)
	}
	delete(m.pins, id)
	return nil
}

func (m *mockStore) AddComment(_ context.Context, pinID string, c model.Comment) (*model.Pin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return nil, errDBDown
	}
	p, ok := m.pins[pinID]
	if !ok {
		return nil, apperror.NotFound("pin", pinID)
	}
	c.CreatedAt = time.Now().UTC()
	p.Comments = append(p.Comments, c)
	result := *p
	return &result, nil
}

// =========================================================================
// STUB VERIFIER AND RECORDING PUBLISHER
// =========================================================================

// stubVerifier accepts the tokens in its map and rejects the rest.
type stubVerifier struct {
	identities map[string]auth.Identity
}

func (v *stubVerifier) Verify(_ context.Context, idToken string) (*auth.Identity, error) {
	id, ok := v.identities[idToken]
	if !ok {
		return nil, errors.New("signature is invalid")
	}
	return &id, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []pubsub.Event
}

func (p *recordingPublisher) Publish(kind pubsub.Kind, pin model.Pin) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, pubsub.Event{Kind: kind, Pin: pin})
}

func (p *recordingPublisher) recorded() []pubsub.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pubsub.Event(nil), p.events...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
