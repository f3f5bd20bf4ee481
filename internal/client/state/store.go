package state

import (
	"log/slog"
	"sync"

	"github.com/sakif/pinmap/internal/model"
)

// Listener is called with the new state after every dispatch.
type Listener func(State)

// Store owns the single State value of a client session.
//
// Dispatch calls are applied one at a time in the order they acquire the store,
// and listeners see every resulting state in that same order. A listener must not
// call Dispatch itself; it may call State.
type Store struct {
	dispatchMu sync.Mutex

	mu        sync.RWMutex
	state     State
	listeners map[uint64]Listener
	nextID    uint64

	logger *slog.Logger
}

// NewStore creates a store holding initial.
func NewStore(initial State, logger *slog.Logger) *Store {
	if initial.Pins == nil {
		initial.Pins = []model.Pin{}
	}
	return &Store{
		state:     initial,
		listeners: make(map[uint64]Listener),
		logger:    logger,
	}
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch reduces a into the current state and notifies listeners.
func (s *Store) Dispatch(a Action) State {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	next := Reduce(s.state, a)
	s.state = next
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	s.logger.Debug("action dispatched", "type", a.Type, "pins", len(next.Pins))

	for _, l := range listeners {
		l(next)
	}
	return next
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}
