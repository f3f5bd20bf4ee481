// Package pubsub fans pin change events out to subscribers.
//
// There is one topic per event kind (added, updated, deleted) and every event
// carries the full pin. Subscribers get their own buffered channel; a subscriber
// that stops reading loses events instead of stalling the publisher, which is
// always a request goroutine that has already committed the change.
package pubsub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sakif/pinmap/internal/model"
)

// Kind names a pin change.
type Kind string

const (
	PinAdded   Kind = "pinAdded"
	PinUpdated Kind = "pinUpdated"
	PinDeleted Kind = "pinDeleted"
)

// Kinds lists every event kind.
var Kinds = []Kind{PinAdded, PinUpdated, PinDeleted}

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 16

// Event is one pin change.
type Event struct {
	Kind Kind
	Pin  model.Pin
}

// Bus is safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Kind]map[uint64]chan model.Pin
	nextID uint64
	buffer int
	logger *slog.Logger
}

// New creates a Bus whose subscriber channels hold buffer events.
func New(buffer int, logger *slog.Logger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	subs := make(map[Kind]map[uint64]chan model.Pin, len(Kinds))
	for _, k := range Kinds {
		subs[k] = make(map[uint64]chan model.Pin)
	}
	return &Bus{
		subs:   subs,
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe returns a channel of pins for kind. The channel is closed after ctx
// is done.
func (b *Bus) Subscribe(ctx context.Context, kind Kind) <-chan model.Pin {
	ch := make(chan model.Pin, b.buffer)

	b.mu.Lock()
	topic, ok := b.subs[kind]
	if !ok {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	b.nextID++
	id := b.nextID
	topic[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(topic, id)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Publish delivers pin to every current subscriber of kind without blocking.
func (b *Bus) Publish(kind Kind, pin model.Pin) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs[kind] {
		select {
		case ch <- pin:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				slog.String("kind", string(kind)),
				slog.String("pinID", pin.ID),
				slog.Uint64("subscriber", id),
			)
		}
	}
}

// Subscribers returns the number of live subscriptions for kind.
func (b *Bus) Subscribers(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}
