package graph

import (
	"context"
	"log/slog"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/sakif/pinmap/internal/auth"
	"github.com/sakif/pinmap/internal/model"
	"github.com/sakif/pinmap/internal/pubsub"
	"github.com/sakif/pinmap/internal/service"
)

// PinService is what the resolvers need from service.PinService.
type PinService interface {
	ListPins(ctx context.Context) ([]model.Pin, error)
	CreatePin(ctx context.Context, author *model.User, in model.PinInput) (*model.Pin, error)
	DeletePin(ctx context.Context, user *model.User, id string) (*model.Pin, error)
	CreateComment(ctx context.Context, author *model.User, pinID string, in service.CommentInput) (*model.Pin, error)
}

// Subscriber hands out pin event streams. pubsub.Bus implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, kind pubsub.Kind) <-chan model.Pin
}

// Resolver is the root resolver for Query, Mutation and Subscription. The
// caller comes from the request context (auth.UserFromContext).
type Resolver struct {
	pins   PinService
	events Subscriber
	logger *slog.Logger
}

func NewResolver(pins PinService, events Subscriber, logger *slog.Logger) *Resolver {
	return &Resolver{pins: pins, events: events, logger: logger}
}

func currentUser(ctx context.Context) *model.User {
	user, _ := auth.UserFromContext(ctx)
	return user
}

// =========================================================================
// QUERY
// =========================================================================

func (r *Resolver) Me(ctx context.Context) *userResolver {
	user := currentUser(ctx)
	if user == nil {
		return nil
	}
	return &userResolver{u: *user}
}

func (r *Resolver) GetPins(ctx context.Context) ([]*pinResolver, error) {
	pins, err := r.pins.ListPins(ctx)
	if err != nil {
		return nil, gqlError(err)
	}
	return newPinResolvers(pins), nil
}

// =========================================================================
// MUTATION
// =========================================================================

type createPinArgs struct {
	Title     string
	Image     *string
	Content   *string
	Latitude  float64
	Longitude float64
}

func (r *Resolver) CreatePin(ctx context.Context, args createPinArgs) (*pinResolver, error) {
	in := model.PinInput{
		Title:     args.Title,
		Image:     deref(args.Image),
		Content:   deref(args.Content),
		Latitude:  args.Latitude,
		Longitude: args.Longitude,
	}
	pin, err := r.pins.CreatePin(ctx, currentUser(ctx), in)
	if err != nil {
		return nil, gqlError(err)
	}
	return &pinResolver{p: *pin}, nil
}

func (r *Resolver) DeletePin(ctx context.Context, args struct{ PinID graphql.ID }) (*pinResolver, error) {
	pin, err := r.pins.DeletePin(ctx, currentUser(ctx), string(args.PinID))
	if err != nil {
		return nil, gqlError(err)
	}
	return &pinResolver{p: *pin}, nil
}

func (r *Resolver) CreateComment(ctx context.Context, args struct {
	PinID graphql.ID
	Text  string
}) (*pinResolver, error) {
	pin, err := r.pins.CreateComment(ctx, currentUser(ctx), string(args.PinID), service.CommentInput{Text: args.Text})
	if err != nil {
		return nil, gqlError(err)
	}
	return &pinResolver{p: *pin}, nil
}

// =========================================================================
// SUBSCRIPTION
// =========================================================================
//
// Each stream lives as long as the subscription context: stopping the
// operation or closing the socket cancels it, the bus closes its channel and
// the forwarding goroutine exits.

func (r *Resolver) PinAdded(ctx context.Context) <-chan *pinResolver {
	return r.stream(ctx, pubsub.PinAdded)
}

func (r *Resolver) PinUpdated(ctx context.Context) <-chan *pinResolver {
	return r.stream(ctx, pubsub.PinUpdated)
}

func (r *Resolver) PinDeleted(ctx context.Context) <-chan *pinResolver {
	return r.stream(ctx, pubsub.PinDeleted)
}

func (r *Resolver) stream(ctx context.Context, kind pubsub.Kind) <-chan *pinResolver {
	events := r.events.Subscribe(ctx, kind)
	out := make(chan *pinResolver)

	go func() {
		defer close(out)
		for pin := range events {
			select {
			case out <- &pinResolver{p: pin}:
			case <-ctx.Done():
				return
			}
		}
	}()

	r.logger.Debug("subscription started", slog.String("kind", string(kind)))
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
