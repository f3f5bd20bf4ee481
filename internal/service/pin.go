package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/pinmap/internal/apperror"
	"github.com/sakif/pinmap/internal/model"
	"github.com/sakif/pinmap/internal/pubsub"
	"github.com/sakif/pinmap/internal/repository"
)

// Publisher receives pin change events. pubsub.Bus implements it.
type Publisher interface {
	Publish(kind pubsub.Kind, pin model.Pin)
}

// CommentInput is the user-supplied part of a comment.
type CommentInput struct {
	Text string `validate:"required,max=1000"`
}

// PinService owns pin creation, deletion and comments.
//
// Every mutation persists first and publishes second; a failed write never
// produces an event.
type PinService struct {
	repo   repository.PinRepository
	events Publisher
	logger *slog.Logger
}

func NewPinService(repo repository.PinRepository, events Publisher, logger *slog.Logger) *PinService {
	return &PinService{
		repo:   repo,
		events: events,
		logger: logger,
	}
}

// ListPins returns every pin, oldest first.
func (s *PinService) ListPins(ctx context.Context) ([]model.Pin, error) {
	pins, err := s.repo.ListPins(ctx)
	if err != nil {
		s.logger.Error("failed to list pins", slog.String("error", err.Error()))
		return nil, storeErr("listing pins", err)
	}
	if pins == nil {
		pins = []model.Pin{}
	}
	return pins, nil
}

// GetPin returns one pin. Unknown ids give apperror.ErrNotFound.
func (s *PinService) GetPin(ctx context.Context, id string) (*model.Pin, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("pinId", "pin ID is required")
	}
	pin, err := s.repo.GetPin(ctx, id)
	if err != nil {
		return nil, storeErr("fetching pin", err)
	}
	return pin, nil
}

// CreatePin validates in, stores a pin authored by author and announces it.
func (s *PinService) CreatePin(ctx context.Context, author *model.User, in model.PinInput) (*model.Pin, error) {
	if author == nil {
		return nil, apperror.Unauthenticated()
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Image = strings.TrimSpace(in.Image)
	in.Content = strings.TrimSpace(in.Content)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	pin := &model.Pin{
		Title:     in.Title,
		Image:     in.Image,
		Content:   in.Content,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Author:    *author,
	}
	if err := s.repo.CreatePin(ctx, pin); err != nil {
		s.logger.Error("failed to create pin",
			slog.String("authorID", author.ID),
			slog.String("error", err.Error()),
		)
		return nil, storeErr("creating pin", err)
	}

	s.logger.Info("pin created",
		slog.String("pinID", pin.ID),
		slog.String("authorID", author.ID),
	)
	s.events.Publish(pubsub.PinAdded, *pin)
	return pin, nil
}

// DeletePin removes a pin owned by user and returns it as it was before deletion.
//
// Only the author may delete: others get apperror.ErrForbidden.
func (s *PinService) DeletePin(ctx context.Context, user *model.User, id string) (*model.Pin, error) {
	if user == nil {
		return nil, apperror.Unauthenticated()
	}

	pin, err := s.GetPin(ctx, id)
	if err != nil {
		return nil, err
	}
	if pin.Author.ID != user.ID {
		s.logger.Warn("pin delete refused",
			slog.String("pinID", pin.ID),
			slog.String("userID", user.ID),
		)
		return nil, apperror.Forbidden("only the author can delete this pin")
	}

	if err := s.repo.DeletePin(ctx, pin.ID); err != nil {
		s.logger.Error("failed to delete pin",
			slog.String("pinID", pin.ID),
			slog.String("error", err.Error()),
		)
		return nil, storeErr("deleting pin", err)
	}

	s.logger.Info("pin deleted", slog.String("pinID", pin.ID))
	s.events.Publish(pubsub.PinDeleted, *pin)
	return pin, nil
}

// CreateComment appends a comment by author to the pin and announces the
// updated pin.
func (s *PinService) CreateComment(ctx context.Context, author *model.User, pinID string, in CommentInput) (*model.Pin, error) {
	if author == nil {
		return nil, apperror.Unauthenticated()
	}
	pinID = strings.TrimSpace(pinID)
	if pinID == "" {
		return nil, apperror.ValidationFailed("pinId", "pin ID is required")
	}

	in.Text = strings.TrimSpace(in.Text)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	pin, err := s.repo.AddComment(ctx, pinID, model.Comment{Text: in.Text, Author: *author})
	if err != nil {
		s.logger.Error("failed to add comment",
			slog.String("pinID", pinID),
			slog.String("error", err.Error()),
		)
		return nil, storeErr("adding comment", err)
	}

	s.logger.Info("comment added",
		slog.String("pinID", pin.ID),
		slog.String("authorID", author.ID),
	)
	s.events.Publish(pubsub.PinUpdated, *pin)
	return pin, nil
}
