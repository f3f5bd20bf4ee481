package server

import (
	"context"
	"log/slog"

	"github.com/sakif/pinmap/internal/model"
)

type imageRemover interface {
	Owner(url string) (string, bool)
	Delete(ctx context.Context, url string) error
}

type pinLister interface {
	ListPins(ctx context.Context) ([]model.Pin, error)
}

// imageJanitor removes the uploaded image of a deleted pin. An image is only
// removed when the pin's author uploaded it and no remaining pin shows it.
type imageJanitor struct {
	images imageRemover
	pins   pinLister
	logger *slog.Logger
}

// run cleans up after every pin on deleted until the channel closes.
func (j *imageJanitor) run(ctx context.Context, deleted <-chan model.Pin) {
	for pin := range deleted {
		j.cleanup(ctx, pin)
	}
}

func (j *imageJanitor) cleanup(ctx context.Context, pin model.Pin) {
	if pin.Image == "" {
		return
	}
	owner, ok := j.images.Owner(pin.Image)
	if !ok || owner != pin.Author.ID {
		j.logger.Debug("keeping image not uploaded by the pin's author",
			slog.String("pinID", pin.ID),
			slog.String("image", pin.Image),
		)
		return
	}

	pins, err := j.pins.ListPins(ctx)
	if err != nil {
		j.logger.Warn("listing pins before removing image",
			slog.String("pinID", pin.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	for _, p := range pins {
		if p.Image == pin.Image {
			return
		}
	}

	if err := j.images.Delete(ctx, pin.Image); err != nil {
		j.logger.Warn("removing image of deleted pin",
			slog.String("pinID", pin.ID),
			slog.String("error", err.Error()),
		)
	}
}
