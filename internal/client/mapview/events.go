package mapview

import (
	"context"

	"github.com/sakif/pinmap/internal/client/state"
	"github.com/sakif/pinmap/internal/model"
)

// Events are the three pin change streams the view follows.
type Events struct {
	Added   <-chan model.Pin
	Updated <-chan model.Pin
	Deleted <-chan model.Pin
}

// Run applies incoming events to the store until ctx ends or every stream is
// closed. Events on one stream are applied in order; the three streams are not
// ordered relative to each other.
func (v *View) Run(ctx context.Context, ev Events) error {
	added, updated, deleted := ev.Added, ev.Updated, ev.Deleted
	for added != nil || updated != nil || deleted != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-added:
			if !ok {
				added = nil
				continue
			}
			v.store.Dispatch(state.AddPin(p))
		case p, ok := <-updated:
			if !ok {
				updated = nil
				continue
			}
			v.store.Dispatch(state.UpdatePin(p))
		case p, ok := <-deleted:
			if !ok {
				deleted = nil
				continue
			}
			v.store.Dispatch(state.RemovePin(p.ID))
		}
	}
	return nil
}
