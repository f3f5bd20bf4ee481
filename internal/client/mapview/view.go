// Package mapview is the headless model behind the pin map: it decides what
// markers and popup to show from client state and turns user gestures into
// dispatched actions and API calls. Rendering is left to the caller.
package mapview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/pinmap/internal/client/state"
	"github.com/sakif/pinmap/internal/model"
)

// Marker colours.
const (
	ColorUser   = "red"
	ColorDraft  = "hotpink"
	ColorNewPin = "limegreen"
	ColorOldPin = "darkblue"
)

// NewPinWindow is how long a pin is highlighted as new.
const NewPinWindow = 30 * time.Minute

var (
	ErrNoPopup   = errors.New("mapview: no pin selected")
	ErrNotAuthor = errors.New("mapview: only the author can delete a pin")
)

// Viewport is the visible map area.
type Viewport struct {
	Latitude  float64
	Longitude float64
	Zoom      float64
}

// InitialViewport is where the map opens before geolocation answers.
var InitialViewport = Viewport{Latitude: 37.7577, Longitude: -122.4376, Zoom: 13}

// Position is a point on the map.
type Position struct {
	Latitude  float64
	Longitude float64
}

// Button identifies the mouse button of a click.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonMiddle
	ButtonSecondary
)

// Click is a click on the map background.
type Click struct {
	Position
	Button Button
}

// MarkerKind says what a marker stands for.
type MarkerKind string

const (
	MarkerUser  MarkerKind = "user"
	MarkerDraft MarkerKind = "draft"
	MarkerPin   MarkerKind = "pin"
)

// Marker is one icon to draw.
type Marker struct {
	Kind  MarkerKind
	PinID string // only for MarkerPin
	Position
	Color string
}

// Geolocator reports where the user is. Implementations should return promptly
// once ctx is done.
type Geolocator interface {
	CurrentPosition(ctx context.Context) (Position, error)
}

// PinAPI is the slice of the GraphQL client the view calls.
type PinAPI interface {
	GetPins(ctx context.Context) ([]model.Pin, error)
	DeletePin(ctx context.Context, id string) (*model.Pin, error)
}

// MutationStatus is the outcome of a mutation started from the view.
type MutationStatus int

const (
	Succeeded MutationStatus = iota + 1
	Failed
)

func (s MutationStatus) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// MutationResult tells the caller whether local state was changed.
type MutationResult struct {
	Status MutationStatus
	Err    error
}

// View is the map view model. Create it with New and release it with Close.
type View struct {
	store  *state.Store
	api    PinAPI
	geo    Geolocator
	logger *slog.Logger

	unsubscribe func()

	mu       sync.Mutex
	viewport Viewport
	userPos  *Position
	popup    *model.Pin
}

// New creates a view over store. geo may be nil when location is unavailable.
func New(store *state.Store, api PinAPI, geo Geolocator, logger *slog.Logger) *View {
	v := &View{
		store:    store,
		api:      api,
		geo:      geo,
		logger:   logger,
		viewport: InitialViewport,
	}
	v.unsubscribe = store.Subscribe(v.onState)
	return v
}

// Close stops following the store.
func (v *View) Close() {
	v.unsubscribe()
}

// onState keeps the popup in step with its pin: refreshed while the pin is
// listed, closed once it is gone.
func (v *View) onState(s state.State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.popup == nil {
		return
	}
	for _, p := range s.Pins {
		if p.ID == v.popup.ID {
			v.popup = &p
			return
		}
	}
	v.logger.Debug("closing popup for removed pin", "pinID", v.popup.ID)
	v.popup = nil
}

// Load fetches all pins and then asks for the user's position. A failed pin
// fetch is returned; a failed position lookup only means no user marker.
func (v *View) Load(ctx context.Context) error {
	pins, err := v.api.GetPins(ctx)
	if err != nil {
		return fmt.Errorf("mapview: loading pins: %w", err)
	}
	v.store.Dispatch(state.ReplacePins(pins))
	v.logger.Info("pins loaded", "count", len(pins))

	v.locate(ctx)
	return nil
}

func (v *View) locate(ctx context.Context) {
	if v.geo == nil {
		return
	}
	pos, err := v.geo.CurrentPosition(ctx)
	if err != nil {
		v.logger.Debug("geolocation unavailable", "error", err)
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.userPos = &pos
	v.viewport.Latitude = pos.Latitude
	v.viewport.Longitude = pos.Longitude
}

// Viewport returns the visible area.
func (v *View) Viewport() Viewport {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.viewport
}

// SetViewport records a pan or zoom.
func (v *View) SetViewport(vp Viewport) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.viewport = vp
}

// UserPosition returns the user's location if geolocation succeeded.
func (v *View) UserPosition() (Position, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.userPos == nil {
		return Position{}, false
	}
	return *v.userPos, true
}

// HandleMapClick starts a draft at the clicked point, or moves the existing one.
// Only primary-button clicks count.
func (v *View) HandleMapClick(c Click) {
	if c.Button != ButtonPrimary {
		return
	}
	if v.store.State().Draft == nil {
		v.store.Dispatch(state.StartDraft())
	}
	v.store.Dispatch(state.MoveDraft(c.Latitude, c.Longitude))
}

// SelectPin opens the popup for p and makes it the current pin.
func (v *View) SelectPin(p model.Pin) {
	v.mu.Lock()
	v.popup = &p
	v.mu.Unlock()

	v.store.Dispatch(state.Select(p))
}

// ClosePopup hides the popup.
func (v *View) ClosePopup() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.popup = nil
}

// Popup returns the pin whose popup is open.
func (v *View) Popup() (model.Pin, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.popup == nil {
		return model.Pin{}, false
	}
	return *v.popup, true
}

// CanDelete reports whether the delete button should be shown: a popup is open
// and the signed-in user wrote its pin.
func (v *View) CanDelete() bool {
	p, ok := v.Popup()
	return ok && v.isAuthor(p)
}

func (v *View) isAuthor(p model.Pin) bool {
	u := v.store.State().CurrentUser
	return u != nil && u.ID != "" && u.ID == p.Author.ID
}

// DeletePin deletes the popup's pin. Local state changes only after the server
// confirms: on success the popup closes and the pin leaves the list; on failure
// nothing changes and the popup stays open for a retry.
func (v *View) DeletePin(ctx context.Context) MutationResult {
	p, ok := v.Popup()
	if !ok {
		return MutationResult{Status: Failed, Err: ErrNoPopup}
	}
	if !v.isAuthor(p) {
		return MutationResult{Status: Failed, Err: ErrNotAuthor}
	}

	if _, err := v.api.DeletePin(ctx, p.ID); err != nil {
		v.logger.Warn("delete pin failed", "pinID", p.ID, "error", err)
		return MutationResult{Status: Failed, Err: err}
	}

	v.mu.Lock()
	if v.popup != nil && v.popup.ID == p.ID {
		v.popup = nil
	}
	v.mu.Unlock()

	v.store.Dispatch(state.RemovePin(p.ID))
	return MutationResult{Status: Succeeded}
}

// HighlightNewPin picks the marker colour for p: pins at most 30 whole minutes
// old are new.
func HighlightNewPin(p model.Pin, now time.Time) string {
	age := now.Sub(p.CreatedAt).Truncate(time.Minute)
	if age <= NewPinWindow {
		return ColorNewPin
	}
	return ColorOldPin
}

// Markers lists what to draw: the user, the draft, then every pin.
func (v *View) Markers(now time.Time) []Marker {
	s := v.store.State()
	markers := make([]Marker, 0, len(s.Pins)+2)

	if pos, ok := v.UserPosition(); ok {
		markers = append(markers, Marker{Kind: MarkerUser, Position: pos, Color: ColorUser})
	}
	if s.Draft != nil {
		markers = append(markers, Marker{
			Kind:     MarkerDraft,
			Position: Position{Latitude: s.Draft.Latitude, Longitude: s.Draft.Longitude},
			Color:    ColorDraft,
		})
	}
	for _, p := range s.Pins {
		markers = append(markers, Marker{
			Kind:     MarkerPin,
			PinID:    p.ID,
			Position: Position{Latitude: p.Latitude, Longitude: p.Longitude},
			Color:    HighlightNewPin(p, now),
		})
	}
	return markers
}
