// Package state is the client-side state container: one State value, changed
// only by dispatching Actions through a Store.
package state

import (
	"slices"

	"github.com/sakif/pinmap/internal/model"
)

// ActionType names a state transition.
type ActionType string

const (
	LoginUser           ActionType = "LOGIN_USER"
	SignoutUser         ActionType = "SIGNOUT_USER"
	GetPins             ActionType = "GET_PINS"
	CreateDraft         ActionType = "CREATE_DRAFT"
	UpdateDraftLocation ActionType = "UPDATE_DRAFT_LOCATION"
	DeleteDraft         ActionType = "DELETE_DRAFT"
	SetPin              ActionType = "SET_PIN"
	CreatePin           ActionType = "CREATE_PIN"
	CreateComment       ActionType = "CREATE_COMMENT"
	DeletePin           ActionType = "DELETE_PIN"
)

// Action is one dispatched change. Which payload field is read depends on Type;
// use the constructors below rather than building Actions by hand.
type Action struct {
	Type     ActionType
	User     *model.User
	Pins     []model.Pin
	Pin      *model.Pin
	PinID    string
	Location Location
}

// Location is a point picked on the map.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Draft is a pin under construction. It never leaves the client.
type Draft struct {
	Latitude  float64
	Longitude float64
}

// State is everything the map client knows.
type State struct {
	CurrentUser *model.User
	IsAuth      bool
	Draft       *Draft
	Pins        []model.Pin // arrival order
	CurrentPin  *model.Pin
}

// HasPin reports whether a pin with id is in the list.
func (s State) HasPin(id string) bool {
	return s.indexOf(id) >= 0
}

func (s State) indexOf(id string) int {
	return slices.IndexFunc(s.Pins, func(p model.Pin) bool { return p.ID == id })
}

// Login records u as the signed-in user.
func Login(u model.User) Action { return Action{Type: LoginUser, User: &u} }

// Signout clears the signed-in user.
func Signout() Action { return Action{Type: SignoutUser} }

// ReplacePins swaps the whole pin list for pins.
func ReplacePins(pins []model.Pin) Action { return Action{Type: GetPins, Pins: pins} }

// StartDraft opens an empty draft pin.
func StartDraft() Action { return Action{Type: CreateDraft} }

// MoveDraft places the draft at lat, lng.
func MoveDraft(lat, lng float64) Action {
	return Action{Type: UpdateDraftLocation, Location: Location{Latitude: lat, Longitude: lng}}
}

// DiscardDraft drops the draft.
func DiscardDraft() Action { return Action{Type: DeleteDraft} }

// Select makes p the current pin and drops any draft.
func Select(p model.Pin) Action { return Action{Type: SetPin, Pin: &p} }

// AddPin appends p, or replaces the listed pin with the same ID.
func AddPin(p model.Pin) Action { return Action{Type: CreatePin, Pin: &p} }

// UpdatePin replaces the listed pin with p's ID, and the current pin if it
// is the same one. Comment events arrive this way.
func UpdatePin(p model.Pin) Action { return Action{Type: CreateComment, Pin: &p} }

// RemovePin drops the pin with id from the list and clears it as current.
func RemovePin(id string) Action { return Action{Type: DeletePin, PinID: id} }

// Reduce returns the state that results from applying a to s.
//
// It never mutates s: the pin list is copied whenever it changes, and pointer
// fields in the result point at fresh values. Unknown action types return s
// unchanged.
func Reduce(s State, a Action) State {
	switch a.Type {
	case LoginUser:
		s.CurrentUser = clone(a.User)
		s.IsAuth = a.User != nil
	case SignoutUser:
		s.CurrentUser = nil
		s.IsAuth = false
	case GetPins:
		s.Pins = slices.Clone(a.Pins)
		if s.Pins == nil {
			s.Pins = []model.Pin{}
		}
	case CreateDraft:
		s.CurrentPin = nil
		s.Draft = &Draft{}
	case UpdateDraftLocation:
		s.Draft = &Draft{Latitude: a.Location.Latitude, Longitude: a.Location.Longitude}
	case DeleteDraft:
		s.Draft = nil
	case SetPin:
		s.CurrentPin = clone(a.Pin)
		s.Draft = nil
	case CreatePin:
		if a.Pin == nil {
			return s
		}
		// An echoed event for a pin we already hold replaces it in place.
		if i := s.indexOf(a.Pin.ID); i >= 0 {
			s.Pins = replaceAt(s.Pins, i, *a.Pin)
		} else {
			s.Pins = append(slices.Clip(s.Pins), *a.Pin)
		}
	case CreateComment:
		if a.Pin == nil {
			return s
		}
		if i := s.indexOf(a.Pin.ID); i >= 0 {
			s.Pins = replaceAt(s.Pins, i, *a.Pin)
		}
		if s.CurrentPin != nil && s.CurrentPin.ID == a.Pin.ID {
			s.CurrentPin = clone(a.Pin)
		}
	case DeletePin:
		i := s.indexOf(a.PinID)
		if i < 0 {
			return s
		}
		s.Pins = slices.Delete(slices.Clone(s.Pins), i, i+1)
		if s.CurrentPin != nil && s.CurrentPin.ID == a.PinID {
			s.CurrentPin = nil
		}
	}
	return s
}

func replaceAt(pins []model.Pin, i int, p model.Pin) []model.Pin {
	out := slices.Clone(pins)
	out[i] = p
	return out
}

func clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
