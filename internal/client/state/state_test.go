package state

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/pinmap/internal/model"
)

var (
	alice = model.User{ID: "u1", Name: "Alice", Email: "alice@example.com"}
	t0    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func pin(id string) model.Pin {
	return model.Pin{ID: id, Title: "pin " + id, Latitude: 1, Longitude: 2, CreatedAt: t0, Author: alice}
}

func ids(pins []model.Pin) []string {
	out := make([]string, 0, len(pins))
	for _, p := range pins {
		out = append(out, p.ID)
	}
	return out
}

func apply(s State, actions ...Action) State {
	for _, a := range actions {
		s = Reduce(s, a)
	}
	return s
}

// =========================================================================
// REDUCER
// =========================================================================

func TestReduce_LoginAndSignout(t *testing.T) {
	s := Reduce(State{}, Login(alice))
	require.NotNil(t, s.CurrentUser)
	assert.Equal(t, "u1", s.CurrentUser.ID)
	assert.True(t, s.IsAuth)

	s = Reduce(s, Signout())
	assert.Nil(t, s.CurrentUser)
	assert.False(t, s.IsAuth)
}

func TestReduce_DraftLifecycle(t *testing.T) {
	s := Reduce(State{}, StartDraft())
	require.NotNil(t, s.Draft)
	assert.Equal(t, Draft{}, *s.Draft)

	s = Reduce(s, MoveDraft(10, 20))
	require.NotNil(t, s.Draft)
	assert.Equal(t, Draft{Latitude: 10, Longitude: 20}, *s.Draft)

	s = Reduce(s, DiscardDraft())
	assert.Nil(t, s.Draft)
}

func TestReduce_CreateDraftClearsCurrentPin(t *testing.T) {
	s := apply(State{}, ReplacePins([]model.Pin{pin("a")}), Select(pin("a")), StartDraft())
	assert.Nil(t, s.CurrentPin)
	assert.NotNil(t, s.Draft)
}

func TestReduce_GetPinsReplacesList(t *testing.T) {
	s := apply(State{}, ReplacePins([]model.Pin{pin("a"), pin("b")}), ReplacePins([]model.Pin{pin("c")}))
	assert.Equal(t, []string{"c"}, ids(s.Pins))

	s = Reduce(s, ReplacePins(nil))
	assert.NotNil(t, s.Pins)
	assert.Empty(t, s.Pins)
}

func TestReduce_CreatePinAppendsInArrivalOrder(t *testing.T) {
	s := apply(State{}, ReplacePins([]model.Pin{pin("a")}), AddPin(pin("b")), AddPin(pin("c")))
	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Pins))
}

func TestReduce_CreatePinForExistingIDMerges(t *testing.T) {
	updated := pin("a")
	updated.Title = "renamed"

	s := apply(State{}, ReplacePins([]model.Pin{pin("a"), pin("b")}), AddPin(updated))

	assert.Equal(t, []string{"a", "b"}, ids(s.Pins))
	assert.Equal(t, "renamed", s.Pins[0].Title)
}

func TestReduce_CreateCommentReplacesPinAndCurrentPin(t *testing.T) {
	commented := pin("a")
	commented.Comments = []model.Comment{{Text: "nice", CreatedAt: t0, Author: alice}}

	s := apply(State{}, ReplacePins([]model.Pin{pin("a"), pin("b")}), Select(pin("a")), UpdatePin(commented))

	require.Len(t, s.Pins[0].Comments, 1)
	assert.Equal(t, "nice", s.Pins[0].Comments[0].Text)
	require.NotNil(t, s.CurrentPin)
	assert.Len(t, s.CurrentPin.Comments, 1)
}

func TestReduce_CreateCommentForUnknownPinIsIgnored(t *testing.T) {
	s := apply(State{}, ReplacePins([]model.Pin{pin("a")}), UpdatePin(pin("zzz")))
	assert.Equal(t, []string{"a"}, ids(s.Pins))
}

func TestReduce_DeletePin(t *testing.T) {
	s := apply(State{}, ReplacePins([]model.Pin{pin("a")}), RemovePin("a"))
	assert.Empty(t, s.Pins)
}

func TestReduce_DuplicateDeleteIsNoop(t *testing.T) {
	once := apply(State{}, ReplacePins([]model.Pin{pin("a"), pin("b")}), RemovePin("a"))
	twice := Reduce(once, RemovePin("a"))

	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"b"}, ids(twice.Pins))
}

func TestReduce_DeleteCurrentPinClearsIt(t *testing.T) {
	s := apply(State{}, ReplacePins([]model.Pin{pin("a"), pin("b")}), Select(pin("b")), RemovePin("b"))
	assert.Nil(t, s.CurrentPin)

	s = apply(State{}, ReplacePins([]model.Pin{pin("a"), pin("b")}), Select(pin("b")), RemovePin("a"))
	require.NotNil(t, s.CurrentPin)
	assert.Equal(t, "b", s.CurrentPin.ID)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	before := apply(State{}, ReplacePins([]model.Pin{pin("a"), pin("b")}), Select(pin("a")), MoveDraft(1, 1))
	snapshot := ids(before.Pins)

	renamed := pin("a")
	renamed.Title = "changed"
	_ = Reduce(before, AddPin(renamed))
	_ = Reduce(before, AddPin(pin("c")))
	_ = Reduce(before, RemovePin("a"))
	_ = Reduce(before, MoveDraft(5, 5))

	assert.Equal(t, snapshot, ids(before.Pins))
	assert.Equal(t, "pin a", before.Pins[0].Title)
	assert.Equal(t, Draft{Latitude: 1, Longitude: 1}, *before.Draft)
}

func TestReduce_IsDeterministic(t *testing.T) {
	actions := []Action{
		Login(alice),
		ReplacePins([]model.Pin{pin("a"), pin("b")}),
		StartDraft(),
		MoveDraft(10, 20),
		AddPin(pin("c")),
		Select(pin("c")),
		UpdatePin(pin("b")),
		RemovePin("a"),
		AddPin(pin("c")),
	}

	first := apply(State{}, actions...)
	second := apply(State{}, actions...)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"b", "c"}, ids(first.Pins))
}

func TestReduce_UnknownActionReturnsStateUnchanged(t *testing.T) {
	s := apply(State{}, ReplacePins([]model.Pin{pin("a")}))
	assert.Equal(t, s, Reduce(s, Action{Type: "NOPE"}))
}

func TestScenario_GetPinsThenDeletedEvent(t *testing.T) {
	s := apply(State{}, ReplacePins([]model.Pin{pin("a")}), RemovePin("a"))
	assert.Equal(t, []model.Pin{}, s.Pins)
}

// =========================================================================
// STORE
// =========================================================================

func newTestStore() *Store {
	return NewStore(State{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStore_DispatchNotifiesListeners(t *testing.T) {
	store := newTestStore()

	var seen []int
	unsubscribe := store.Subscribe(func(s State) { seen = append(seen, len(s.Pins)) })

	store.Dispatch(AddPin(pin("a")))
	store.Dispatch(AddPin(pin("b")))
	unsubscribe()
	store.Dispatch(AddPin(pin("c")))

	assert.Equal(t, []int{1, 2}, seen)
	assert.Len(t, store.State().Pins, 3)
}

func TestStore_UnsubscribeTwiceIsSafe(t *testing.T) {
	store := newTestStore()
	unsubscribe := store.Subscribe(func(State) {})
	unsubscribe()
	assert.NotPanics(t, unsubscribe)
}

func TestStore_ListenerMayReadState(t *testing.T) {
	store := newTestStore()
	var got int
	store.Subscribe(func(State) { got = len(store.State().Pins) })

	store.Dispatch(AddPin(pin("a")))
	assert.Equal(t, 1, got)
}

func TestStore_ConcurrentDispatchLosesNothing(t *testing.T) {
	store := newTestStore()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Dispatch(AddPin(pin(string(rune('A' + i)))))
		}()
	}
	wg.Wait()

	assert.Len(t, store.State().Pins, 50)
}

func TestStore_InitialPinsNeverNil(t *testing.T) {
	assert.NotNil(t, newTestStore().State().Pins)
}
