// Command pinwatch is a terminal client for a pinmap server. It keeps the same
// client state and map view model a browser client would, and prints them.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/sakif/pinmap/internal/client/api"
	"github.com/sakif/pinmap/internal/client/mapview"
	"github.com/sakif/pinmap/internal/client/state"
	"github.com/sakif/pinmap/internal/model"
)

const version = "0.1.0"

const usage = `Pin map terminal client.

The token is a Google ID token or a pinmap session token.

Usage:
    pinwatch list [--server=<url>]
    pinwatch watch [--server=<url>] [--token=<token>] [--at=<lat,lng>]
    pinwatch create --token=<token> --title=<title> --lat=<lat> --lng=<lng>
        [--image=<url>] [--content=<text>] [--server=<url>]
    pinwatch comment --token=<token> <pin_id> <text> [--server=<url>]
    pinwatch delete --token=<token> <pin_id> [--server=<url>]
    pinwatch -h | --help
    pinwatch --version

Options:
    -h --help          Show this screen.
    --version          Show version.
    --server=<url>     Server base url [default: http://localhost:8080].
    --token=<token>    Bearer token.
    --at=<lat,lng>     Your position, shown as the user marker.
    --title=<title>    Pin title.
    --lat=<lat>        Pin latitude.
    --lng=<lng>        Pin longitude.
    --image=<url>      Pin image url.
    --content=<text>   Pin text.`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level := slog.LevelWarn
	if os.Getenv("PINWATCH_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, _ := opts.String("--server")
	token, _ := opts.String("--token")
	client := api.New(server, token, logger)

	switch {
	case flag(opts, "list"):
		err = list(ctx, client)
	case flag(opts, "watch"):
		err = watch(ctx, opts, client, server, token, logger)
	case flag(opts, "create"):
		err = create(ctx, opts, client)
	case flag(opts, "comment"):
		err = comment(ctx, opts, client)
	case flag(opts, "delete"):
		err = remove(ctx, opts, client, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "pinwatch: %s\n", err)
		os.Exit(1)
	}
}

func flag(opts docopt.Opts, name string) bool {
	v, _ := opts.Bool(name)
	return v
}

func list(ctx context.Context, client *api.Client) error {
	pins, err := client.GetPins(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, p := range pins {
		printPin(p, mapview.HighlightNewPin(p, now))
	}
	fmt.Printf("%d pins\n", len(pins))
	return nil
}

// watch keeps a live copy of the map and reprints it on every change.
func watch(ctx context.Context, opts docopt.Opts, client *api.Client, server, token string, logger *slog.Logger) error {
	store := state.NewStore(state.State{}, logger)

	var geo mapview.Geolocator
	if at, _ := opts.String("--at"); at != "" {
		pos, err := parsePosition(at)
		if err != nil {
			return err
		}
		geo = fixedPosition(pos)
	}

	view := mapview.New(store, client, geo, logger)
	defer view.Close()

	if token != "" {
		me, err := client.Me(ctx)
		if err != nil {
			return err
		}
		if me != nil {
			store.Dispatch(state.Login(*me))
			fmt.Printf("signed in as %s <%s>\n", me.Name, me.Email)
		}
	}

	unsubscribe := store.Subscribe(func(state.State) { render(view) })
	defer unsubscribe()

	settings := api.DefaultSubscriberSettings()
	settings.OnConnect = func() {
		// Anything published while we were disconnected is only visible by refetching.
		if err := view.Load(ctx); err != nil {
			logger.Warn("refreshing pins", "error", err)
		}
	}
	sub, err := api.NewSubscriber(server, token, settings, logger)
	if err != nil {
		return err
	}
	feeds := sub.Subscribe(ctx)

	err = view.Run(ctx, mapview.Events{Added: feeds.Added, Updated: feeds.Updated, Deleted: feeds.Deleted})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func render(view *mapview.View) {
	vp := view.Viewport()
	fmt.Printf("\n== map @ %.4f,%.4f zoom %.0f ==\n", vp.Latitude, vp.Longitude, vp.Zoom)
	for _, m := range view.Markers(time.Now()) {
		label := string(m.Kind)
		if m.PinID != "" {
			label = m.PinID
		}
		fmt.Printf("  %-10s %-24s %11.6f %11.6f\n", m.Color, label, m.Latitude, m.Longitude)
	}
}

func create(ctx context.Context, opts docopt.Opts, client *api.Client) error {
	lat, err := floatOpt(opts, "--lat")
	if err != nil {
		return err
	}
	lng, err := floatOpt(opts, "--lng")
	if err != nil {
		return err
	}
	title, _ := opts.String("--title")
	image, _ := opts.String("--image")
	content, _ := opts.String("--content")

	p, err := client.CreatePin(ctx, model.PinInput{
		Title:     title,
		Image:     image,
		Content:   content,
		Latitude:  lat,
		Longitude: lng,
	})
	if err != nil {
		return err
	}
	printPin(*p, mapview.ColorNewPin)
	return nil
}

func comment(ctx context.Context, opts docopt.Opts, client *api.Client) error {
	id, _ := opts.String("<pin_id>")
	text, _ := opts.String("<text>")
	p, err := client.CreateComment(ctx, id, text)
	if err != nil {
		return err
	}
	for _, c := range p.Comments {
		fmt.Printf("  %s: %s\n", c.Author.Name, c.Text)
	}
	return nil
}

// remove goes through the view model so the author check and the result
// handling match what an interactive client does.
func remove(ctx context.Context, opts docopt.Opts, client *api.Client, logger *slog.Logger) error {
	id, _ := opts.String("<pin_id>")

	me, err := client.Me(ctx)
	if err != nil {
		return err
	}
	if me == nil {
		return fmt.Errorf("token was not accepted")
	}

	store := state.NewStore(state.State{}, logger)
	store.Dispatch(state.Login(*me))
	view := mapview.New(store, client, nil, logger)
	defer view.Close()

	if err := view.Load(ctx); err != nil {
		return err
	}
	var target *model.Pin
	for _, p := range store.State().Pins {
		if p.ID == id {
			target = &p
			break
		}
	}
	if target == nil {
		return fmt.Errorf("no pin %s", id)
	}
	view.SelectPin(*target)

	res := view.DeletePin(ctx)
	fmt.Printf("delete %s: %s\n", id, res.Status)
	return res.Err
}

func printPin(p model.Pin, color string) {
	fmt.Printf("%-24s %-10s %11.6f %11.6f  %s (%s, %d comments)\n",
		p.ID, color, p.Latitude, p.Longitude, p.Title, p.Author.Name, len(p.Comments))
}

func floatOpt(opts docopt.Opts, key string) (float64, error) {
	raw, _ := opts.String(key)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func parsePosition(s string) (mapview.Position, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return mapview.Position{}, fmt.Errorf("--at: want <lat,lng>, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return mapview.Position{}, fmt.Errorf("--at: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return mapview.Position{}, fmt.Errorf("--at: %w", err)
	}
	return mapview.Position{Latitude: lat, Longitude: lng}, nil
}

// fixedPosition is a Geolocator that always answers with the same point.
type fixedPosition mapview.Position

func (f fixedPosition) CurrentPosition(context.Context) (mapview.Position, error) {
	return mapview.Position(f), nil
}
