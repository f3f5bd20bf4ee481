package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sakif/pinmap/internal/graphqlws"
	"github.com/sakif/pinmap/internal/model"
	"github.com/sakif/pinmap/internal/pubsub"
)

// ErrRejected means the server answered connection_init with connection_error.
var ErrRejected = errors.New("api: subscription connection rejected")

// SubscriberSettings tunes the subscription connection.
type SubscriberSettings struct {
	// ReadTimeout must be longer than PingInterval. Any frame, pongs included,
	// extends it.
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	WriteTimeout     time.Duration
	AckTimeout       time.Duration
	ReconnectTimeout time.Duration
	Buffer           int

	// OnConnect runs after every successful (re)connect, before any event is
	// delivered. Events published while disconnected are lost, so this is the
	// place to refetch.
	OnConnect func()
}

func DefaultSubscriberSettings() *SubscriberSettings {
	return &SubscriberSettings{
		ReadTimeout:      45 * time.Second,
		PingInterval:     20 * time.Second,
		WriteTimeout:     10 * time.Second,
		AckTimeout:       10 * time.Second,
		ReconnectTimeout: 2 * time.Second,
		Buffer:           16,
	}
}

// Feeds carries one channel per pin event kind. All three close when the
// subscription's context ends.
type Feeds struct {
	Added   <-chan model.Pin
	Updated <-chan model.Pin
	Deleted <-chan model.Pin
}

// Subscriber keeps a graphql-ws connection open and reconnects when it drops.
type Subscriber struct {
	url      string
	token    string
	settings *SubscriberSettings
	logger   *slog.Logger
}

// NewSubscriber creates a subscriber for the server at baseURL. An http(s) URL
// is turned into the matching ws(s) URL of the /graphql endpoint.
func NewSubscriber(baseURL, token string, settings *SubscriberSettings, logger *slog.Logger) (*Subscriber, error) {
	u, err := websocketURL(baseURL)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = DefaultSubscriberSettings()
	}
	return &Subscriber{url: u, token: token, settings: settings, logger: logger}, nil
}

func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("api: parsing server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("api: unsupported url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/graphql"
	return u.String(), nil
}

// Subscribe starts the pinAdded, pinUpdated and pinDeleted subscriptions and
// returns their feeds. Events are delivered in the order the server sends them;
// a slow reader holds up the connection rather than losing events.
func (s *Subscriber) Subscribe(ctx context.Context) Feeds {
	outs := map[string]chan model.Pin{
		string(pubsub.PinAdded):   make(chan model.Pin, s.settings.Buffer),
		string(pubsub.PinUpdated): make(chan model.Pin, s.settings.Buffer),
		string(pubsub.PinDeleted): make(chan model.Pin, s.settings.Buffer),
	}
	go s.run(ctx, outs)
	return Feeds{
		Added:   outs[string(pubsub.PinAdded)],
		Updated: outs[string(pubsub.PinUpdated)],
		Deleted: outs[string(pubsub.PinDeleted)],
	}
}

func (s *Subscriber) run(ctx context.Context, outs map[string]chan model.Pin) {
	defer func() {
		for _, out := range outs {
			close(out)
		}
	}()

	for {
		err := s.session(ctx, outs)
		if ctx.Err() != nil {
			return
		}
		s.logger.Info("subscription connection lost", "url", s.url, "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.settings.ReconnectTimeout):
		}
	}
}

// session runs one connection until it fails or ctx ends.
func (s *Subscriber) session(ctx context.Context, outs map[string]chan model.Pin) error {
	ws, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	for _, kind := range pubsub.Kinds {
		field := string(kind)
		start, err := graphqlws.NewMessage(field, graphqlws.Start, graphqlws.StartPayload{Query: subscriptionQuery(field)})
		if err != nil {
			return err
		}
		if err := s.write(ws, start); err != nil {
			return fmt.Errorf("api: starting %s: %w", field, err)
		}
	}
	s.logger.Debug("subscriptions started", "url", s.url)

	if s.settings.OnConnect != nil {
		s.settings.OnConnect()
	}

	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.settings.ReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go s.keepAlive(ctx, ws, done)

	for {
		ws.SetReadDeadline(time.Now().Add(s.settings.ReadTimeout))
		var msg graphqlws.Message
		if err := ws.ReadJSON(&msg); err != nil {
			return fmt.Errorf("api: reading: %w", err)
		}

		switch msg.Type {
		case graphqlws.ConnectionKeepAlive:
		case graphqlws.Data:
			out, ok := outs[msg.ID]
			if !ok {
				s.logger.Warn("data for unknown subscription", "id", msg.ID)
				continue
			}
			pin, err := decodeEvent(msg.ID, msg.Payload)
			if err != nil {
				s.logger.Warn("dropping subscription event", "id", msg.ID, "error", err)
				continue
			}
			select {
			case out <- pin:
			case <-ctx.Done():
				return ctx.Err()
			}
		case graphqlws.Error:
			var p graphqlws.ErrorPayload
			_ = json.Unmarshal(msg.Payload, &p)
			s.logger.Warn("subscription error", "id", msg.ID, "message", p.Message)
		case graphqlws.Complete:
			return fmt.Errorf("api: server completed %s", msg.ID)
		case graphqlws.ConnectionError:
			return ErrRejected
		default:
			s.logger.Debug("ignoring message", "type", msg.Type)
		}
	}
}

// keepAlive pings the server until done closes, and says goodbye when ctx
// ends. It is the only writer once the subscriptions have started.
func (s *Subscriber) keepAlive(ctx context.Context, ws *websocket.Conn, done <-chan struct{}) {
	var tick <-chan time.Time
	if s.settings.PingInterval > 0 {
		ticker := time.NewTicker(s.settings.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			// Best effort; the server also cleans up when the socket closes.
			_ = s.write(ws, graphqlws.Message{Type: graphqlws.ConnectionTerminate})
			ws.Close()
			return
		case <-tick:
			deadline := time.Now().Add(s.settings.WriteTimeout)
			if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("ping failed", "url", s.url, "error", err)
				ws.Close()
				return
			}
		}
	}
}

// connect dials and completes the connection_init / connection_ack handshake.
func (s *Subscriber) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: s.settings.AckTimeout,
		Subprotocols:     []string{graphqlws.Subprotocol},
	}
	// The server authenticates the socket from its upgrade request; the token
	// also goes into connection_init for servers that read it there.
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}
	ws, _, err := dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return nil, fmt.Errorf("api: dialing %s: %w", s.url, err)
	}

	success := false
	defer func() {
		if !success {
			ws.Close()
		}
	}()

	if ws.Subprotocol() != graphqlws.Subprotocol {
		return nil, fmt.Errorf("api: server did not accept the %s subprotocol", graphqlws.Subprotocol)
	}

	hello, err := graphqlws.NewMessage("", graphqlws.ConnectionInit, graphqlws.InitPayload{AuthToken: s.token})
	if err != nil {
		return nil, err
	}
	if err := s.write(ws, hello); err != nil {
		return nil, fmt.Errorf("api: sending connection_init: %w", err)
	}

	ws.SetReadDeadline(time.Now().Add(s.settings.AckTimeout))
	for {
		var msg graphqlws.Message
		if err := ws.ReadJSON(&msg); err != nil {
			return nil, fmt.Errorf("api: waiting for connection_ack: %w", err)
		}
		switch msg.Type {
		case graphqlws.ConnectionAck:
			success = true
			return ws, nil
		case graphqlws.ConnectionError:
			return nil, ErrRejected
		}
	}
}

func (s *Subscriber) write(ws *websocket.Conn, msg graphqlws.Message) error {
	ws.SetWriteDeadline(time.Now().Add(s.settings.WriteTimeout))
	return ws.WriteJSON(msg)
}

// decodeEvent pulls the pin out of a data payload such as
// {"data": {"pinAdded": {...}}}.
func decodeEvent(field string, payload json.RawMessage) (model.Pin, error) {
	var body struct {
		Data   map[string]json.RawMessage `json:"data"`
		Errors []*Error                   `json:"errors"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return model.Pin{}, fmt.Errorf("decoding payload: %w", err)
	}
	if len(body.Errors) > 0 {
		return model.Pin{}, body.Errors[0]
	}
	raw, ok := body.Data[field]
	if !ok || string(raw) == "null" {
		return model.Pin{}, fmt.Errorf("payload has no %s", field)
	}
	var p wirePin
	if err := json.Unmarshal(raw, &p); err != nil {
		return model.Pin{}, fmt.Errorf("decoding pin: %w", err)
	}
	return p.model(), nil
}
