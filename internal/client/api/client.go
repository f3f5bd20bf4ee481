// Package api is a typed client for the pinmap GraphQL endpoint: queries and
// mutations over HTTP, subscriptions over the graphql-ws WebSocket subprotocol.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sakif/pinmap/internal/apperror"
	"github.com/sakif/pinmap/internal/model"
)

// Error is one entry of a GraphQL response's errors list.
type Error struct {
	Message    string   `json:"message"`
	Path       []any    `json:"path,omitempty"`
	Extensions struct {
		Code  string `json:"code,omitempty"`
		Field string `json:"field,omitempty"`
	} `json:"extensions"`
}

func (e *Error) Error() string {
	if e.Extensions.Code != "" {
		return fmt.Sprintf("graphql: %s (%s)", e.Message, e.Extensions.Code)
	}
	return "graphql: " + e.Message
}

// Is lets callers match server error codes against the apperror sentinels,
// e.g. errors.Is(err, apperror.ErrForbidden).
func (e *Error) Is(target error) bool {
	sentinel, ok := codeSentinels[e.Extensions.Code]
	return ok && sentinel == target
}

var codeSentinels = map[string]error{
	apperror.Code(apperror.ErrNotFound):         apperror.ErrNotFound,
	apperror.Code(apperror.ErrValidation):       apperror.ErrValidation,
	apperror.Code(apperror.ErrConflict):         apperror.ErrConflict,
	apperror.Code(apperror.ErrForbidden):        apperror.ErrForbidden,
	apperror.Code(apperror.ErrUnauthenticated):  apperror.ErrUnauthenticated,
	apperror.Code(apperror.ErrAuthVerification): apperror.ErrAuthVerification,
	apperror.Code(apperror.ErrStore):            apperror.ErrStore,
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []*Error        `json:"errors,omitempty"`
}

// Client talks to one pinmap server.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// New creates a client for the server at baseURL (e.g. http://localhost:8080).
// token, when not empty, is sent as a Bearer credential on every request.
func New(baseURL, token string, logger *slog.Logger) *Client {
	http := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15*time.Second).
		SetHeader("Content-Type", "application/json")
	if token != "" {
		http.SetAuthToken(token)
	}
	return &Client{http: http, logger: logger}
}

// do runs one operation and decodes data into out.
func (c *Client) do(ctx context.Context, op, query string, vars map[string]any, out any) error {
	var body response
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(request{Query: query, Variables: vars}).
		SetResult(&body).
		SetError(&body).
		Post("/graphql")
	if err != nil {
		return fmt.Errorf("api: %s: %w", op, err)
	}

	if len(body.Errors) > 0 {
		c.logger.Debug("graphql error", "op", op, "status", resp.StatusCode(), "error", body.Errors[0].Message)
		return fmt.Errorf("api: %s: %w", op, body.Errors[0])
	}
	if resp.IsError() {
		return fmt.Errorf("api: %s: server returned status %d", op, resp.StatusCode())
	}
	if len(body.Data) == 0 || string(body.Data) == "null" {
		return fmt.Errorf("api: %s: empty response", op)
	}
	if err := json.Unmarshal(body.Data, out); err != nil {
		return fmt.Errorf("api: %s: decoding data: %w", op, err)
	}
	return nil
}

// Me returns the signed-in user, or nil when the client is anonymous.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var data struct {
		Me *wireUser `json:"me"`
	}
	if err := c.do(ctx, "me", meQuery, nil, &data); err != nil {
		return nil, err
	}
	if data.Me == nil {
		return nil, nil
	}
	u := data.Me.model()
	return &u, nil
}

// GetPins returns every pin, oldest first.
func (c *Client) GetPins(ctx context.Context) ([]model.Pin, error) {
	var data struct {
		GetPins []wirePin `json:"getPins"`
	}
	if err := c.do(ctx, "getPins", getPinsQuery, nil, &data); err != nil {
		return nil, err
	}
	pins := make([]model.Pin, 0, len(data.GetPins))
	for _, p := range data.GetPins {
		pins = append(pins, p.model())
	}
	return pins, nil
}

// CreatePin creates a pin from in.
func (c *Client) CreatePin(ctx context.Context, in model.PinInput) (*model.Pin, error) {
	var data struct {
		CreatePin wirePin `json:"createPin"`
	}
	vars := map[string]any{
		"title":     in.Title,
		"image":     in.Image,
		"content":   in.Content,
		"latitude":  in.Latitude,
		"longitude": in.Longitude,
	}
	if err := c.do(ctx, "createPin", createPinMutation, vars, &data); err != nil {
		return nil, err
	}
	p := data.CreatePin.model()
	return &p, nil
}

// DeletePin deletes the pin with id and returns it as it was.
func (c *Client) DeletePin(ctx context.Context, id string) (*model.Pin, error) {
	if id == "" {
		return nil, errors.New("api: deletePin: empty pin id")
	}
	var data struct {
		DeletePin wirePin `json:"deletePin"`
	}
	if err := c.do(ctx, "deletePin", deletePinMutation, map[string]any{"pinId": id}, &data); err != nil {
		return nil, err
	}
	p := data.DeletePin.model()
	return &p, nil
}

// CreateComment adds a comment to a pin and returns the updated pin.
func (c *Client) CreateComment(ctx context.Context, pinID, text string) (*model.Pin, error) {
	var data struct {
		CreateComment wirePin `json:"createComment"`
	}
	vars := map[string]any{"pinId": pinID, "text": text}
	if err := c.do(ctx, "createComment", createCommentMutation, vars, &data); err != nil {
		return nil, err
	}
	p := data.CreateComment.model()
	return &p, nil
}
