// Package graphqlws holds the client side message types of the graphql-ws
// WebSocket subprotocol (subscriptions-transport-ws). The server side is
// served by github.com/graph-gophers/graphql-transport-ws.
//
// A session looks like:
//
//	client → connection_init {authToken}
//	server ← connection_ack
//	client → start {id, query}
//	server ← data {id, payload} ... complete {id}
//	client → stop {id}
//	client → connection_terminate
package graphqlws

import (
	"encoding/json"
	"fmt"
)

// Subprotocol is negotiated in the Sec-WebSocket-Protocol header.
const Subprotocol = "graphql-ws"

// Message types.
const (
	ConnectionInit      = "connection_init"
	ConnectionAck       = "connection_ack"
	ConnectionError     = "connection_error"
	ConnectionKeepAlive = "ka"
	ConnectionTerminate = "connection_terminate"
	Start               = "start"
	Data                = "data"
	Error               = "error"
	Complete            = "complete"
	Stop                = "stop"
)

// Message is one frame on the socket.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// InitPayload is the payload of connection_init. Either field may carry the
// token; authToken is what browser clients send.
type InitPayload struct {
	AuthToken     string `json:"authToken,omitempty"`
	Authorization string `json:"Authorization,omitempty"`
}

// Token returns whichever credential the client sent.
func (p InitPayload) Token() string {
	if p.AuthToken != "" {
		return p.AuthToken
	}
	return p.Authorization
}

// StartPayload is the payload of start: one GraphQL operation.
type StartPayload struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// ErrorPayload is the payload of error and connection_error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewMessage builds a message, encoding payload when it is not nil.
func NewMessage(id, typ string, payload any) (Message, error) {
	msg := Message{ID: id, Type: typ}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("graphqlws: encoding %s payload: %w", typ, err)
	}
	msg.Payload = raw
	return msg, nil
}
