// Package graph exposes the pin service as a GraphQL API: queries and mutations
// over HTTP POST, subscriptions over WebSocket (see ws.go).
package graph

import (
	_ "embed"
	"fmt"

	graphql "github.com/graph-gophers/graphql-go"
)

//go:embed schema.graphql
var schemaSDL string

// MaxQueryDepth bounds nesting so a client cannot ask for pathological queries.
const MaxQueryDepth = 8

// NewSchema parses the schema and binds it to r.
func NewSchema(r *Resolver) (*graphql.Schema, error) {
	schema, err := graphql.ParseSchema(schemaSDL, r,
		graphql.MaxDepth(MaxQueryDepth),
	)
	if err != nil {
		return nil, fmt.Errorf("graph: parsing schema: %w", err)
	}
	return schema, nil
}
