package graph

import (
	"context"
	"net/http"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/graph-gophers/graphql-transport-ws/graphqlws"

	"github.com/sakif/pinmap/internal/auth"
)

// NewHandler serves one endpoint for both transports. Requests offering the
// graphql-ws subprotocol are upgraded and carry subscriptions; everything else
// must be a JSON POST handled by relay.Handler.
//
// A socket keeps the user its upgrade request was authenticated as, and is
// closed once ctx ends.
func NewHandler(ctx context.Context, schema *graphql.Schema) http.Handler {
	return graphqlws.NewHandlerFunc(schema, postOnly(&relay.Handler{Schema: schema}),
		graphqlws.WithContextGenerator(socketContext(ctx)),
	)
}

// socketContext derives a socket's context from base rather than from the
// upgrade request, whose context ends as soon as the upgrade returns.
func socketContext(base context.Context) graphqlws.ContextGeneratorFunc {
	return func(_ context.Context, r *http.Request) (context.Context, error) {
		if user, ok := auth.UserFromContext(r.Context()); ok {
			return auth.WithUser(base, user), nil
		}
		return base, nil
	}
}

func postOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "GraphQL requests must be POSTed as JSON", http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}
