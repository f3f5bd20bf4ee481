package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/pinmap/internal/model"
)

// contextKey is unexported so only this package can set or read the user.
type contextKey string

const userKey contextKey = "user"

// SessionCookie is the name of the cookie holding the session token.
const SessionCookie = "token"

// UserResolver turns tokens into users. service.AuthService implements it.
type UserResolver interface {
	// FindOrCreateUser verifies a Google ID token and returns the matching user,
	// creating it on first login.
	FindOrCreateUser(ctx context.Context, idToken string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// Authenticate resolves the caller from the request and stores the user in the
// context. It never rejects a request: resolvers and handlers decide what needs a
// user (see RequireAuth and UserFromContext).
//
// Sources, in order:
//  1. Authorization: Bearer <token>, as a session token, else as a Google ID token
//  2. the session cookie
func Authenticate(tokens *TokenService, users UserResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := resolveUser(r, tokens, users, logger); user != nil {
				r = r.WithContext(WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects requests that Authenticate could not attach a user to.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthenticated","message":"authentication required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user, or (nil, false) when anonymous.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}

// BearerToken extracts the token from an "Authorization: Bearer ..." header value.
// A bare token without the scheme is accepted too; the original web client sent
// the ID token that way.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	scheme, rest, found := strings.Cut(header, " ")
	if found && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	if found {
		return ""
	}
	return header
}

func resolveUser(r *http.Request, tokens *TokenService, users UserResolver, logger *slog.Logger) *model.User {
	ctx := r.Context()

	if raw := BearerToken(r.Header.Get("Authorization")); raw != "" {
		return ResolveToken(ctx, raw, tokens, users, logger)
	}

	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" && tokens != nil {
		userID, err := tokens.Validate(cookie.Value)
		if err != nil {
			return nil
		}
		user, err := users.GetUserByID(ctx, userID)
		if err != nil {
			logger.Warn("session user lookup failed",
				slog.String("userID", userID),
				slog.String("error", err.Error()),
			)
			return nil
		}
		return user
	}

	return nil
}

// ResolveToken maps a raw token (session or Google ID token) to a user, or nil.
// Subscription sockets are authenticated through it too, on their upgrade request.
func ResolveToken(ctx context.Context, raw string, tokens *TokenService, users UserResolver, logger *slog.Logger) *model.User {
	if tokens != nil {
		if userID, err := tokens.Validate(raw); err == nil {
			user, err := users.GetUserByID(ctx, userID)
			if err != nil {
				logger.Warn("session user lookup failed",
					slog.String("userID", userID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			return user
		}
	}

	user, err := users.FindOrCreateUser(ctx, raw)
	if err != nil {
		logger.Info("bearer token rejected", slog.String("error", err.Error()))
		return nil
	}
	return user
}
