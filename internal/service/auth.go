// Package service holds the business rules of the pin map. Services sit between
// the transports (REST handlers, GraphQL resolvers) and the repositories:
//
//	Handler / Resolver → Service → Repository → SQLite or Mongo
//
// Services accept plain values, never HTTP types, and return apperror values that
// each transport maps to its own status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/pinmap/internal/apperror"
	"github.com/sakif/pinmap/internal/auth"
	"github.com/sakif/pinmap/internal/model"
	"github.com/sakif/pinmap/internal/repository"
)

// IdentityVerifier checks an identity provider token. auth.GoogleVerifier
// implements it; tests use a stub.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*auth.Identity, error)
}

// AuthService resolves Google ID tokens to users and issues session tokens.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users     repository.UserRepository → user records keyed by email
//   - verifier  IdentityVerifier          → Google ID token checks
//   - tokens    *auth.TokenService        → session JWTs for the browser flow
//   - logger    *slog.Logger
type AuthService struct {
	users    repository.UserRepository
	verifier IdentityVerifier
	tokens   *auth.TokenService
	logger   *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	verifier IdentityVerifier,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		verifier: verifier,
		tokens:   tokens,
		logger:   logger,
	}
}

// AuthResult bundles a user and a freshly issued session token so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// FindOrCreateUser verifies idToken and returns the user with the token's email,
// creating one from the token's name, email and picture on first login.
//
// ERRORS:
//   - apperror.ErrAuthVerification → the token was rejected; retrying is useless
//   - apperror.ErrStore            → lookup or create failed; a retry may work
//
// Two first logins racing for one email both end up with the same user: the
// loser's insert hits the unique email index and it re-reads the winner's row.
func (s *AuthService) FindOrCreateUser(ctx context.Context, idToken string) (*model.User, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, apperror.AuthVerification(errors.New("empty token"))
	}

	id, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		return nil, apperror.AuthVerification(err)
	}
	// Users are keyed by email; an address nobody proved ownership of must not
	// match an existing account.
	if !id.EmailVerified {
		return nil, apperror.AuthVerification(fmt.Errorf("%w: %s", auth.ErrEmailNotVerified, id.Email))
	}

	user, err := s.users.GetByEmail(ctx, id.Email)
	switch {
	case err == nil:
		return user, nil
	case !errors.Is(err, apperror.ErrNotFound):
		s.logger.Error("user lookup failed",
			slog.String("email", id.Email),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Store("looking up user", err)
	}

	user = &model.User{
		Name:    id.Name,
		Email:   id.Email,
		Picture: id.Picture,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return s.rereadUser(ctx, id.Email)
		}
		s.logger.Error("user create failed",
			slog.String("email", id.Email),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Store("creating user", err)
	}

	s.logger.Info("user created",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

func (s *AuthService) rereadUser(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperror.Store("looking up user", err)
	}
	s.logger.Debug("concurrent first login resolved", slog.String("userID", user.ID))
	return user, nil
}

// Login runs FindOrCreateUser and issues a session token for the result. The
// OAuth callback uses it after exchanging the authorization code.
func (s *AuthService) Login(ctx context.Context, idToken string) (*AuthResult, error) {
	user, err := s.FindOrCreateUser(ctx, idToken)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("user signed in", slog.String("userID", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given internal ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("fetching user", err)
	}
	return user, nil
}

// storeErr passes domain errors through and marks everything else as a
// persistence failure.
func storeErr(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Store(op, err)
}
