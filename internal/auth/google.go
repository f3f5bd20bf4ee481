package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

const (
	defaultCacheTTL      = 5 * time.Minute
	defaultCacheCapacity = 10_000
)

// googleIssuers are the two "iss" values Google uses for ID tokens.
var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// ErrEmailNotVerified means Google has not verified the address in the token.
// Users are keyed by email, so such a token must never resolve to a user.
var ErrEmailNotVerified = errors.New("auth: Google account email is not verified")

// Identity is the verified profile carried by a Google ID token.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// GoogleVerifier validates Google ID tokens for one OAuth client.
//
// Signature, audience and expiry are checked by idtoken, which also caches
// Google's signing keys for as long as Google's cache headers allow. On top of
// that the issuer must be Google's and the email must be present and verified.
//
// Tokens that pass are remembered until they expire, capped at the cache TTL,
// so a client that sends its ID token with every request is verified once.
type GoogleVerifier struct {
	clientID   string
	validator  *idtoken.Validator
	httpClient *http.Client
	cacheTTL   time.Duration
	verified   *ttlcache.Cache[string, *Identity]
}

// VerifierOption customises a GoogleVerifier.
type VerifierOption func(*GoogleVerifier)

// WithHTTPClient sets the client used to fetch Google's signing keys.
func WithHTTPClient(c *http.Client) VerifierOption {
	return func(v *GoogleVerifier) { v.httpClient = c }
}

// WithCacheTTL caps how long a verified token is trusted without re-checking.
// Zero disables the cache.
func WithCacheTTL(ttl time.Duration) VerifierOption {
	return func(v *GoogleVerifier) { v.cacheTTL = ttl }
}

// NewGoogleVerifier creates a verifier that accepts tokens whose audience is clientID.
func NewGoogleVerifier(clientID string, opts ...VerifierOption) (*GoogleVerifier, error) {
	if clientID == "" {
		return nil, errors.New("auth: OAuth client ID is required")
	}

	v := &GoogleVerifier{
		clientID:   clientID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cacheTTL:   defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(v)
	}

	validator, err := idtoken.NewValidator(context.Background(), option.WithHTTPClient(v.httpClient))
	if err != nil {
		return nil, fmt.Errorf("auth: creating ID token validator: %w", err)
	}
	v.validator = validator

	v.verified = ttlcache.New[string, *Identity](
		ttlcache.WithCapacity[string, *Identity](defaultCacheCapacity),
		ttlcache.WithDisableTouchOnHit[string, *Identity](),
	)
	return v, nil
}

// Verify checks idToken and returns the identity it carries.
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	if item := v.verified.Get(idToken); item != nil {
		id := *item.Value()
		return &id, nil
	}

	payload, err := v.validator.Validate(ctx, idToken, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("auth: verifying Google ID token: %w", err)
	}

	id, err := identityFromPayload(payload)
	if err != nil {
		return nil, err
	}

	ttl := min(time.Until(time.Unix(payload.Expires, 0)), v.cacheTTL)
	if ttl > 0 {
		cached := *id
		v.verified.Set(idToken, &cached, ttl)
	}
	return id, nil
}

func identityFromPayload(p *idtoken.Payload) (*Identity, error) {
	if !googleIssuers[p.Issuer] {
		return nil, fmt.Errorf("auth: unexpected issuer %q", p.Issuer)
	}

	email, _ := p.Claims["email"].(string)
	if email == "" {
		return nil, errors.New("auth: Google ID token has no email claim")
	}
	if !claimTrue(p.Claims["email_verified"]) {
		return nil, fmt.Errorf("%w: %s", ErrEmailNotVerified, email)
	}

	name, _ := p.Claims["name"].(string)
	picture, _ := p.Claims["picture"].(string)
	return &Identity{
		Subject:       p.Subject,
		Email:         email,
		EmailVerified: true,
		Name:          name,
		Picture:       picture,
	}, nil
}

// claimTrue reads a boolean claim. Some Google tokens carry it as a string.
func claimTrue(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true"
	}
	return false
}
