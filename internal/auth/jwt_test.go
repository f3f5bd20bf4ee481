package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "session-secret-for-tests"

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret)
	require.NoError(t, err)
	return ts
}

// signHS256 builds a session-shaped token with arbitrary claims.
func signHS256(t *testing.T, secret string, c jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestNewTokenService_SecretLength(t *testing.T) {
	_, err := NewTokenService("too-short")
	assert.Error(t, err)

	ts, err := NewTokenService("exactly-16-chars")
	require.NoError(t, err)
	assert.Equal(t, DefaultSessionTTL, ts.TTL())
}

func TestSessionToken_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("cu3k2qk9gbd4m1")
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	userID, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "cu3k2qk9gbd4m1", userID)
}

func TestSessionToken_CarriesIssuerAndExpiry(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.GenerateWithDuration("u1", time.Hour)
	require.NoError(t, err)

	var c jwt.RegisteredClaims
	_, _, err = jwt.NewParser().ParseUnverified(token, &c)
	require.NoError(t, err)
	assert.Equal(t, "pinmap", c.Issuer)
	assert.Equal(t, "u1", c.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), c.ExpiresAt.Time, 5*time.Second)
}

func TestSessionToken_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	now := time.Now()
	valid := jwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "pinmap",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	expired, err := ts.GenerateWithDuration("u1", -time.Second)
	require.NoError(t, err)

	good := signHS256(t, testSecret, valid)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt.token"},
		{"expired", expired},
		{"tampered signature", good[:len(good)-3] + "xxx"},
		{"other secret", signHS256(t, "some-other-secret-value", valid)},
		{"foreign issuer", signHS256(t, testSecret, func() jwt.RegisteredClaims { c := valid; c.Issuer = "accounts.google.com"; return c }())},
		{"no subject", signHS256(t, testSecret, func() jwt.RegisteredClaims { c := valid; c.Subject = ""; return c }())},
		{"no expiry", signHS256(t, testSecret, func() jwt.RegisteredClaims { c := valid; c.ExpiresAt = nil; return c }())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Validate(tt.token)
			assert.Error(t, err)
		})
	}
}

// A Google ID token must never pass as a session token, whatever its claims.
func TestSessionToken_RejectsRS256(t *testing.T) {
	ts := newTestTokenService(t)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	google, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Subject:   "u1",
		Issuer:    "pinmap",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(key)
	require.NoError(t, err)

	_, err = ts.Validate(google)
	assert.Error(t, err)
}

func TestSessionToken_DistinctPerUser(t *testing.T) {
	ts := newTestTokenService(t)
	a, err := ts.Generate("user-a")
	require.NoError(t, err)
	b, err := ts.Generate("user-b")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
