package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "pinmap-test.apps.googleusercontent.com"

// fakeGoogle answers every certs request with the JWKS of one RSA key and signs
// ID tokens with that key.
type fakeGoogle struct {
	key     *rsa.PrivateKey
	kid     string
	down    bool
	fetches atomic.Int32
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &fakeGoogle{key: key, kid: "key-1"}
}

func (fg *fakeGoogle) RoundTrip(r *http.Request) (*http.Response, error) {
	fg.fetches.Add(1)
	rec := httptest.NewRecorder()
	if fg.down {
		http.Error(rec, "unavailable", http.StatusServiceUnavailable)
		return rec.Result(), nil
	}
	set := map[string]any{"keys": []map[string]string{{
		"kid": fg.kid,
		"kty": "RSA",
		"alg": "RS256",
		"use": "sig",
		"n":   base64.RawURLEncoding.EncodeToString(fg.key.PublicKey.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(fg.key.PublicKey.E)).Bytes()),
	}}}
	rec.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rec).Encode(set)
	return rec.Result(), nil
}

func (fg *fakeGoogle) verifier(t *testing.T, opts ...VerifierOption) *GoogleVerifier {
	t.Helper()
	opts = append([]VerifierOption{WithHTTPClient(&http.Client{Transport: fg})}, opts...)
	v, err := NewGoogleVerifier(testClientID, opts...)
	require.NoError(t, err)
	return v
}

func (fg *fakeGoogle) sign(t *testing.T, kid string, mutate func(jwt.MapClaims)) string {
	t.Helper()
	now := time.Now()
	c := jwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"sub":            "10769150350006150715113082367",
		"aud":            testClientID,
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
		"email":          "ada@example.com",
		"email_verified": true,
		"name":           "Ada Lovelace",
		"picture":        "https://example.com/ada.png",
	}
	if mutate != nil {
		mutate(c)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, c)
	token.Header["kid"] = kid
	signed, err := token.SignedString(fg.key)
	require.NoError(t, err)
	return signed
}

// =========================================================================
// VERIFY TESTS
// =========================================================================

func TestGoogleVerifier_ValidToken(t *testing.T) {
	fg := newFakeGoogle(t)
	v := fg.verifier(t)

	id, err := v.Verify(context.Background(), fg.sign(t, fg.kid, nil))
	require.NoError(t, err)

	assert.Equal(t, "10769150350006150715113082367", id.Subject)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.Equal(t, "Ada Lovelace", id.Name)
	assert.Equal(t, "https://example.com/ada.png", id.Picture)
	assert.True(t, id.EmailVerified)
}

func TestGoogleVerifier_EmailVerifiedAsString(t *testing.T) {
	fg := newFakeGoogle(t)
	v := fg.verifier(t)

	id, err := v.Verify(context.Background(), fg.sign(t, fg.kid, func(c jwt.MapClaims) {
		c["email_verified"] = "true"
	}))
	require.NoError(t, err)
	assert.True(t, id.EmailVerified)
}

func TestGoogleVerifier_Rejects(t *testing.T) {
	fg := newFakeGoogle(t)

	tests := []struct {
		name   string
		kid    string
		mutate func(jwt.MapClaims)
	}{
		{
			name:   "wrong audience",
			kid:    "key-1",
			mutate: func(c jwt.MapClaims) { c["aud"] = "someone-else" },
		},
		{
			name:   "wrong issuer",
			kid:    "key-1",
			mutate: func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com" },
		},
		{
			name: "expired",
			kid:  "key-1",
			mutate: func(c jwt.MapClaims) {
				c["iat"] = time.Now().Add(-2 * time.Hour).Unix()
				c["exp"] = time.Now().Add(-time.Hour).Unix()
			},
		},
		{
			name:   "no email",
			kid:    "key-1",
			mutate: func(c jwt.MapClaims) { delete(c, "email") },
		},
		{
			name:   "email not verified",
			kid:    "key-1",
			mutate: func(c jwt.MapClaims) { c["email_verified"] = false },
		},
		{
			name:   "email verified missing",
			kid:    "key-1",
			mutate: func(c jwt.MapClaims) { delete(c, "email_verified") },
		},
		{
			name: "unknown key",
			kid:  "rotated-away",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := fg.verifier(t)
			id, err := v.Verify(context.Background(), fg.sign(t, tt.kid, tt.mutate))
			assert.Error(t, err)
			assert.Nil(t, id)
		})
	}
}

func TestGoogleVerifier_UnverifiedEmailIsNeverCached(t *testing.T) {
	fg := newFakeGoogle(t)
	v := fg.verifier(t)
	token := fg.sign(t, fg.kid, func(c jwt.MapClaims) {
		c["email"] = "victim@example.com"
		c["email_verified"] = false
	})

	for range 2 {
		_, err := v.Verify(context.Background(), token)
		assert.True(t, errors.Is(err, ErrEmailNotVerified), "got %v", err)
	}
}

func TestGoogleVerifier_RejectsGarbage(t *testing.T) {
	fg := newFakeGoogle(t)
	v := fg.verifier(t)

	_, err := v.Verify(context.Background(), "not-a-jwt")
	assert.Error(t, err)
}

func TestGoogleVerifier_RejectsOtherSigner(t *testing.T) {
	fg := newFakeGoogle(t)
	v := fg.verifier(t)

	// Same kid, different private key: the signature must not verify.
	impostor := newFakeGoogle(t)

	_, err := v.Verify(context.Background(), impostor.sign(t, fg.kid, nil))
	assert.Error(t, err)
}

func TestGoogleVerifier_CachesVerifiedTokens(t *testing.T) {
	fg := newFakeGoogle(t)
	v := fg.verifier(t)
	token := fg.sign(t, fg.kid, nil)

	for range 3 {
		id, err := v.Verify(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", id.Email)
	}
	assert.Equal(t, int32(1), fg.fetches.Load(), "a verified token should not be checked again")
}

func TestGoogleVerifier_CertsEndpointDown(t *testing.T) {
	fg := newFakeGoogle(t)
	fg.down = true
	v := fg.verifier(t)

	_, err := v.Verify(context.Background(), fg.sign(t, fg.kid, nil))
	assert.Error(t, err)
}

func TestNewGoogleVerifier_RequiresClientID(t *testing.T) {
	_, err := NewGoogleVerifier("")
	assert.Error(t, err)
}

func TestClaimTrue(t *testing.T) {
	assert.True(t, claimTrue(true))
	assert.True(t, claimTrue("true"))
	assert.False(t, claimTrue(false))
	assert.False(t, claimTrue("false"))
	assert.False(t, claimTrue(nil))
	assert.False(t, claimTrue(1.0))
}
