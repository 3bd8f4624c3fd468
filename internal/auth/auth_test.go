package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/julianstephens/habitd/internal/errors"
)

var secret = []byte("test-secret-at-least-32-bytes-long!!")

func signHS256(t *testing.T, key []byte, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(sub string) Claims {
	return Claims{
		Email: sub + "@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "https://clerk.example.com",
			Audience:  jwt.ClaimStrings{"habitd"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
}

func TestHMACVerifier(t *testing.T) {
	v, err := NewHMACVerifier(secret, Options{Issuer: "https://clerk.example.com", Audience: "habitd"})
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), signHS256(t, secret, validClaims("user_1")))
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "user_1", Email: "user_1@example.com"}, id)
}

func TestHMACVerifierRejects(t *testing.T) {
	v, err := NewHMACVerifier(secret, Options{Issuer: "https://clerk.example.com", Audience: "habitd"})
	require.NoError(t, err)

	expired := validClaims("user_1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	noExpiry := validClaims("user_1")
	noExpiry.ExpiresAt = nil

	wrongIssuer := validClaims("user_1")
	wrongIssuer.Issuer = "https://evil.example.com"

	wrongAudience := validClaims("user_1")
	wrongAudience.Audience = jwt.ClaimStrings{"other-app"}

	noSubject := validClaims("")

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"garbage", "not.a.jwt"},
		{"wrong secret", signHS256(t, []byte("another-secret-another-secret-xx"), validClaims("user_1"))},
		{"expired", signHS256(t, secret, expired)},
		{"missing exp", signHS256(t, secret, noExpiry)},
		{"wrong issuer", signHS256(t, secret, wrongIssuer)},
		{"wrong audience", signHS256(t, secret, wrongAudience)},
		{"missing subject", signHS256(t, secret, noSubject)},
		{"alg none", func() string {
			s, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims("user_1")).SignedString(jwt.UnsafeAllowNoneSignatureType)
			require.NoError(t, err)
			return s
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrUnauthenticated), "error %v should wrap ErrUnauthenticated", err)
		})
	}
}

func TestHMACVerifierLeeway(t *testing.T) {
	v, err := NewHMACVerifier(secret, Options{Leeway: time.Minute})
	require.NoError(t, err)

	claims := validClaims("user_1")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-10 * time.Second))

	_, err = v.Verify(context.Background(), signHS256(t, secret, claims))
	assert.NoError(t, err)
}

func TestNewHMACVerifierEmptySecret(t *testing.T) {
	_, err := NewHMACVerifier(nil, Options{})
	assert.Error(t, err)
}

func TestRSAVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	v, err := NewRSAVerifier(pubPEM, Options{})
	require.NoError(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, validClaims("user_rsa")).SignedString(key)
	require.NoError(t, err)

	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user_rsa", id.UserID)

	// An HS256 token must not be accepted by an RS256 verifier.
	_, err = v.Verify(context.Background(), signHS256(t, pubPEM, validClaims("user_rsa")))
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	_, err = NewRSAVerifier([]byte("not a key"), Options{})
	assert.Error(t, err)
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "user_1"})
	id, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user_1", id.UserID)

	_, ok = FromContext(WithIdentity(context.Background(), Identity{}))
	assert.False(t, ok)
}
