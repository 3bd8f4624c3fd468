// Package auth verifies bearer tokens issued by the external identity
// provider and carries the caller's identity through request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/julianstephens/habitd/internal/constants"
	apperrors "github.com/julianstephens/habitd/internal/errors"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Email  string
}

// Verifier validates a bearer token and returns the identity it asserts.
// Failures wrap errors.ErrUnauthenticated.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Claims are the session-token claims we read. The subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type Options struct {
	Issuer   string
	Audience string
	// Leeway tolerates clock skew on exp/nbf/iat.
	Leeway time.Duration
}

// JWTVerifier validates signed JWTs with a single key and algorithm.
type JWTVerifier struct {
	key    interface{}
	parser *jwt.Parser
}

// NewHMACVerifier accepts HS256 tokens signed with secret.
func NewHMACVerifier(secret []byte, opts Options) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret cannot be empty")
	}
	return newVerifier(secret, jwt.SigningMethodHS256.Alg(), opts), nil
}

// NewRSAVerifier accepts RS256 tokens verifiable with the PEM public key.
func NewRSAVerifier(publicKeyPEM []byte, opts Options) (*JWTVerifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
	}
	return newVerifier(key, jwt.SigningMethodRS256.Alg(), opts), nil
}

func newVerifier(key interface{}, alg string, opts Options) *JWTVerifier {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{alg}),
		jwt.WithExpirationRequired(),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}
	if opts.Leeway > 0 {
		parserOpts = append(parserOpts, jwt.WithLeeway(opts.Leeway))
	}
	return &JWTVerifier{key: key, parser: jwt.NewParser(parserOpts...)}
}

func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, apperrors.Wrap(apperrors.ErrUnauthenticated, constants.MsgUnauthenticated, errors.New("empty token"))
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	})
	if err != nil {
		return Identity{}, apperrors.Wrap(apperrors.ErrUnauthenticated, constants.MsgUnauthenticated, err)
	}
	if !token.Valid {
		return Identity{}, apperrors.Wrap(apperrors.ErrUnauthenticated, constants.MsgUnauthenticated, errors.New("token is invalid"))
	}
	if claims.Subject == "" {
		return Identity{}, apperrors.Wrap(apperrors.ErrUnauthenticated, constants.MsgUnauthenticated, errors.New("token has no subject"))
	}

	return Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by the auth middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok && id.UserID != ""
}
