// Package token verifies identity tokens issued by the external identity
// provider and extracts the request Principal. Verification is pure: no
// side effects beyond fetching signing keys through the KeySource.
package token

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failures. The policy layer collapses all of these into one
// generic denial before anything reaches a caller.
var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpiredToken     = errors.New("token expired")
	ErrWrongAudience    = errors.New("token audience mismatch")
)

// KeySource resolves a signing key by key ID. Implementations may fetch
// over the network; they must honor ctx.
type KeySource interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// idClaims are the claims consumed from the provider's identity token.
// TokenUse distinguishes identity tokens from access-scope tokens: only
// the identity token carries the custom role claim, so verifying the
// wrong class would silently drop it and deny everyone.
type idClaims struct {
	Email    string `json:"email"`
	Role     string `json:"role"`
	TokenUse string `json:"token_use"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens against the identity provider's
// published keys and configured issuer/audience.
type Verifier struct {
	issuer   string
	audience string
	keys     KeySource
	parser   *jwt.Parser
}

// NewVerifier builds a Verifier. Issuer and audience must match the
// identity provider configuration exactly.
func NewVerifier(issuer, audience string, keys KeySource) (*Verifier, error) {
	if issuer == "" {
		return nil, fmt.Errorf("issuer is required")
	}
	if audience == "" {
		return nil, fmt.Errorf("audience is required")
	}
	if keys == nil {
		return nil, fmt.Errorf("key source is required")
	}
	return &Verifier{
		issuer:   issuer,
		audience: audience,
		keys:     keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

// Verify validates the raw bearer token and returns the Principal it
// carries. Signature, issuer, audience, expiry, and token class are all
// checked; any failure returns one of the package sentinel errors.
func (v *Verifier) Verify(ctx context.Context, raw string) (Principal, error) {
	if raw == "" {
		return Principal{}, ErrMalformedToken
	}

	claims := &idClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrMalformedToken
		}
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		return Principal{}, classifyParseError(err)
	}

	if claims.TokenUse != "id" {
		// Access tokens pass signature checks but carry no identity
		// claims. Reject the class outright instead of denying on the
		// missing role downstream.
		return Principal{}, ErrMalformedToken
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return Principal{}, ErrMalformedToken
	}
	role := Role(claims.Role)
	if !role.IsValid() {
		return Principal{}, ErrMalformedToken
	}

	return Principal{
		SubjectID:   claims.Subject,
		Email:       claims.Email,
		Role:        role,
		TokenExpiry: claims.ExpiresAt.Time,
	}, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrWrongAudience
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrInvalidSignature
	default:
		return ErrMalformedToken
	}
}
