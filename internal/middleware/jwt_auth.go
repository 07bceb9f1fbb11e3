package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTAuthConfig configures HS256 shared-secret bearer tokens.
type JWTAuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// HS256Verifier verifies shared-secret tokens. Tokens must carry exp.
type HS256Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewHS256Verifier builds a verifier for cfg.
func NewHS256Verifier(cfg JWTAuthConfig) (*HS256Verifier, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &HS256Verifier{secret: []byte(cfg.Secret), parser: jwt.NewParser(opts...)}, nil
}

// Verify checks the signature and registered claims of token.
func (v *HS256Verifier) Verify(_ context.Context, token string) (AuthContext, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return AuthContext{}, newTokenError("time_validation_failed", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return AuthContext{}, newTokenError("signature_invalid", err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return AuthContext{}, newTokenError("claims_invalid", err)
	default:
		return AuthContext{}, newTokenError("malformed", fmt.Errorf("parse token: %w", err))
	}

	return AuthContext{
		Method:   AuthMethodJWT,
		Subject:  stringClaim(claims, "sub"),
		Issuer:   stringClaim(claims, "iss"),
		Audience: extractAudience(claims),
		Claims:   claims,
	}, nil
}
