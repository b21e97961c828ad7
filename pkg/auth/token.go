// Package auth validates bearer tokens and enforces that the path user id
// matches the authenticated subject. Token issuance happens elsewhere; this
// package only decodes and checks.
package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingAuthorization = errors.New("missing authorization header")
	ErrInvalidScheme        = errors.New("invalid authorization scheme")
	ErrInvalidToken         = errors.New("invalid or expired token")
	ErrMissingSubject       = errors.New("invalid token: missing subject")
)

// devTokenPrefix is the development bypass format: "dev-token" maps to a
// fixed user, "dev-token:<user_id>" to an arbitrary one. Accepted only
// outside production.
const (
	devToken       = "dev-token"
	devTokenPrefix = "dev-token:"
	devTokenUserID = "user-123"
)

// TokenPayload is the decoded identity carried by a bearer token.
type TokenPayload struct {
	Subject string
	IsDev   bool
}

// Validator decodes HS256 bearer tokens with a shared secret.
type Validator struct {
	secret         []byte
	allowDevTokens bool
}

// NewValidator creates a token validator. allowDevTokens must be false in
// production configuration.
func NewValidator(secret string, allowDevTokens bool) *Validator {
	return &Validator{
		secret:         []byte(secret),
		allowDevTokens: allowDevTokens,
	}
}

// Decode validates a raw token string and returns its payload. Expired or
// malformed tokens report ErrInvalidToken; a valid token without a subject
// reports ErrMissingSubject.
func (v *Validator) Decode(token string) (*TokenPayload, error) {
	if v.allowDevTokens {
		if token == devToken {
			return &TokenPayload{Subject: devTokenUserID, IsDev: true}, nil
		}
		if rest, ok := strings.CutPrefix(token, devTokenPrefix); ok && rest != "" {
			return &TokenPayload{Subject: rest, IsDev: true}, nil
		}
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrMissingSubject
	}
	return &TokenPayload{Subject: sub}, nil
}

// FromAuthorizationHeader extracts the bearer token from an Authorization
// header value.
func FromAuthorizationHeader(header string) (string, error) {
	if header == "" {
		return "", ErrMissingAuthorization
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", ErrInvalidScheme
	}
	return token, nil
}
