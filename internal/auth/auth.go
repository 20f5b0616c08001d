// Package auth handles the bearer tokens issued by the Rednet auth endpoint.
//
// Tokens are usually JWTs. The client never holds the signing key, so claims
// are read without verification and only used to report the subject and to
// decide when a token needs renewing. Opaque tokens are accepted as-is.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrEmptyToken = errors.New("empty token")
)

// DefaultType is the Authorization scheme used when none is configured.
const DefaultType = "Bearer"

// Token is an access token returned by a login.
type Token struct {
	Raw       string
	Type      string    // Authorization scheme, e.g. "Bearer"
	Subject   string    // "sub" claim, empty for opaque tokens
	ExpiresAt time.Time // zero when the token carries no expiry
}

// ParseToken inspects raw. JWT claims are read without verifying the
// signature; a token that is not a JWT is returned with no subject or expiry.
func ParseToken(raw string) (*Token, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyToken
	}

	tok := &Token{Raw: raw, Type: DefaultType}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return tok, nil
	}

	if sub, err := claims.GetSubject(); err == nil {
		tok.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tok.ExpiresAt = exp.Time
	}
	return tok, nil
}

// Expired reports whether the token has expired at now. Tokens without an
// expiry never expire.
func (t *Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// ExpiresWithin reports whether the token expires within d of now.
func (t *Token) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !t.ExpiresAt.IsZero() && now.Add(d).After(t.ExpiresAt)
}

// Header returns the Authorization header value.
func (t *Token) Header() string {
	typ := t.Type
	if typ == "" {
		typ = DefaultType
	}
	return typ + " " + t.Raw
}

// Headers returns the headers to attach to requests and handshakes.
func (t *Token) Headers() map[string]string {
	return map[string]string{"Authorization": t.Header()}
}
