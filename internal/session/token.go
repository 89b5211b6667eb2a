package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry reads the exp claim of a JWT bearer token. The signature is
// not checked: only the server can do that, and the result is only shown
// to the customer. Opaque tokens report false.
func TokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// ExpiresAt is TokenExpiry for the active session.
func (s *Store) ExpiresAt() (time.Time, bool) {
	return TokenExpiry(s.Token())
}
