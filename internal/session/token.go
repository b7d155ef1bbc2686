package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpiry extracts the expiry claim from an access token without
// verifying its signature. Verification is the server's job; the client only
// uses the claim to avoid sending requests with a credential it already
// knows is dead. The second return value is false when the token is not a
// parseable JWT or carries no expiry.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TokenExpiry returns the stored access token's expiry, when known.
func (m *Manager) TokenExpiry() (time.Time, bool) {
	pair, ok := m.store.Pair()
	if !ok {
		return time.Time{}, false
	}
	return TokenExpiry(pair.AccessToken)
}
