// internal/auth/token.go
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// UserIDFromToken extracts the "sub" claim from the room auth token so the
// engine knows which player it is. The token is opaque to the client in
// every other respect and is verified server-side at connect time, so an
// unverified parse is deliberate here: the client holds no key material.
func UserIDFromToken(token string) (string, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parse auth token: %w", err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("auth token carries no subject")
	}
	return sub, nil
}
