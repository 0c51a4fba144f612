package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestUserIDFromToken(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "0xA1b2C3",
	})
	signed, err := token.SignedString([]byte("irrelevant-to-the-client"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	uid, err := UserIDFromToken(signed)
	if err != nil {
		t.Fatalf("UserIDFromToken: %v", err)
	}
	if uid != "0xA1b2C3" {
		t.Fatalf("uid = %q", uid)
	}
}

func TestUserIDFromTokenMissingSubject(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"aud": "rooms"})
	signed, _ := token.SignedString([]byte("k"))

	if _, err := UserIDFromToken(signed); err == nil {
		t.Fatalf("token without sub must be rejected")
	}
}

func TestUserIDFromGarbageToken(t *testing.T) {
	if _, err := UserIDFromToken("not.a.jwt"); err == nil {
		t.Fatalf("garbage token must be rejected")
	}
}
