package service

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// tokenClaims mirrors the bearer tokens issued to the web client: the user
// id travels in the "id" claim, with "sub" accepted as a fallback.
type tokenClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

func (c *tokenClaims) subject() string {
	if id := strings.TrimSpace(c.UserID); id != "" {
		return id
	}
	return strings.TrimSpace(c.Subject)
}

var errEmptySecret = errors.New("jwt secret not configured")

func parseToken(secret []byte, raw string) (*tokenClaims, error) {
	if len(secret) == 0 {
		return nil, errEmptySecret
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	claims := &tokenClaims{}
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}
