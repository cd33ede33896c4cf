// Package auth verifies the JWTs minted by the user service. The order
// service never signs tokens itself, so only the public key is loaded.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

// ClaimsKey is used to store the verified claims on the request context.
const ClaimsKey ctxKey = 1

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

type Keys struct {
	publicKey *rsa.PublicKey
}

func NewKeys(publicPEM []byte) (*Keys, error) {
	if len(publicPEM) == 0 {
		return nil, errors.New("public key pem is empty")
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing rsa public key: %w", err)
	}
	return &Keys{publicKey: publicKey}, nil
}

// ValidateToken parses and verifies a bearer token and returns its claims.
func (k *Keys) ValidateToken(token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return k.publicKey, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("parsing token: %w", err)
	}
	if !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	return claims, nil
}

// HasRole reports whether the claims carry the given role.
func (c Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}
