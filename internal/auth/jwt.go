package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hivegrid/internal/registry"
)

// Claims represents JWT claims used by this service. The subject is the
// caller's wallet address.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// ParseJWT validates a JWT and returns the caller identity.
func ParseJWT(tokenString string, secret []byte) (Identity, error) {
	if tokenString == "" {
		return Identity{}, errors.New("auth: empty token")
	}
	if len(secret) == 0 {
		return Identity{}, errors.New("auth: empty secret")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("auth: invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	role, ok := NormalizeRole(claims.Role)
	if !ok {
		return Identity{}, errors.New("auth: invalid role")
	}
	address, err := registry.ParseAddress(claims.Subject)
	if err != nil {
		return Identity{}, errors.New("auth: invalid subject address")
	}
	if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
		return Identity{}, errors.New("auth: token expired")
	}
	return Identity{Address: address, Role: role}, nil
}
