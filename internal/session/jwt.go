package session

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// parseUnverifiedClaims разбирает JWT без проверки подписи.
// Клиент не владеет ключом подписи - проверка подписи принадлежит
// серверу. Здесь нужна только структура и registered claims.
func parseUnverifiedClaims(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	out, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	return out, nil
}
