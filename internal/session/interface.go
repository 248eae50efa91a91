package session

import (
	"context"

	"github.com/kirimku/smartseller-storefront-sub001/pkg/api"
)

//go:generate moq -out apiclient_mock.go . APIClient

// APIClient defines the auth backend calls the session layer depends on.
// Implemented by internal/api.Client; mocked in tests.
type APIClient interface {
	// Refresh обменивает refresh token на новую пару токенов
	Refresh(ctx context.Context, refreshToken string) (*api.TokenResponse, error)

	// Logout отзывает refresh token на сервере (best effort)
	Logout(ctx context.Context, refreshToken string) error
}
