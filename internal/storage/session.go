package storage

import (
	"context"
)

// SessionStorage defines interface for persisting session data on the client.
// This is the lowest storage layer - it works with raw data (tokens and
// profile already encrypted) and doesn't perform any encryption itself.
type SessionStorage interface {
	// SaveSession stores session data as-is (sensitive fields already encrypted)
	SaveSession(ctx context.Context, rec *SessionRecord) error

	// GetSession retrieves stored session data as-is.
	// Returns ErrSessionNotFound if no session exists.
	GetSession(ctx context.Context) (*SessionRecord, error)

	// DeleteSession removes stored session data (logout)
	DeleteSession(ctx context.Context) error
}

// SessionRecord represents the persisted part of a customer session.
// IMPORTANT: the access token is intentionally absent - it lives only in
// process memory and dies with it. RefreshToken and Profile are
// base64-encoded AES-GCM ciphertext at this layer; encryption happens in
// the session.Store layer above.
type SessionRecord struct {
	DeviceID     string `json:"device_id"`     // стабильный UUID этой установки клиента
	RefreshToken string `json:"refresh_token"` // зашифрованный refresh token (base64)
	Profile      string `json:"profile"`       // зашифрованный JSON профиля (base64)
	KeySalt      string `json:"key_salt"`      // соль деривации ключа (base64)
	UpdatedAt    int64  `json:"updated_at"`    // unix время последнего обновления
}
