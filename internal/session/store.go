package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirimku/smartseller-storefront-sub001/internal/crypto"
	"github.com/kirimku/smartseller-storefront-sub001/internal/storage"
	"github.com/kirimku/smartseller-storefront-sub001/pkg/api"
)

// DefaultTokenType используется, когда сервер не указал схему авторизации
const DefaultTokenType = "Bearer"

// расхождение между exp claim токена и локально отслеживаемым сроком,
// после которого токен считается поврежденным
const integrityLeeway = time.Minute

// ErrNotAuthenticated indicates that no usable credentials exist
var ErrNotAuthenticated = errors.New("not authenticated")

// EventType describes a change broadcast by the Store
type EventType string

// Store change events
const (
	// EventUpdated is broadcast after tokens are stored or refreshed
	EventUpdated EventType = "updated"
	// EventCleared is broadcast after the session is wiped (logout)
	EventCleared EventType = "cleared"
)

// Event is delivered to subscribers registered via Subscribe
type Event struct {
	Type EventType
}

// Store is the single source of truth for customer credentials.
//
// The access token and its expiry live only in process memory and die with
// the process. The refresh token and customer profile are persisted through
// a SessionStorage implementation, encrypted with a key derived from the
// OS-session secret. If the secret is gone (new OS session) or decryption
// fails, the persisted state is wiped and treated as absent - the store
// fails closed, never open.
type Store struct {
	mu      sync.RWMutex
	storage storage.SessionStorage
	secret  []byte // секрет OS-сессии, источник ключа шифрования
	logger  *slog.Logger

	// производный ключ и его соль, кэшируются после первой деривации
	key     []byte
	keySalt string

	// memory-only часть TokenRecord
	accessToken string
	tokenType   string
	expiresAt   time.Time
	profile     *api.CustomerProfile
	deviceID    string

	subs    map[int]func(Event)
	nextSub int

	now func() time.Time // подменяется в тестах
}

// NewStore creates a Store over the given storage.
// secret is the OS-session secret the at-rest encryption key is derived from.
func NewStore(st storage.SessionStorage, secret []byte, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		storage: st,
		secret:  secret,
		logger:  logger,
		subs:    make(map[int]func(Event)),
		now:     time.Now,
	}
}

// Subscribe registers a callback for store change events and returns an
// unsubscribe function. Callbacks run synchronously after the mutation
// completes and must not block.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// broadcast рассылает событие подписчикам вне блокировки
func (s *Store) broadcast(ev Event) {
	s.mu.RLock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// StoreTokens atomically sets the in-memory access token and expiry,
// persists the encrypted refresh token and profile, and broadcasts an
// update event. Memory is authoritative for the current process: if the
// storage write fails, the in-memory portion still succeeds and the error
// reports only the persistence failure.
func (s *Store) StoreTokens(ctx context.Context, tokens *api.TokenResponse, profile *api.CustomerProfile) error {
	if tokens == nil || tokens.AccessToken == "" {
		return fmt.Errorf("access token is empty")
	}

	tokenType := tokens.TokenType
	if tokenType == "" {
		tokenType = DefaultTokenType
	}

	s.mu.Lock()
	s.accessToken = tokens.AccessToken
	s.tokenType = tokenType
	s.expiresAt = s.now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	s.profile = profile
	if s.deviceID == "" {
		s.deviceID = s.loadDeviceIDLocked(ctx)
	}
	persistErr := s.persistLocked(ctx, tokens.RefreshToken, profile)
	s.mu.Unlock()

	// Событие шлем в любом случае: память обновлена
	s.broadcast(Event{Type: EventUpdated})

	if persistErr != nil {
		s.logger.Warn("session persisted state write failed, memory remains authoritative", "error", persistErr)
		return fmt.Errorf("failed to persist session: %w", persistErr)
	}
	return nil
}

// AccessToken returns the in-memory access token, but only while it is
// still valid. At the exact expiry instant the token already reads as
// absent.
func (s *Store) AccessToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.accessToken == "" || !s.now().Before(s.expiresAt) {
		return "", false
	}
	return s.accessToken, true
}

// TokenType returns the credential scheme of the current access token
func (s *Store) TokenType() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.tokenType == "" {
		return DefaultTokenType
	}
	return s.tokenType
}

// DeviceID returns the stable identifier of this client installation
func (s *Store) DeviceID(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deviceID == "" {
		s.deviceID = s.loadDeviceIDLocked(ctx)
	}
	return s.deviceID
}

// RefreshToken decrypts and returns the persisted refresh token.
// Missing or corrupt state is reported as absence, never as an error:
// on decryption failure the persisted state is wiped (fail closed).
func (s *Store) RefreshToken(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.storage.GetSession(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrSessionNotFound) {
			s.logger.Debug("failed to read session record", "error", err)
		}
		return "", false
	}

	plaintext, err := s.decryptLocked(rec, rec.RefreshToken)
	if err != nil {
		s.wipeCorruptLocked(ctx, err)
		return "", false
	}
	return string(plaintext), true
}

// Profile returns the cached customer profile, preferring the in-memory
// copy and falling back to the encrypted persisted one.
func (s *Store) Profile(ctx context.Context) (*api.CustomerProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile != nil {
		p := *s.profile
		return &p, true
	}

	rec, err := s.storage.GetSession(ctx)
	if err != nil {
		return nil, false
	}

	plaintext, err := s.decryptLocked(rec, rec.Profile)
	if err != nil {
		s.wipeCorruptLocked(ctx, err)
		return nil, false
	}

	profile := &api.CustomerProfile{}
	if err := json.Unmarshal(plaintext, profile); err != nil {
		s.wipeCorruptLocked(ctx, err)
		return nil, false
	}

	s.profile = profile
	p := *profile
	return &p, true
}

// IsExpired reports whether the in-memory access token is absent or expired
func (s *Store) IsExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken == "" || !s.now().Before(s.expiresAt)
}

// ExpiringSoon reports whether a valid token expires within the window
func (s *Store) ExpiringSoon(window time.Duration) bool {
	ttl, ok := s.TimeToExpiry()
	return ok && ttl <= window
}

// TimeToExpiry returns the remaining lifetime of the access token.
// ok is false when no valid token is held.
func (s *Store) TimeToExpiry() (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.accessToken == "" {
		return 0, false
	}
	ttl := s.expiresAt.Sub(s.now())
	if ttl <= 0 {
		return 0, false
	}
	return ttl, true
}

// UpdateAccessToken replaces the in-memory access token and expiry after a
// successful refresh. The persisted refresh token is not touched.
func (s *Store) UpdateAccessToken(token string, expiresAt time.Time) {
	s.mu.Lock()
	s.accessToken = token
	s.expiresAt = expiresAt
	s.mu.Unlock()

	s.broadcast(Event{Type: EventUpdated})
}

// ApplyRefresh applies a refresh response: the access token and expiry are
// updated in memory, and a rotated refresh token (if the backend returned
// one) is re-encrypted and persisted.
func (s *Store) ApplyRefresh(ctx context.Context, tokens *api.TokenResponse) error {
	if tokens == nil || tokens.AccessToken == "" {
		return fmt.Errorf("refresh response has no access token")
	}

	s.mu.Lock()
	s.accessToken = tokens.AccessToken
	if tokens.TokenType != "" {
		s.tokenType = tokens.TokenType
	}
	s.expiresAt = s.now().Add(time.Duration(tokens.ExpiresIn) * time.Second)

	var persistErr error
	if tokens.RefreshToken != "" {
		persistErr = s.persistLocked(ctx, tokens.RefreshToken, s.profile)
	}
	s.mu.Unlock()

	s.broadcast(Event{Type: EventUpdated})

	if persistErr != nil {
		s.logger.Warn("failed to persist rotated refresh token", "error", persistErr)
		return fmt.Errorf("failed to persist rotated refresh token: %w", persistErr)
	}
	return nil
}

// Clear wipes the in-memory and persisted session state and broadcasts a
// clear event so collaborators (monitor, other clients sharing the storage
// file) can react.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.accessToken = ""
	s.tokenType = ""
	s.expiresAt = time.Time{}
	s.profile = nil
	s.key = nil
	s.keySalt = ""

	err := s.storage.DeleteSession(ctx)
	s.mu.Unlock()

	s.broadcast(Event{Type: EventCleared})

	if err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
		return fmt.Errorf("failed to delete persisted session: %w", err)
	}
	return nil
}

// ValidateIntegrity performs a structural check of the in-memory access
// token: it must be a parsable three-segment JWT whose embedded exp claim
// is in the future and agrees with the locally tracked expiry. A nil error
// does not mean the signature was verified - that is the server's job.
func (s *Store) ValidateIntegrity() error {
	s.mu.RLock()
	token := s.accessToken
	tracked := s.expiresAt
	s.mu.RUnlock()

	if token == "" {
		return ErrNotAuthenticated
	}

	claims, err := parseUnverifiedClaims(token)
	if err != nil {
		return fmt.Errorf("malformed access token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return fmt.Errorf("access token has no exp claim")
	}

	exp := claims.ExpiresAt.Time
	if !s.now().Before(exp) {
		return fmt.Errorf("access token expired per its own exp claim")
	}

	// Расхождение claim и локального срока означает рассинхронизацию
	// store и токена - считаем сессию недействительной
	if drift := exp.Sub(tracked); drift > integrityLeeway || drift < -integrityLeeway {
		return fmt.Errorf("access token exp claim disagrees with tracked expiry by %s", drift)
	}

	return nil
}

// persistLocked шифрует refresh token и профиль и сохраняет запись.
// Вызывается строго под s.mu.
func (s *Store) persistLocked(ctx context.Context, refreshToken string, profile *api.CustomerProfile) error {
	if refreshToken == "" {
		return fmt.Errorf("refresh token is empty")
	}

	if err := s.ensureKeyLocked(ctx); err != nil {
		return err
	}

	encryptedRefresh, err := crypto.EncryptToBase64([]byte(refreshToken), s.key)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	encryptedProfile, err := crypto.EncryptToBase64(profileJSON, s.key)
	if err != nil {
		return fmt.Errorf("failed to encrypt profile: %w", err)
	}

	rec := &storage.SessionRecord{
		DeviceID:     s.deviceID,
		RefreshToken: encryptedRefresh,
		Profile:      encryptedProfile,
		KeySalt:      s.keySalt,
		UpdatedAt:    s.now().Unix(),
	}

	return s.storage.SaveSession(ctx, rec)
}

// ensureKeyLocked деривирует ключ шифрования, переиспользуя соль из
// существующей записи или генерируя новую
func (s *Store) ensureKeyLocked(ctx context.Context) error {
	if s.key != nil {
		return nil
	}

	if s.keySalt == "" {
		if rec, err := s.storage.GetSession(ctx); err == nil && rec.KeySalt != "" {
			s.keySalt = rec.KeySalt
		}
	}
	if s.keySalt == "" {
		salt, err := crypto.GenerateSaltBase64()
		if err != nil {
			return fmt.Errorf("failed to generate key salt: %w", err)
		}
		s.keySalt = salt
	}

	key, err := crypto.DeriveStorageKeyFromBase64Salt(s.secret, s.keySalt)
	if err != nil {
		return fmt.Errorf("failed to derive storage key: %w", err)
	}
	s.key = key
	return nil
}

// decryptLocked дешифрует base64-поле записи ключом, производным от
// секрета текущей OS-сессии и соли записи
func (s *Store) decryptLocked(rec *storage.SessionRecord, field string) ([]byte, error) {
	if rec.KeySalt == "" || field == "" {
		return nil, fmt.Errorf("session record is incomplete")
	}

	key, err := crypto.DeriveStorageKeyFromBase64Salt(s.secret, rec.KeySalt)
	if err != nil {
		return nil, err
	}
	// Кэшируем производный ключ для последующих записей
	s.key = key
	s.keySalt = rec.KeySalt

	return crypto.DecryptFromBase64(field, key)
}

// wipeCorruptLocked удаляет нечитаемое сохраненное состояние.
// Потеря ключа OS-сессии или поврежденная запись равнозначны
// "мягкому logout" и не являются ошибкой для вызывающего кода.
func (s *Store) wipeCorruptLocked(ctx context.Context, cause error) {
	s.logger.Debug("persisted session unreadable, wiping", "error", cause)
	if err := s.storage.DeleteSession(ctx); err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
		s.logger.Warn("failed to wipe corrupt session state", "error", err)
	}
	s.key = nil
	s.keySalt = ""
}

// loadDeviceIDLocked возвращает device ID из существующей записи или
// генерирует новый для этой установки клиента
func (s *Store) loadDeviceIDLocked(ctx context.Context) string {
	if rec, err := s.storage.GetSession(ctx); err == nil && rec.DeviceID != "" {
		return rec.DeviceID
	}
	return uuid.New().String()
}
