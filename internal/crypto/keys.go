package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Параметры Argon2id для деривации ключа хранилища
const (
	// Argon2Time - количество итераций (time cost)
	Argon2Time = 1
	// Argon2Memory - объем памяти в KB (64MB = 64*1024 KB)
	Argon2Memory = 64 * 1024
	// Argon2Threads - количество параллельных потоков
	Argon2Threads = 4
	// SaltSize - размер соли в байтах
	SaltSize = 32
)

// GenerateSalt генерирует криптографически случайную соль
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// GenerateSaltBase64 генерирует случайную соль и возвращает ее в Base64
func GenerateSaltBase64() (string, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(salt), nil
}

// DeriveStorageKey деривирует ключ шифрования хранилища сессии из
// секрета текущей OS-сессии и соли, сохраненной рядом с записью.
// Секрет живет только в пределах OS-сессии: новая сессия означает
// новый секрет, и старый ciphertext становится нечитаемым навсегда.
func DeriveStorageKey(sessionSecret, salt []byte) ([]byte, error) {
	if len(sessionSecret) == 0 {
		return nil, fmt.Errorf("session secret cannot be empty")
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(salt))
	}

	// Context string отделяет этот ключ от любых других дериваций
	input := append([]byte("storefront-session:"), sessionSecret...)
	key := argon2.IDKey(input, salt, Argon2Time, Argon2Memory, Argon2Threads, KeySize)

	return key, nil
}

// DeriveStorageKeyFromBase64Salt деривирует ключ из Base64-кодированной соли
func DeriveStorageKeyFromBase64Salt(sessionSecret []byte, saltBase64 string) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(saltBase64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	return DeriveStorageKey(sessionSecret, salt)
}
