package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// SecretSize - размер случайного секрета OS-сессии в байтах
const SecretSize = 32

const secretFileName = "storefront-session.key"

// sessionDir возвращает директорию, время жизни которой ограничено
// текущей OS-сессией пользователя. На Linux это XDG_RUNTIME_DIR
// (tmpfs, очищается при logout), иначе - временная директория.
func sessionDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}

// LoadOrCreateSessionSecret возвращает секрет текущей OS-сессии,
// создавая его при первом обращении. Потеря секрета (новая сессия,
// перезагрузка) делает сохраненный ciphertext нечитаемым - это
// ожидаемый "мягкий logout", а не ошибка.
func LoadOrCreateSessionSecret() ([]byte, error) {
	return loadOrCreateSecret(filepath.Join(sessionDir(), secretFileName))
}

func loadOrCreateSecret(path string) ([]byte, error) {
	secret, err := os.ReadFile(path)
	if err == nil && len(secret) == SecretSize {
		return secret, nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read session secret: %w", err)
	}

	// Файла нет или он поврежден - создаем новый секрет
	secret = make([]byte, SecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate session secret: %w", err)
	}

	if err := os.WriteFile(path, secret, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write session secret: %w", err)
	}

	return secret, nil
}

// RemoveSessionSecret удаляет секрет OS-сессии (явный logout)
func RemoveSessionSecret() error {
	err := os.Remove(filepath.Join(sessionDir(), secretFileName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session secret: %w", err)
	}
	return nil
}
