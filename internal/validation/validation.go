// Package validation contains syntactic checks for credentials entered
// through the CLI, before anything is sent to the server.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MinPasswordLength - минимальная длина пароля
	MinPasswordLength = 8
	// MaxPasswordLength - максимальная длина пароля
	MaxPasswordLength = 128
)

var emailRegexp = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateEmail проверяет синтаксис email покупателя
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !emailRegexp.MatchString(email) {
		return fmt.Errorf("email has invalid format")
	}
	return nil
}

// ValidatePassword проверяет ограничения на пароль
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("password must be at most %d characters", MaxPasswordLength)
	}
	return nil
}
