package cli

import (
	"context"
	"fmt"

	"github.com/kirimku/smartseller-storefront-sub001/internal/validation"
	pkgapi "github.com/kirimku/smartseller-storefront-sub001/pkg/api"
)

// RunLogin authenticates the customer and stores the session. The access
// token stays in memory; the refresh token and profile are persisted
// encrypted by the session store.
func (c *Cli) RunLogin(ctx context.Context, email string, passwords Passwords) error {
	fmt.Println("=== Sign in ===")
	fmt.Println()

	if email == "" {
		var err error
		email, err = readInput("Email: ")
		if err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
	}
	if err := validation.ValidateEmail(email); err != nil {
		return fmt.Errorf("invalid email: %w", err)
	}

	password, err := c.getPassword(passwords)
	if err != nil {
		return err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return fmt.Errorf("invalid password: %w", err)
	}

	fmt.Println()
	fmt.Println("Authenticating...")

	resp, err := c.apiClient.Login(ctx, pkgapi.LoginRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return err
	}

	// Сохраняем токены: access token в память, refresh token и профиль -
	// зашифрованными в хранилище
	if err := c.store.StoreTokens(ctx, &resp.TokenResponse, &resp.Profile); err != nil {
		// Память уже обновлена, текущая сессия работоспособна
		fmt.Printf("Warning: session will not survive restart: %v\n", err)
	}

	fmt.Println()
	fmt.Println("✓ Signed in!")
	fmt.Printf("Customer: %s <%s>\n", resp.Profile.Name, resp.Profile.Email)
	fmt.Printf("Access token expires in: %d seconds\n", resp.ExpiresIn)

	return nil
}
