package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirimku/smartseller-storefront-sub001/internal/crypto"
)

// RunLogout revokes the session on the server (best effort) and always
// wipes the local state, even when the server is unreachable.
func (c *Cli) RunLogout(ctx context.Context) error {
	if refreshToken, ok := c.store.RefreshToken(ctx); ok {
		if err := c.apiClient.Logout(ctx, refreshToken); err != nil {
			// Не прерываем выход, если сервер недоступен
			slog.Warn("failed to logout on server", "error", err)
		}
	}

	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear local session: %w", err)
	}

	if err := crypto.RemoveSessionSecret(); err != nil {
		slog.Warn("failed to remove session secret", "error", err)
	}

	fmt.Println("✓ Signed out.")
	return nil
}
