package cli

import (
	"context"
	"fmt"
	"time"
)

// RunRefresh forces a token refresh through the shared single-flight
// primitive - the same one the interceptor and monitor use.
func (c *Cli) RunRefresh(ctx context.Context) error {
	fmt.Println("Refreshing access token...")

	if err := c.refresher.Refresh(ctx); err != nil {
		return err
	}

	if ttl, ok := c.store.TimeToExpiry(); ok {
		fmt.Printf("✓ Token refreshed, expires in %s\n", ttl.Round(time.Second))
	} else {
		fmt.Println("✓ Token refreshed")
	}
	return nil
}
