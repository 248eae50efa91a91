package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirimku/smartseller-storefront-sub001/internal/monitor"
)

// RunWatch runs the expiration monitor in the foreground, printing alerts
// as they are raised. Exits on Ctrl-C or when the session terminally
// expires.
func (c *Cli) RunWatch(ctx context.Context) error {
	if _, ok := c.store.RefreshToken(ctx); !ok {
		if _, valid := c.store.TimeToExpiry(); !valid {
			return fmt.Errorf("not signed in, nothing to watch")
		}
	}

	expired := make(chan struct{}, 1)

	unsubAlert := c.monitor.OnAlert(func(alert monitor.Alert) {
		stamp := alert.Timestamp.Format(time.TimeOnly)
		if alert.TimeToExpiry > 0 {
			fmt.Printf("[%s] %s: %s (ttl %s)\n", stamp, alert.Severity, alert.Message, alert.TimeToExpiry.Round(time.Second))
		} else {
			fmt.Printf("[%s] %s: %s\n", stamp, alert.Severity, alert.Message)
		}
	})
	defer unsubAlert()

	unsubExpiry := c.monitor.OnExpiration(func() {
		select {
		case expired <- struct{}{}:
		default:
		}
	})
	defer unsubExpiry()

	c.monitor.Start()
	defer c.monitor.Stop()

	fmt.Println("Watching session health, Ctrl-C to stop...")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		fmt.Println()
		fmt.Println("Stopped.")
		return nil
	case <-expired:
		return fmt.Errorf("session expired, please sign in again")
	case <-ctx.Done():
		return ctx.Err()
	}
}
