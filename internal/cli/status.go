package cli

import (
	"context"
	"fmt"
	"time"
)

// RunStatus prints the session, interceptor, and monitor state
func (c *Cli) RunStatus(ctx context.Context) error {
	fmt.Println("=== Session status ===")
	fmt.Println()

	profile, ok := c.store.Profile(ctx)
	if !ok {
		fmt.Println("Not signed in.")
		return nil
	}

	fmt.Printf("Customer:  %s <%s>\n", profile.Name, profile.Email)
	if profile.EmailVerified {
		fmt.Println("Email:     verified")
	} else {
		fmt.Println("Email:     not verified")
	}

	if ttl, valid := c.store.TimeToExpiry(); valid {
		fmt.Printf("Token:     valid, expires in %s\n", ttl.Round(time.Second))
		if err := c.store.ValidateIntegrity(); err != nil {
			fmt.Printf("Integrity: FAILED (%v)\n", err)
		} else {
			fmt.Println("Integrity: ok")
		}
	} else if _, hasRefresh := c.store.RefreshToken(ctx); hasRefresh {
		fmt.Println("Token:     expired (refresh token available)")
	} else {
		fmt.Println("Token:     expired")
	}

	st := c.interceptor.Status()
	fmt.Printf("Refresh:   in flight=%v, queued=%d\n", st.Refreshing, st.QueueDepth)

	ms := c.monitor.Status()
	fmt.Printf("Monitor:   running=%v, alerts=%d", ms.Running, ms.AlertCount)
	if !ms.LastCheck.IsZero() {
		fmt.Printf(", last check %s ago", time.Since(ms.LastCheck).Round(time.Second))
	}
	fmt.Println()

	for _, alert := range c.monitor.Alerts() {
		fmt.Printf("  [%s] %s\n", alert.Severity, alert.Message)
	}

	return nil
}
