package monitor

import (
	"context"
	"time"
)

// Severity grades a session health alert
type Severity string

// Alert severity tiers, от информационного до терминального
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
	SeverityExpired  Severity = "expired"
)

// alertID derives the alert identifier from its severity tier.
// Повторные проверки в одном tier обновляют существующий alert,
// а не создают дубликаты.
func alertID(sev Severity) string {
	return "session-" + string(sev)
}

// Action is an operation the user (or UI) can take from an alert
type Action struct {
	Name string
	Run  func(ctx context.Context) error
}

// Alert describes one session health notification
type Alert struct {
	ID           string
	Severity     Severity
	Message      string
	TimeToExpiry time.Duration
	Timestamp    time.Time
	Actions      []Action
}
