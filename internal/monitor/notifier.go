package monitor

import (
	"io"
	"strings"
)

// Notifier delivers an out-of-band signal when an alert is created.
// Implementations must degrade silently: a notifier that cannot reach
// its medium drops the signal, never fails the check.
type Notifier interface {
	Notify(alert Alert)
}

// NopNotifier drops all signals
type NopNotifier struct{}

// Notify implements Notifier
func (NopNotifier) Notify(Alert) {}

// TerminalNotifier signals through the terminal bell. Severity maps to
// the number of bell characters - чем серьезнее, тем настойчивее.
type TerminalNotifier struct {
	W io.Writer
}

// Notify implements Notifier. Write errors are swallowed: отсутствие
// терминала не повод ронять проверку.
func (n TerminalNotifier) Notify(alert Alert) {
	if n.W == nil {
		return
	}

	var bells int
	switch alert.Severity {
	case SeverityWarning:
		bells = 1
	case SeverityExpired:
		bells = 2
	case SeverityCritical:
		bells = 3
	}

	_, _ = io.WriteString(n.W, strings.Repeat("\a", bells)+alert.Message+"\n")
}
