// Package monitor implements proactive session health signaling: a polling
// loop that inspects token time-to-live, raises tiered alerts with
// actionable follow-ups, and auto-refreshes near-expiry sessions before a
// request ever has the chance to fail with 401.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirimku/smartseller-storefront-sub001/internal/session"
)

// Default thresholds of the per-check algorithm
const (
	DefaultCheckInterval     = 60 * time.Second
	DefaultWarningThreshold  = 15 * time.Minute
	DefaultCriticalThreshold = 4 * time.Minute
	DefaultAutoRefreshWindow = 6 * time.Minute
	DefaultAlertTTL          = 30 * time.Minute
)

// Config holds the monitor thresholds. Zero values are replaced with the
// defaults above.
type Config struct {
	CheckInterval     time.Duration // период фоновой проверки
	WarningThreshold  time.Duration // TTL, ниже которого поднимается warning
	CriticalThreshold time.Duration // TTL, ниже которого поднимается critical
	AutoRefreshWindow time.Duration // TTL, внутри которого выполняется фоновый refresh
	AlertTTL          time.Duration // таймаут свежести alert-а
}

func (c Config) withDefaults() Config {
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	if c.WarningThreshold <= 0 {
		c.WarningThreshold = DefaultWarningThreshold
	}
	if c.CriticalThreshold <= 0 {
		c.CriticalThreshold = DefaultCriticalThreshold
	}
	if c.AutoRefreshWindow <= 0 {
		c.AutoRefreshWindow = DefaultAutoRefreshWindow
	}
	if c.AlertTTL <= 0 {
		c.AlertTTL = DefaultAlertTTL
	}
	return c
}

// Status reports the monitor state for UI and diagnostics
type Status struct {
	Running    bool
	AlertCount int
	LastCheck  time.Time
	Config     Config
}

// Monitor periodically inspects the session store and signals session
// health through alerts and observer callbacks. It never returns errors
// from its loop - every failure path funnels into an alert instead.
type Monitor struct {
	mu        sync.Mutex
	store     *session.Store
	refresher *session.Refresher
	cfg       Config
	notifier  Notifier
	logger    *slog.Logger

	alerts     map[string]*Alert
	alertSubs  map[int]func(Alert)
	expirySubs map[int]func()
	nextSub    int

	running    bool
	stopCh     chan struct{}
	lastCheck  time.Time
	unsubStore func()
}

// New creates a Monitor over the shared store and refresh primitive.
// The monitor subscribes to store events: successful authentication
// auto-starts it, logout auto-stops it.
func New(store *session.Store, refresher *session.Refresher, cfg Config, notifier Notifier, logger *slog.Logger) *Monitor {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Monitor{
		store:      store,
		refresher:  refresher,
		cfg:        cfg.withDefaults(),
		notifier:   notifier,
		logger:     logger,
		alerts:     make(map[string]*Alert),
		alertSubs:  make(map[int]func(Alert)),
		expirySubs: make(map[int]func()),
	}

	// Авто-старт при успешной аутентификации, авто-стоп при logout
	m.unsubStore = store.Subscribe(func(ev session.Event) {
		switch ev.Type {
		case session.EventUpdated:
			m.clearAlerts()
			m.Start()
		case session.EventCleared:
			m.Stop()
		}
	})

	return m
}

// Start begins the periodic check loop. Starting a running monitor is a
// no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	m.logger.Debug("expiration monitor started", "interval", m.cfg.CheckInterval)

	go m.loop(stopCh)
}

// Stop halts the periodic check loop. Stopping a stopped monitor is a
// no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.logger.Debug("expiration monitor stopped")
}

// Close stops the loop and detaches the monitor from store events
func (m *Monitor) Close() {
	m.Stop()
	if m.unsubStore != nil {
		m.unsubStore()
	}
}

func (m *Monitor) loop(stopCh chan struct{}) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	// Первая проверка сразу, не дожидаясь первого tick
	m.CheckNow(context.Background())

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			m.CheckNow(context.Background())
		}
	}
}

// CheckNow forces an out-of-band check, used by the manual
// "refresh status" path in the UI
func (m *Monitor) CheckNow(ctx context.Context) {
	m.mu.Lock()
	m.lastCheck = time.Now()
	m.pruneStaleLocked()
	m.mu.Unlock()

	ttl, ok := m.store.TimeToExpiry()
	if !ok {
		m.handleExpired()
		return
	}

	switch {
	case ttl <= m.cfg.CriticalThreshold:
		m.raise(SeverityCritical,
			fmt.Sprintf("Session expires in %s. Refresh now to stay signed in.", ttl.Round(time.Second)),
			ttl,
			[]Action{
				{Name: "refresh", Run: m.refresher.Refresh},
				{Name: "logout", Run: m.store.Clear},
			})

	case ttl <= m.cfg.AutoRefreshWindow:
		// Внутри окна, но выше критического порога: вместо alert-а
		// выполняем фоновый refresh
		if err := m.refresher.Refresh(ctx); err != nil {
			m.logger.Debug("proactive refresh failed", "error", err)
			m.handleExpired()
			return
		}
		m.raise(SeverityInfo, "Session extended automatically.", ttl, nil)

	case ttl <= m.cfg.WarningThreshold:
		id := alertID(SeverityWarning)
		m.raise(SeverityWarning,
			fmt.Sprintf("Session expires in %s.", ttl.Round(time.Minute)),
			ttl,
			[]Action{
				{Name: "refresh", Run: m.refresher.Refresh},
				{Name: "dismiss", Run: func(context.Context) error { m.DismissAlert(id); return nil }},
			})

	default:
		m.clearAlerts()
	}
}

// handleExpired обрабатывает недействительную сессию: все текущие
// alert-ы снимаются, поднимается терминальный expired alert, уведомляются
// expiration-подписчики
func (m *Monitor) handleExpired() {
	m.mu.Lock()
	m.alerts = make(map[string]*Alert)
	subs := make([]func(), 0, len(m.expirySubs))
	for _, fn := range m.expirySubs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	m.raise(SeverityExpired,
		"Your session has expired. Please sign in again.",
		0,
		[]Action{
			// Единственный выход из терминального состояния - повторный вход
			{Name: "login", Run: m.store.Clear},
		})

	for _, fn := range subs {
		fn()
	}
}

// raise creates or refreshes the alert of the given severity tier.
// Notifications fire only on creation, so repeated checks inside one tier
// do not stack duplicate signals.
func (m *Monitor) raise(sev Severity, message string, ttl time.Duration, actions []Action) {
	id := alertID(sev)

	m.mu.Lock()
	if existing, ok := m.alerts[id]; ok {
		existing.Message = message
		existing.TimeToExpiry = ttl
		existing.Timestamp = time.Now()
		m.mu.Unlock()
		return
	}

	alert := &Alert{
		ID:           id,
		Severity:     sev,
		Message:      message,
		TimeToExpiry: ttl,
		Timestamp:    time.Now(),
		Actions:      actions,
	}
	m.alerts[id] = alert

	subs := make([]func(Alert), 0, len(m.alertSubs))
	for _, fn := range m.alertSubs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	m.notifier.Notify(*alert)
	for _, fn := range subs {
		fn(*alert)
	}
}

// clearAlerts снимает все активные alert-ы (здоровая сессия)
func (m *Monitor) clearAlerts() {
	m.mu.Lock()
	m.alerts = make(map[string]*Alert)
	m.mu.Unlock()
}

// pruneStaleLocked снимает alert-ы, пережившие таймаут свежести
func (m *Monitor) pruneStaleLocked() {
	cutoff := time.Now().Add(-m.cfg.AlertTTL)
	for id, alert := range m.alerts {
		if alert.Timestamp.Before(cutoff) {
			delete(m.alerts, id)
		}
	}
}

// DismissAlert removes a specific alert without touching token state
func (m *Monitor) DismissAlert(id string) {
	m.mu.Lock()
	delete(m.alerts, id)
	m.mu.Unlock()
}

// Alerts returns a snapshot of the active alerts
func (m *Monitor) Alerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Alert, 0, len(m.alerts))
	for _, alert := range m.alerts {
		out = append(out, *alert)
	}
	return out
}

// OnAlert registers an observer for alert creation and returns an
// unsubscribe function
func (m *Monitor) OnAlert(fn func(Alert)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.alertSubs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.alertSubs, id)
	}
}

// OnExpiration registers an observer for terminal session expiry and
// returns an unsubscribe function
func (m *Monitor) OnExpiration(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.expirySubs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.expirySubs, id)
	}
}

// Status reports the running flag, alert count, last check time, and the
// active threshold configuration
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Status{
		Running:    m.running,
		AlertCount: len(m.alerts),
		LastCheck:  m.lastCheck,
		Config:     m.cfg,
	}
}
