package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirimku/smartseller-storefront-sub001/internal/session"
	"github.com/kirimku/smartseller-storefront-sub001/internal/storage"
	"github.com/kirimku/smartseller-storefront-sub001/pkg/api"
)

// memStorage - хранилище в памяти для тестов монитора
type memStorage struct {
	mu  sync.Mutex
	rec *storage.SessionRecord
}

func (m *memStorage) SaveSession(_ context.Context, rec *storage.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.rec = &cp
	return nil
}

func (m *memStorage) GetSession(_ context.Context) (*storage.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return nil, storage.ErrSessionNotFound
	}
	cp := *m.rec
	return &cp, nil
}

func (m *memStorage) DeleteSession(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return storage.ErrSessionNotFound
	}
	m.rec = nil
	return nil
}

// stubAuthClient - управляемый auth-клиент
type stubAuthClient struct {
	refreshCalls atomic.Int64
	refreshErr   error
}

func (s *stubAuthClient) Refresh(context.Context, string) (*api.TokenResponse, error) {
	s.refreshCalls.Add(1)
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return &api.TokenResponse{
		AccessToken:  "refreshed-access",
		RefreshToken: "refreshed-refresh",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
	}, nil
}

func (s *stubAuthClient) Logout(context.Context, string) error { return nil }

var monitorSecret = []byte("monitor-test-secret-32-bytes-ok!")

// newFixture собирает store + refresher + monitor. Токены сохраняются до
// создания монитора, чтобы событие не запустило фоновый цикл - проверки
// в тестах выполняются вручную через CheckNow.
func newFixture(t *testing.T, expiresIn int64, authClient *stubAuthClient) (*Monitor, *session.Store) {
	t.Helper()

	store := session.NewStore(&memStorage{}, monitorSecret, nil)
	if expiresIn > 0 {
		err := store.StoreTokens(context.Background(), &api.TokenResponse{
			AccessToken:  "access-token-1",
			RefreshToken: "refresh-token-1",
			TokenType:    "Bearer",
			ExpiresIn:    expiresIn,
		}, nil)
		require.NoError(t, err)
	}

	refresher := session.NewRefresher(authClient, store, nil)
	m := New(store, refresher, Config{}, nil, nil)
	t.Cleanup(m.Close)

	return m, store
}

func alertBySeverity(alerts []Alert, sev Severity) (Alert, bool) {
	for _, a := range alerts {
		if a.Severity == sev {
			return a, true
		}
	}
	return Alert{}, false
}

func TestCheckNow_HealthySession(t *testing.T) {
	authClient := &stubAuthClient{}
	m, _ := newFixture(t, 3600, authClient)

	m.CheckNow(context.Background())

	assert.Empty(t, m.Alerts())
	assert.Equal(t, int64(0), authClient.refreshCalls.Load())
}

func TestCheckNow_WarningThreshold(t *testing.T) {
	authClient := &stubAuthClient{}
	m, _ := newFixture(t, 600, authClient) // TTL 10 минут

	m.CheckNow(context.Background())

	alerts := m.Alerts()
	require.Len(t, alerts, 1)
	alert, ok := alertBySeverity(alerts, SeverityWarning)
	require.True(t, ok)
	assert.Contains(t, alert.Message, "expires in")

	names := make([]string, 0, len(alert.Actions))
	for _, a := range alert.Actions {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"refresh", "dismiss"}, names)

	// Warning не запускает фоновый refresh
	assert.Equal(t, int64(0), authClient.refreshCalls.Load())
}

func TestCheckNow_WarningDeduplicated(t *testing.T) {
	m, _ := newFixture(t, 600, &stubAuthClient{})

	var notified atomic.Int64
	unsub := m.OnAlert(func(Alert) { notified.Add(1) })
	defer unsub()

	// Повторные проверки внутри одного яруса не плодят дубликаты
	m.CheckNow(context.Background())
	m.CheckNow(context.Background())
	m.CheckNow(context.Background())

	assert.Len(t, m.Alerts(), 1)
	assert.Equal(t, int64(1), notified.Load())
}

func TestCheckNow_ProactiveRefresh(t *testing.T) {
	authClient := &stubAuthClient{}
	m, store := newFixture(t, 300, authClient) // TTL 5 минут, внутри окна

	// Успешный refresh запустит фоновый цикл, который может снять info
	// alert до того, как тест его прочитает - фиксируем через наблюдателя
	var raised []Alert
	var mu sync.Mutex
	unsub := m.OnAlert(func(a Alert) {
		mu.Lock()
		raised = append(raised, a)
		mu.Unlock()
	})
	defer unsub()

	m.CheckNow(context.Background())

	// Вместо тревоги выполняется фоновый refresh
	assert.Equal(t, int64(1), authClient.refreshCalls.Load())

	token, ok := store.AccessToken()
	assert.True(t, ok)
	assert.Equal(t, "refreshed-access", token)

	mu.Lock()
	require.Len(t, raised, 1)
	assert.Equal(t, SeverityInfo, raised[0].Severity)
	assert.Contains(t, raised[0].Message, "extended")
	mu.Unlock()

	// Сессия продлена - следующая проверка снимает уведомления
	m.CheckNow(context.Background())
	assert.Empty(t, m.Alerts())
}

func TestCheckNow_CriticalThreshold(t *testing.T) {
	authClient := &stubAuthClient{}
	m, _ := newFixture(t, 120, authClient) // TTL 2 минуты

	m.CheckNow(context.Background())

	alerts := m.Alerts()
	require.Len(t, alerts, 1)
	alert, ok := alertBySeverity(alerts, SeverityCritical)
	require.True(t, ok)

	names := make([]string, 0, len(alert.Actions))
	for _, a := range alert.Actions {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"refresh", "logout"}, names)

	// В критическом ярусе решение за пользователем, авто-refresh нет
	assert.Equal(t, int64(0), authClient.refreshCalls.Load())

	// Действие refresh из алерта выполняет настоящий refresh
	require.NoError(t, alert.Actions[0].Run(context.Background()))
	assert.Equal(t, int64(1), authClient.refreshCalls.Load())
}

func TestCheckNow_Expired(t *testing.T) {
	m, _ := newFixture(t, 0, &stubAuthClient{}) // сессии нет вообще

	var expired atomic.Int64
	unsub := m.OnExpiration(func() { expired.Add(1) })
	defer unsub()

	m.CheckNow(context.Background())

	alerts := m.Alerts()
	require.Len(t, alerts, 1)
	alert, ok := alertBySeverity(alerts, SeverityExpired)
	require.True(t, ok)
	assert.Contains(t, alert.Message, "expired")
	require.Len(t, alert.Actions, 1)
	assert.Equal(t, "login", alert.Actions[0].Name)

	assert.Equal(t, int64(1), expired.Load())
}

func TestCheckNow_RefreshFailureInWindowIsExpired(t *testing.T) {
	authClient := &stubAuthClient{refreshErr: assert.AnError}
	m, _ := newFixture(t, 300, authClient)

	var expired atomic.Int64
	unsub := m.OnExpiration(func() { expired.Add(1) })
	defer unsub()

	m.CheckNow(context.Background())

	// Провал фонового refresh эскалируется до терминального expired
	_, ok := alertBySeverity(m.Alerts(), SeverityExpired)
	assert.True(t, ok)
	assert.Equal(t, int64(1), expired.Load())
}

func TestDismissAlert(t *testing.T) {
	m, _ := newFixture(t, 600, &stubAuthClient{})

	m.CheckNow(context.Background())
	alerts := m.Alerts()
	require.Len(t, alerts, 1)

	m.DismissAlert(alerts[0].ID)
	assert.Empty(t, m.Alerts())
}

func TestOnAlert_NotifiedOnCreation(t *testing.T) {
	m, _ := newFixture(t, 600, &stubAuthClient{})

	var got []Alert
	var mu sync.Mutex
	unsub := m.OnAlert(func(a Alert) {
		mu.Lock()
		got = append(got, a)
		mu.Unlock()
	})
	defer unsub()

	m.CheckNow(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, SeverityWarning, got[0].Severity)
}

func TestNotifier_ReceivesAlert(t *testing.T) {
	store := session.NewStore(&memStorage{}, monitorSecret, nil)
	require.NoError(t, store.StoreTokens(context.Background(), &api.TokenResponse{
		AccessToken:  "access-token-1",
		RefreshToken: "refresh-token-1",
		ExpiresIn:    600,
	}, nil))

	refresher := session.NewRefresher(&stubAuthClient{}, store, nil)

	notifier := &recordingNotifier{}
	m := New(store, refresher, Config{}, notifier, nil)
	t.Cleanup(m.Close)

	m.CheckNow(context.Background())

	notified := notifier.snapshot()
	require.Len(t, notified, 1)
	assert.Equal(t, SeverityWarning, notified[0].Severity)
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []Alert
}

func (n *recordingNotifier) Notify(a Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
}

func (n *recordingNotifier) snapshot() []Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Alert(nil), n.alerts...)
}

func TestAutoStartStopOnStoreEvents(t *testing.T) {
	store := session.NewStore(&memStorage{}, monitorSecret, nil)
	refresher := session.NewRefresher(&stubAuthClient{}, store, nil)
	m := New(store, refresher, Config{}, nil, nil)
	t.Cleanup(m.Close)

	assert.False(t, m.Status().Running)

	// Успешная аутентификация запускает монитор
	require.NoError(t, store.StoreTokens(context.Background(), &api.TokenResponse{
		AccessToken:  "access-token-1",
		RefreshToken: "refresh-token-1",
		ExpiresIn:    3600,
	}, nil))

	assert.Eventually(t, func() bool {
		return m.Status().Running
	}, 2*time.Second, 5*time.Millisecond)

	// Logout останавливает монитор
	require.NoError(t, store.Clear(context.Background()))

	assert.Eventually(t, func() bool {
		return !m.Status().Running
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStartStopIdempotent(t *testing.T) {
	m, _ := newFixture(t, 3600, &stubAuthClient{})

	m.Start()
	m.Start()
	assert.True(t, m.Status().Running)

	m.Stop()
	m.Stop()
	assert.False(t, m.Status().Running)
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, DefaultCheckInterval, cfg.CheckInterval)
	assert.Equal(t, DefaultWarningThreshold, cfg.WarningThreshold)
	assert.Equal(t, DefaultCriticalThreshold, cfg.CriticalThreshold)
	assert.Equal(t, DefaultAutoRefreshWindow, cfg.AutoRefreshWindow)
	assert.Equal(t, DefaultAlertTTL, cfg.AlertTTL)

	// Явные значения не затираются
	custom := Config{CheckInterval: time.Second}.withDefaults()
	assert.Equal(t, time.Second, custom.CheckInterval)
	assert.Equal(t, DefaultWarningThreshold, custom.WarningThreshold)
}
