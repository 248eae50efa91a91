package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultRefreshTimeout bounds a single refresh call. Without a bound a
// hung refresh would hold the single-flight guard and starve every queued
// caller.
const DefaultRefreshTimeout = 30 * time.Second

// ErrRefreshFailed is wrapped around any terminal refresh failure
var ErrRefreshFailed = errors.New("token refresh failed")

// RefresherStatus reports the current state of the single-flight guard
type RefresherStatus struct {
	Refreshing bool // идет ли обновление прямо сейчас
	QueueDepth int  // сколько вызовов ждут его результата
}

// Refresher is the one refresh primitive shared by the HTTP interceptor
// and the expiration monitor. It guarantees that at most one refresh call
// is in flight at any time: callers that arrive while a refresh is running
// are queued in arrival order and share the settled result.
type Refresher struct {
	mu      sync.Mutex
	client  APIClient
	store   *Store
	timeout time.Duration
	logger  *slog.Logger

	refreshing bool
	waiters    []chan error
}

// NewRefresher creates a Refresher over the shared store and auth client
func NewRefresher(client APIClient, store *Store, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		client:  client,
		store:   store,
		timeout: DefaultRefreshTimeout,
		logger:  logger,
	}
}

// Refresh obtains a fresh access token. If a refresh is already in flight
// the call waits for its result instead of starting a second one. On
// failure every queued caller receives the same terminal error.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	if r.refreshing {
		// Кто-то уже обновляет - встаем в очередь и ждем его результат
		ch := make(chan error, 1)
		r.waiters = append(r.waiters, ch)
		r.mu.Unlock()

		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.refreshing = true
	r.mu.Unlock()

	err := r.doRefresh(ctx)

	r.mu.Lock()
	r.refreshing = false
	waiters := r.waiters
	r.waiters = nil
	r.mu.Unlock()

	// Освобождаем ожидающих в порядке поступления (FIFO)
	for _, ch := range waiters {
		ch <- err
	}

	return err
}

// doRefresh выполняет сам вызов обновления. Контекст отвязывается от
// инициатора: отмена одного из многих ожидающих запросов не должна
// ронять общий для всех refresh.
func (r *Refresher) doRefresh(ctx context.Context) error {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	refreshToken, ok := r.store.RefreshToken(rctx)
	if !ok {
		return fmt.Errorf("%w: no refresh token available", ErrRefreshFailed)
	}

	resp, err := r.client.Refresh(rctx, refreshToken)
	if err != nil {
		r.logger.Debug("refresh call failed", "error", err)
		return fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	if err := r.store.ApplyRefresh(rctx, resp); err != nil {
		// Память уже обновлена, не смогли только сохранить ротацию -
		// для вызывающих это успех
		r.logger.Warn("refresh succeeded but persistence failed", "error", err)
	}

	r.logger.Debug("access token refreshed")
	return nil
}

// Status exposes whether a refresh is in flight and the queue depth,
// for UI and diagnostics
func (r *Refresher) Status() RefresherStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RefresherStatus{
		Refreshing: r.refreshing,
		QueueDepth: len(r.waiters),
	}
}
