// Package transport wraps the HTTP layer of the storefront client so that
// token injection, anti-forgery bootstrap, and transparent refresh-and-replay
// on 401 happen for every call without the callers knowing. The interceptor
// is an explicit wrapper, not a patched global: application code is expected
// to call Interceptor.Do (or mount the RoundTripper adapter) instead of the
// bare http.Client.
package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/kirimku/smartseller-storefront-sub001/internal/session"
)

// BypassHeader lets a single request opt out of interception entirely.
// The header is stripped before the request leaves the client.
const BypassHeader = "X-Skip-Interceptor"

// DefaultExcludedPaths are endpoint substrings that establish or rotate
// credentials. Их Authorization никогда не трогаем: перехватчик, который
// подменяет заголовки самому login/refresh, ломает вход в систему.
var DefaultExcludedPaths = []string{
	"/auth/login",
	"/auth/register",
	"/auth/refresh",
	"/csrf",
	"/public/tenant",
}

// ErrAuthentication indicates a 401 that survived one refresh attempt.
// It is terminal for the request: no further automatic retry happens.
var ErrAuthentication = errors.New("authentication failed")

// Status reports interceptor diagnostics for UI
type Status struct {
	Refreshing bool
	QueueDepth int
}

// sendFunc абстрагирует нижний слой: http.Client.Do для обертки-клиента
// и RoundTripper.RoundTrip для адаптера транспорта
type sendFunc func(*http.Request) (*http.Response, error)

// Interceptor is the canonical interception core shared by both adapters
// (client wrapper and RoundTripper). One instance per composition root:
// the single-flight refresh guard lives in the shared Refresher.
type Interceptor struct {
	base      *http.Client
	store     *session.Store
	refresher *session.Refresher
	csrf      *CSRFManager
	excluded  []string
	logger    *slog.Logger
}

// NewInterceptor creates the interceptor over the given base client.
// A cookie jar is installed if the base client has none: server-set
// session and anti-forgery cookies must flow on every request.
func NewInterceptor(base *http.Client, store *session.Store, refresher *session.Refresher, csrf *CSRFManager, logger *slog.Logger) *Interceptor {
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}
	if base.Jar == nil {
		if jar, err := cookiejar.New(nil); err == nil {
			base.Jar = jar
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Interceptor{
		base:      base,
		store:     store,
		refresher: refresher,
		csrf:      csrf,
		excluded:  DefaultExcludedPaths,
		logger:    logger,
	}
}

// SetExcludedPaths replaces the excluded-endpoint substring list
func (i *Interceptor) SetExcludedPaths(paths []string) {
	i.excluded = paths
}

// Do sends the request through the interception core using the wrapped
// http.Client. This is the primary entry point for application code.
func (i *Interceptor) Do(req *http.Request) (*http.Response, error) {
	return i.intercept(req, i.base.Do)
}

// RoundTripper returns an http.RoundTripper adapter over the same
// interception core, for code that composes transports instead of
// calling a client wrapper.
func (i *Interceptor) RoundTripper(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &roundTripper{interceptor: i, send: base.RoundTrip}
}

type roundTripper struct {
	interceptor *Interceptor
	send        sendFunc
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt.interceptor.intercept(req, rt.send)
}

// Status exposes whether a refresh is in flight and the queue depth
func (i *Interceptor) Status() Status {
	st := i.refresher.Status()
	return Status{Refreshing: st.Refreshing, QueueDepth: st.QueueDepth}
}

// intercept реализует основную логику: инъекция заголовков, отправка,
// и однократный refresh-and-replay при 401
func (i *Interceptor) intercept(req *http.Request, send sendFunc) (*http.Response, error) {
	// Явный отказ от перехвата
	if req.Header.Get(BypassHeader) != "" {
		out := req.Clone(req.Context())
		out.Header.Del(BypassHeader)
		return send(out)
	}

	// Эндпоинты, устанавливающие учетные данные, не трогаем вообще
	if i.isExcluded(req.URL.Path) {
		return send(req)
	}

	out := req.Clone(req.Context())

	// Caller intent wins: явный Authorization не подменяем, только
	// нормализуем регистр схемы
	injected := false
	if auth := out.Header.Get("Authorization"); auth != "" {
		out.Header.Set("Authorization", normalizeScheme(auth))
	} else if token, ok := i.store.AccessToken(); ok {
		out.Header.Set("Authorization", i.store.TokenType()+" "+token)
		injected = true
	}

	// Anti-forgery токен для небезопасных методов
	if isUnsafeMethod(out.Method) && i.csrf != nil {
		if err := i.csrf.BootstrapIfNeeded(out.Context()); err != nil {
			i.logger.Debug("csrf bootstrap failed", "error", err)
		}
		i.csrf.Attach(out)
	}

	resp, err := send(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// 401: пробуем один координированный refresh, только если запрос шел
	// с нашим токеном или refresh token вообще существует
	if !injected {
		if _, ok := i.store.RefreshToken(req.Context()); !ok {
			return resp, nil
		}
	}

	drainBody(resp)

	if err := i.refresher.Refresh(req.Context()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	retryReq, err := i.rebuild(req)
	if err != nil {
		return nil, fmt.Errorf("cannot replay request after refresh: %w", err)
	}

	resp, err = send(retryReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// Второй 401 после успешного refresh терминален -
		// дальнейшие повторы устроили бы шторм обновлений
		drainBody(resp)
		return nil, fmt.Errorf("request unauthorized after token refresh: %w", ErrAuthentication)
	}

	return resp, nil
}

// rebuild готовит повтор исходного запроса со свежим токеном
func (i *Interceptor) rebuild(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())

	if req.Body != nil {
		if req.GetBody == nil {
			return nil, fmt.Errorf("request body is not replayable")
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		out.Body = body
	}

	token, ok := i.store.AccessToken()
	if !ok {
		return nil, session.ErrNotAuthenticated
	}
	out.Header.Set("Authorization", i.store.TokenType()+" "+token)

	if isUnsafeMethod(out.Method) && i.csrf != nil {
		i.csrf.Attach(out)
	}

	return out, nil
}

func (i *Interceptor) isExcluded(path string) bool {
	for _, fragment := range i.excluded {
		if strings.Contains(path, fragment) {
			return true
		}
	}
	return false
}

func isUnsafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	}
	return true
}

// normalizeScheme приводит регистр схемы "bearer" к каноническому,
// не меняя сам токен
func normalizeScheme(auth string) string {
	scheme, rest, found := strings.Cut(auth, " ")
	if found && strings.EqualFold(scheme, "Bearer") {
		return "Bearer " + rest
	}
	return auth
}

// drainBody дочитывает и закрывает тело ответа, чтобы соединение
// вернулось в пул перед повтором
func drainBody(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
