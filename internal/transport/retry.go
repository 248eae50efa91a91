package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/kirimku/smartseller-storefront-sub001/internal/session"
)

// Retry policy for network-class failures. Fixed delay, bounded count -
// HTTP statuses are never retried here, and an authentication error that
// survived a refresh is terminal.
const (
	// DefaultRetryAttempts - сколько повторов разрешено после первой попытки
	DefaultRetryAttempts = 3
	// DefaultRetryDelay - фиксированная пауза между попытками
	DefaultRetryDelay = time.Second
)

// DoWithRetry sends the request through the interceptor, retrying only
// network-class failures (timeouts, connection errors) up to maxRetries
// times with a fixed delay. Pass DefaultRetryAttempts unless the caller
// has a reason to differ.
func (i *Interceptor) DoWithRetry(req *http.Request, maxRetries uint64) (*http.Response, error) {
	var resp *http.Response

	backoff := retry.WithMaxRetries(maxRetries, retry.NewConstant(DefaultRetryDelay))

	err := retry.Do(req.Context(), backoff, func(ctx context.Context) error {
		attempt, err := i.rewind(ctx, req)
		if err != nil {
			return err
		}

		r, err := i.Do(attempt)
		if err != nil {
			if isNetworkError(err) {
				return retry.RetryableError(err)
			}
			return err
		}

		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// rewind готовит свежую копию запроса для очередной попытки
func (i *Interceptor) rewind(ctx context.Context, req *http.Request) (*http.Request, error) {
	out := req.Clone(ctx)
	if req.Body == nil {
		return out, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body is not replayable")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	out.Body = body
	return out, nil
}

// isNetworkError отделяет транспортные сбои от терминальных ошибок
// аутентификации: последние повторять нельзя
func isNetworkError(err error) bool {
	if errors.Is(err, ErrAuthentication) || errors.Is(err, session.ErrRefreshFailed) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
