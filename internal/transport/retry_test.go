package transport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirimku/smartseller-storefront-sub001/internal/session"
)

func TestDoWithRetry_RecoversFromNetworkFailure(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Первая попытка обрывается на уровне соединения
		if requests.Add(1) == 1 {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	interceptor, _ := newTestInterceptor(t, &stubAuthClient{})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/orders", nil)
	require.NoError(t, err)

	resp, err := interceptor.DoWithRetry(req, DefaultRetryAttempts)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(2), requests.Load())
}

func TestDoWithRetry_AuthFailureNotRetried(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	authClient := &stubAuthClient{refreshErr: assert.AnError}
	interceptor, _ := newTestInterceptor(t, authClient)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/orders", nil)
	require.NoError(t, err)

	_, err = interceptor.DoWithRetry(req, DefaultRetryAttempts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthentication)

	// Терминальный отказ аутентификации не повторяется
	assert.Equal(t, int64(1), requests.Load())
	assert.Equal(t, int64(1), authClient.refreshCalls.Load())
}

func TestDoWithRetry_ReplaysBody(t *testing.T) {
	var bodies []string
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))
		if requests.Add(1) == 1 {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	interceptor, _ := newTestInterceptor(t, &stubAuthClient{})

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/orders", strings.NewReader(`{"sku":"A-1"}`))
	require.NoError(t, err)

	resp, err := interceptor.DoWithRetry(req, DefaultRetryAttempts)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, []string{`{"sku":"A-1"}`, `{"sku":"A-1"}`}, bodies)
}

func TestDoWithRetry_NonReplayableBody(t *testing.T) {
	interceptor, _ := newTestInterceptor(t, &stubAuthClient{})

	req, err := http.NewRequest(http.MethodPost, "http://127.0.0.1:1/api/orders", nil)
	require.NoError(t, err)
	// Тело без GetBody нельзя перемотать для повтора
	req.Body = io.NopCloser(strings.NewReader("data"))
	req.GetBody = nil

	_, err = interceptor.DoWithRetry(req, DefaultRetryAttempts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not replayable")
}

func TestIsNetworkError(t *testing.T) {
	assert.False(t, isNetworkError(ErrAuthentication))
	assert.False(t, isNetworkError(session.ErrRefreshFailed))
	assert.False(t, isNetworkError(assert.AnError))
}
