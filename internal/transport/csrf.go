package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/kirimku/smartseller-storefront-sub001/pkg/api"
)

// CSRFHeader is the anti-forgery header the storefront backend expects on
// state-changing requests
const CSRFHeader = "X-CSRF-Token"

// CSRFClient defines the bootstrap call of the anti-forgery service
type CSRFClient interface {
	CSRFToken(ctx context.Context) (*api.CSRFResponse, error)
}

// CSRFManager lazily bootstraps the anti-forgery token and attaches it to
// unsafe-verb requests. Bootstrap is idempotent: concurrent callers share
// one fetched token.
type CSRFManager struct {
	mu     sync.Mutex
	client CSRFClient
	token  string
}

// NewCSRFManager creates a CSRFManager over the given bootstrap client
func NewCSRFManager(client CSRFClient) *CSRFManager {
	return &CSRFManager{client: client}
}

// BootstrapIfNeeded fetches the anti-forgery token on first use
func (m *CSRFManager) BootstrapIfNeeded(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" {
		return nil
	}

	resp, err := m.client.CSRFToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to bootstrap csrf token: %w", err)
	}
	m.token = resp.Token
	return nil
}

// Attach sets the anti-forgery header on the request if a token is known
func (m *CSRFManager) Attach(req *http.Request) {
	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	if token != "" {
		req.Header.Set(CSRFHeader, token)
	}
}

// Invalidate забывает текущий токен; следующий небезопасный запрос
// загрузит новый
func (m *CSRFManager) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
}
