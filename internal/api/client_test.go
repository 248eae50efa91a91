package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirimku/smartseller-storefront-sub001/pkg/api"
)

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req api.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "customer@example.com", req.Email)
		assert.Equal(t, "secret-password", req.Password)

		_ = json.NewEncoder(w).Encode(api.LoginResponse{
			TokenResponse: api.TokenResponse{
				AccessToken:  "access-1",
				RefreshToken: "refresh-1",
				TokenType:    "Bearer",
				ExpiresIn:    900,
			},
			Profile: api.CustomerProfile{
				ID:    "c-42",
				Email: "customer@example.com",
				Name:  "Test Customer",
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	resp, err := client.Login(context.Background(), api.LoginRequest{
		Email:    "customer@example.com",
		Password: "secret-password",
	})
	require.NoError(t, err)

	assert.Equal(t, "access-1", resp.AccessToken)
	assert.Equal(t, "refresh-1", resp.RefreshToken)
	assert.Equal(t, int64(900), resp.ExpiresIn)
	assert.Equal(t, "c-42", resp.Profile.ID)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{
			Error:   "unauthorized",
			Message: "invalid email or password",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	_, err := client.Login(context.Background(), api.LoginRequest{
		Email:    "customer@example.com",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email or password")
	assert.Contains(t, err.Error(), "401")
}

func TestRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/refresh", r.URL.Path)

		var req api.RefreshRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "refresh-1", req.RefreshToken)

		_ = json.NewEncoder(w).Encode(api.TokenResponse{
			AccessToken:  "access-2",
			RefreshToken: "refresh-2",
			TokenType:    "Bearer",
			ExpiresIn:    900,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	resp, err := client.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", resp.AccessToken)
	assert.Equal(t, "refresh-2", resp.RefreshToken)
}

func TestLogout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/logout", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	assert.NoError(t, client.Logout(context.Background(), "refresh-1"))
}

func TestCSRFToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/csrf", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.CSRFResponse{Token: "csrf-1"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)

	resp, err := client.CSRFToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "csrf-1", resp.Token)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestDoRequest_ErrorEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantText string
	}{
		{
			name:     "structured error",
			status:   http.StatusBadRequest,
			body:     `{"error":"validation","message":"email is required"}`,
			wantText: "server error (400): email is required",
		},
		{
			name:     "plain text error",
			status:   http.StatusInternalServerError,
			body:     "internal server error",
			wantText: "request failed with status 500",
		},
		{
			name:     "empty body",
			status:   http.StatusBadGateway,
			body:     "",
			wantText: "request failed with status 502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(srv.URL)

			err := client.Ping(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantText)
		})
	}
}

func TestDoRequest_ServerUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")

	err := client.Ping(context.Background())
	assert.Error(t, err)
}
