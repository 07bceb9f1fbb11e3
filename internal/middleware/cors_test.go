package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

const opsConsole = "https://ops.warehouse.example"

func serveCORS(t *testing.T, cfg CORSConfig, req *http.Request) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	reached := false
	h := CORSMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, reached
}

func TestCORSMiddleware_SimpleRequests(t *testing.T) {
	tests := []struct {
		name        string
		cfg         CORSConfig
		origin      string
		allowOrigin string
		headers     map[string]string
	}{
		{
			name:   "disabled leaves responses alone",
			cfg:    CORSConfig{Enabled: false, AllowedOrigins: []string{opsConsole}},
			origin: opsConsole,
		},
		{
			name:        "listed origin is echoed",
			cfg:         CORSConfig{Enabled: true, AllowedOrigins: []string{opsConsole}},
			origin:      opsConsole,
			allowOrigin: opsConsole,
			headers:     map[string]string{"Vary": "Origin"},
		},
		{
			name:   "unlisted origin gets no grant",
			cfg:    CORSConfig{Enabled: true, AllowedOrigins: []string{opsConsole}},
			origin: "https://storefront.example",
		},
		{
			name:        "wildcard allows any origin",
			cfg:         CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}},
			origin:      "https://storefront.example",
			allowOrigin: "*",
		},
		{
			name: "credentials and exposed headers",
			cfg: CORSConfig{
				Enabled:          true,
				AllowedOrigins:   []string{opsConsole},
				ExposeHeaders:    []string{"X-Request-Id", "Retry-After"},
				AllowCredentials: true,
			},
			origin:      opsConsole,
			allowOrigin: opsConsole,
			headers: map[string]string{
				"Access-Control-Allow-Credentials": "true",
				"Access-Control-Expose-Headers":    "X-Request-Id, Retry-After",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
			req.Header.Set("Origin", tt.origin)

			rec, reached := serveCORS(t, tt.cfg, req)
			assert.True(t, reached, "simple requests always reach the handler")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.allowOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			for k, v := range tt.headers {
				assert.Equal(t, v, rec.Header().Get(k), k)
			}
		})
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	cfg := CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{opsConsole},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Admin-Token"},
		MaxAge:         600,
	}

	preflight := func(origin, method, headers string) *http.Request {
		req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", method)
		if headers != "" {
			req.Header.Set("Access-Control-Request-Headers", headers)
		}
		return req
	}

	t.Run("allowed", func(t *testing.T) {
		rec, reached := serveCORS(t, cfg, preflight(opsConsole, http.MethodPost, "authorization,content-type"))
		assert.False(t, reached)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, opsConsole, rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "POST", rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Authorization, Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec, reached := serveCORS(t, cfg, preflight(opsConsole, http.MethodDelete, ""))
		assert.False(t, reached)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("header not allowed", func(t *testing.T) {
		rec, reached := serveCORS(t, cfg, preflight(opsConsole, http.MethodPost, "X-Debug"))
		assert.False(t, reached)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("origin not allowed", func(t *testing.T) {
		rec, reached := serveCORS(t, cfg, preflight("https://storefront.example", http.MethodPost, ""))
		assert.False(t, reached)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
