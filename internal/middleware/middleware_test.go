package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"vouchers/internal/model"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name          string
		origins       []string
		method        string
		origin        string
		expectStatus  int
		expectHandler bool
		expectOrigin  string
	}{
		{
			name:          "Preflight request",
			origins:       []string{"*"},
			method:        http.MethodOptions,
			expectStatus:  http.StatusNoContent,
			expectHandler: false,
			expectOrigin:  "*",
		},
		{
			name:          "Any origin",
			origins:       nil,
			method:        http.MethodPost,
			origin:        "https://anywhere.example.com",
			expectStatus:  http.StatusOK,
			expectHandler: true,
			expectOrigin:  "*",
		},
		{
			name:          "Listed origin is echoed",
			origins:       []string{"https://shop.example.com"},
			method:        http.MethodGet,
			origin:        "https://shop.example.com",
			expectStatus:  http.StatusOK,
			expectHandler: true,
			expectOrigin:  "https://shop.example.com",
		},
		{
			name:          "Unlisted origin gets no allow header",
			origins:       []string{"https://shop.example.com"},
			method:        http.MethodGet,
			origin:        "https://evil.example.com",
			expectStatus:  http.StatusOK,
			expectHandler: true,
			expectOrigin:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := CORS(tt.origins)(okHandler(&called))

			req := httptest.NewRequest(tt.method, "/api/vouchers", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectStatus, w.Code)
			assert.Equal(t, tt.expectHandler, called)
			assert.Equal(t, tt.expectOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
		})
	}
}

func TestAPIKeyAuth(t *testing.T) {
	const apiKey = "test-api-key-123"

	tests := []struct {
		name          string
		path          string
		key           string
		expectStatus  int
		expectHandler bool
	}{
		{name: "Valid API key", path: "/api/vouchers", key: apiKey, expectStatus: http.StatusOK, expectHandler: true},
		{name: "Invalid API key", path: "/api/vouchers", key: "invalid-key", expectStatus: http.StatusUnauthorized},
		{name: "Missing API key", path: "/api/vouchers", expectStatus: http.StatusUnauthorized},
		{name: "Key prefix is not enough", path: "/api/vouchers", key: "test-api-key", expectStatus: http.StatusUnauthorized},
		{name: "Health check is public", path: "/health", expectStatus: http.StatusOK, expectHandler: true},
		{name: "Metrics are public", path: "/metrics", expectStatus: http.StatusOK, expectHandler: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := APIKeyAuth(apiKey, zerolog.Nop())(okHandler(&called))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectStatus, w.Code)
			assert.Equal(t, tt.expectHandler, called)
			if !tt.expectHandler {
				var resp model.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, model.ErrCodeUnauthorised, resp.Error)
			}
		})
	}
}

func TestLogging(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		expectLevel string
	}{
		{name: "Success logs at info", status: http.StatusOK, body: `{"valid":true}`, expectLevel: "info"},
		{name: "Implicit status", status: 0, body: "ok", expectLevel: "info"},
		{name: "Rejection logs at warn", status: http.StatusConflict, expectLevel: "warn"},
		{name: "Server error logs at error", status: http.StatusInternalServerError, expectLevel: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)

			handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
				_, _ = w.Write([]byte(tt.body))
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/vouchers/ABC/redeem", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

			expectStatus := tt.status
			if expectStatus == 0 {
				expectStatus = http.StatusOK
			}
			assert.Equal(t, tt.expectLevel, entry["level"])
			assert.Equal(t, float64(expectStatus), entry["status"])
			assert.Equal(t, float64(len(tt.body)), entry["bytes"])
			assert.Equal(t, "/api/vouchers/ABC/redeem", entry["path"])
		})
	}
}

func TestRecovery(t *testing.T) {
	tests := []struct {
		name       string
		panicValue any
	}{
		{name: "Panic with string", panicValue: "something went wrong"},
		{name: "Panic with error", panicValue: assert.AnError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Recovery(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				panic(tt.panicValue)
			}))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusInternalServerError, w.Code)

			var resp model.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, model.ErrCodeInternalError, resp.Error)
			assert.Equal(t, "internal server error", resp.Message)
		})
	}

	t.Run("No panic", func(t *testing.T) {
		called := false
		handler := Recovery(zerolog.Nop())(okHandler(&called))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.True(t, called)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Abort handler is re-raised", func(t *testing.T) {
		handler := Recovery(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		}))

		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))
		})
	})
}

func TestRecovery_IncludesRequestID(t *testing.T) {
	handler := chimw.RequestID(Recovery(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(chimw.RequestIDHeader, "req-123")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "req-123", resp.RequestID)
}
