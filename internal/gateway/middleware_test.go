package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

func TestLoggingMiddleware(t *testing.T) {
	handler := loggingMiddleware(okHandler(), testLog(), nil)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestStatusWriterCapturesStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rr, status: http.StatusOK}
	sw.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusTeapot, sw.status)
	assert.Equal(t, rr, sw.Unwrap())

	// httptest.ResponseRecorder cannot be hijacked.
	_, _, err := sw.Hijack()
	assert.Error(t, err)
}

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	rr := httptest.NewRecorder()
	requestIDMiddleware(okHandler()).ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))
	assert.Len(t, rr.Header().Get("X-Request-ID"), 36)
}

func TestRequestIDMiddleware_PreservesExisting(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "custom-id-123")
	rr := httptest.NewRecorder()
	requestIDMiddleware(okHandler()).ServeHTTP(rr, req)

	assert.Equal(t, "custom-id-123", rr.Header().Get("X-Request-ID"))
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"deny when unconfigured", nil, "http://localhost:3000", ""},
		{"wildcard", []string{"*"}, "http://anything.example", "http://anything.example"},
		{"vite dev origin", []string{"http://localhost:5173"}, "http://localhost:5173", "http://localhost:5173"},
		{"other origin", []string{"http://localhost:5173"}, "http://evil.example", ""},
		{"no origin header", []string{"http://localhost:5173"}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			corsMiddleware(okHandler(), tt.allowed).ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tt.want, rr.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	req := httptest.NewRequest("OPTIONS", "/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	corsMiddleware(okHandler(), []string{"http://localhost:5173"}).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestAuthMiddleware(t *testing.T) {
	auth := ResolvedAuth{Token: "s3cret"}
	handler := authMiddleware(okHandler(), auth, testLog())

	tests := []struct {
		name   string
		method string
		path   string
		header string
		want   int
	}{
		{"root is public", "GET", "/", "", http.StatusOK},
		{"health is public", "GET", "/health", "", http.StatusOK},
		{"ws authenticates in handshake", "GET", "/ws", "", http.StatusOK},
		{"preflight passes", "OPTIONS", "/chat", "", http.StatusOK},
		{"chat needs token", "POST", "/chat", "", http.StatusUnauthorized},
		{"wrong token", "GET", "/threads", "Bearer nope", http.StatusUnauthorized},
		{"right token", "GET", "/threads", "Bearer s3cret", http.StatusOK},
		{"metrics needs token", "GET", "/metrics", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Bearer")
			}
		})
	}
}

func TestAuthMiddleware_DisabledPassesEverything(t *testing.T) {
	handler := authMiddleware(okHandler(), ResolvedAuth{}, testLog())
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/chat", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestWithMiddleware(t *testing.T) {
	handler := withMiddleware(okHandler(), testLog(), nil, []string{"http://localhost:5173"}, ResolvedAuth{})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}
