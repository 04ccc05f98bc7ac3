package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// =============================================================================
// Security Headers Middleware Tests
// =============================================================================

func TestSecurityHeadersMiddleware_SetsAllHeaders(t *testing.T) {
	mw := NewSecurityHeadersMiddleware(true)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()

	mw.Handler(handler).ServeHTTP(rec, req)

	tests := []struct {
		header   string
		expected string
	}{
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "strict-origin-when-cross-origin"},
	}

	for _, tc := range tests {
		got := rec.Header().Get(tc.header)
		if got != tc.expected {
			t.Errorf("%s: expected %q, got %q", tc.header, tc.expected, got)
		}
	}

	if csp := rec.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "default-src 'none'") {
		t.Errorf("unexpected CSP: %q", csp)
	}
}

func TestSecurityHeadersMiddleware_HSTSInProduction(t *testing.T) {
	mwProd := NewSecurityHeadersMiddleware(true)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()

	mwProd.Handler(handler).ServeHTTP(rec, req)

	hsts := rec.Header().Get("Strict-Transport-Security")
	if hsts == "" {
		t.Error("expected HSTS header in production, got empty")
	}
	if !strings.Contains(hsts, "max-age=") {
		t.Errorf("expected HSTS max-age, got %q", hsts)
	}
}

func TestSecurityHeadersMiddleware_NoHSTSInDevelopment(t *testing.T) {
	mwDev := NewSecurityHeadersMiddleware(false)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()

	mwDev.Handler(handler).ServeHTTP(rec, req)

	if hsts := rec.Header().Get("Strict-Transport-Security"); hsts != "" {
		t.Errorf("expected no HSTS in development, got %q", hsts)
	}
}
