package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	var seen string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	})

	req := httptest.NewRequest("GET", "/houses/1/photos", nil)
	rec := httptest.NewRecorder()

	RequestID(handler).ServeHTTP(rec, req)

	if seen == "" {
		t.Fatal("expected a generated request id in context")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("response header %q does not match context id %q", got, seen)
	}
}

func TestRequestID_PreservesUpstreamID(t *testing.T) {
	var seen string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "upstream-42")
	rec := httptest.NewRecorder()

	RequestID(handler).ServeHTTP(rec, req)

	if seen != "upstream-42" {
		t.Errorf("expected upstream id to be preserved, got %q", seen)
	}
}

func TestGetRequestID_EmptyWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if id := GetRequestID(req.Context()); id != "" {
		t.Errorf("expected empty id, got %q", id)
	}
}
