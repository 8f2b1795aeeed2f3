package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func runCORS(t *testing.T, origins []string, req *http.Request) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	CORS(origins)(handler).ServeHTTP(rec, req)
	return rec, called
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability", nil)
	req.Header.Set("Origin", "https://app.dentaflow.example")

	rec, called := runCORS(t, []string{"https://app.dentaflow.example"}, req)
	if !called {
		t.Fatalf("expected handler to run")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.dentaflow.example" {
		t.Fatalf("expected origin echoed, got %q", got)
	}
	if rec.Header().Get("Vary") != "Origin" {
		t.Fatalf("expected Vary: Origin")
	}
}

func TestCORSIgnoresUnlistedOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability", nil)
	req.Header.Set("Origin", "https://evil.example")

	rec, called := runCORS(t, []string{"https://app.dentaflow.example"}, req)
	if !called {
		t.Fatalf("expected handler to still run without CORS headers")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow-origin header, got %q", got)
	}
}

func TestCORSWildcardEchoesAnyOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://anything.example")

	rec, _ := runCORS(t, []string{"*"}, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://anything.example" {
		t.Fatalf("expected wildcard to echo origin, got %q", got)
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/appointments", nil)
	req.Header.Set("Origin", "https://app.dentaflow.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec, called := runCORS(t, []string{"https://app.dentaflow.example"}, req)
	if called {
		t.Fatalf("preflight must not reach the handler")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatalf("expected allowed methods advertised")
	}
}
