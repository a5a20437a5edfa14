package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kylegordy/cpd-zones/internal/middleware"
)

func doRequest(t *testing.T, method, origin string) *httptest.ResponseRecorder {
	t.Helper()

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(method, "/zones/search", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	middleware.CORSMiddleware(inner).ServeHTTP(rec, req)
	return rec
}

func TestCORS_AllowedOrigin(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "http://localhost:5173")

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q, want the echoed origin", got)
	}
	if rec.Header().Get("Vary") != "Origin" {
		t.Error("expected Vary: Origin for caches")
	}
}

func TestCORS_UnknownOriginNotEchoed(t *testing.T) {
	rec := doRequest(t, http.MethodGet, "http://evil.example")

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin must not be echoed, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("request itself should still pass through, got %d", rec.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	rec := doRequest(t, http.MethodOptions, "http://localhost:5173")

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight should short-circuit with 204, got %d", rec.Code)
	}
}
