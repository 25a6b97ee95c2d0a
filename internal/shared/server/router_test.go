package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tenantarmor-backend/internal/shared/config"
)

func TestRouterHealthAndMetrics(t *testing.T) {
	r := NewRouter(RouterDeps{Config: config.Config{Env: "dev"}})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health expected 200 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "analysis_jobs_dispatched_total") {
		t.Fatalf("metrics output missing counters: %q", rec.Body.String())
	}
}

func TestAddr(t *testing.T) {
	cases := map[string]string{
		"":      ":8080",
		"9090":  ":9090",
		":7070": ":7070",
	}
	for in, want := range cases {
		if got := Addr(in); got != want {
			t.Errorf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
