package core

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type recordedRequest struct {
	method, path string
	status       int
	duration     time.Duration
}

type fakeMetrics struct {
	mu       sync.Mutex
	recorded []recordedRequest
}

func (m *fakeMetrics) RecordRequest(method, path string, status int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, recordedRequest{method, path, status, duration})
}

func TestMetricsMiddleware_RecordsRoutePattern(t *testing.T) {
	m := &fakeMetrics{}
	srv := newTestServer(t)
	srv.Metrics = m
	srv.V1RouteRegistrars = []func(chi.Router){func(r chi.Router) {
		r.Get("/regions/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
	}}
	srv.MountRoutes()

	serve(srv, httptest.NewRequest(http.MethodGet, "/v1/regions/abc-123", nil))

	if len(m.recorded) != 1 {
		t.Fatalf("recorded %d requests, want 1", len(m.recorded))
	}
	got := m.recorded[0]
	if got.method != http.MethodGet || got.path != "/v1/regions/{id}" || got.status != http.StatusTeapot {
		t.Errorf("recorded %+v", got)
	}
}

func TestMetricsMiddleware_NilCollectorPassesThrough(t *testing.T) {
	srv := newTestServer(t)
	called := false
	h := srv.MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("handler not called")
	}
}

func TestMetricsMiddleware_UnmatchedRoute(t *testing.T) {
	m := &fakeMetrics{}
	srv := newTestServer(t)
	srv.Metrics = m
	h := srv.MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if len(m.recorded) != 1 || m.recorded[0].path != "unmatched" || m.recorded[0].status != http.StatusOK {
		t.Errorf("recorded %+v", m.recorded)
	}
}

func TestRequestLogger_LevelsAndRedaction(t *testing.T) {
	cases := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "level=INFO"},
		{http.StatusNotFound, "level=WARN"},
		{http.StatusBadGateway, "level=ERROR"},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		h := RequestLogger(logger, []string{"authorization"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		req := httptest.NewRequest(http.MethodGet, "/v1/regions", nil)
		req.Header.Set("Authorization", "Bearer secret-token")
		h.ServeHTTP(httptest.NewRecorder(), req)

		out := buf.String()
		if !strings.Contains(out, tc.level) {
			t.Errorf("status %d: expected %s in %q", tc.status, tc.level, out)
		}
		if strings.Contains(out, "secret-token") {
			t.Errorf("authorization header leaked: %q", out)
		}
		if !strings.Contains(out, "[REDACTED]") {
			t.Errorf("expected redaction marker in %q", out)
		}
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.SecurityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("specific origin allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://map.example.com")
		NewCORSMiddleware([]string{"https://map.example.com/"})(next).ServeHTTP(rec, req)

		if rec.Header().Get("Access-Control-Allow-Origin") != "https://map.example.com" {
			t.Errorf("allow-origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
		}
		if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("expected credentials for a specific origin")
		}
		if rec.Header().Get("Vary") != "Origin" {
			t.Error("expected Vary: Origin")
		}
	})

	t.Run("origin denied", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		NewCORSMiddleware([]string{"https://map.example.com"})(next).ServeHTTP(rec, req)

		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("unexpected allow-origin header")
		}
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/v1/regions", nil)
		req.Header.Set("Origin", "http://localhost")
		req.Header.Set("Access-Control-Request-Method", "POST")
		NewCORSMiddleware([]string{"*"})(next).ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Credentials") != "" {
			t.Error("wildcard must not allow credentials")
		}
	})
}

func TestResponseCapture(t *testing.T) {
	rec := httptest.NewRecorder()
	rc := capture(rec)
	_, _ = rc.Write([]byte("x"))
	rc.WriteHeader(http.StatusInternalServerError)
	if rc.statusCode != http.StatusOK {
		t.Errorf("status = %d, want the first (implicit) 200", rc.statusCode)
	}
	if rc.Unwrap() != rec {
		t.Error("Unwrap should return the underlying writer")
	}
	if capture(rc) != rc {
		t.Error("capture should reuse an existing responseCapture")
	}
}
