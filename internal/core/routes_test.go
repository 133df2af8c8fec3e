package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"regionwatch/internal/types"
)

func newRoutedServer(t *testing.T, registrars ...func(chi.Router)) *Server {
	t.Helper()
	srv := newTestServer(t)
	srv.V1RouteRegistrars = registrars
	srv.MountRoutes()
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var body APIErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func TestMountRoutes_HealthEndpoint(t *testing.T) {
	srv := newRoutedServer(t)
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on /health")
	}
}

func TestMountRoutes_V1Registrars(t *testing.T) {
	srv := newRoutedServer(t, func(r chi.Router) {
		r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			Success(w, r, http.StatusOK, "pong")
		})
	})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data != "pong" {
		t.Errorf("data = %v, want pong", body.Data)
	}
}

func TestMountRoutes_NotFound(t *testing.T) {
	srv := newRoutedServer(t)
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/v1/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	detail := decodeError(t, rec)
	if detail.Code != string(errCodeNotFoundRoute) {
		t.Errorf("code = %q", detail.Code)
	}
	if detail.RequestID == "" {
		t.Error("expected request_id in error body")
	}
}

func TestMountRoutes_MethodNotAllowed(t *testing.T) {
	srv := newRoutedServer(t, func(r chi.Router) {
		r.Get("/only-get", func(w http.ResponseWriter, r *http.Request) {})
	})
	rec := serve(srv, httptest.NewRequest(http.MethodDelete, "/v1/only-get", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
	if got := decodeError(t, rec).Code; got != errCodeMethodNotAllowed {
		t.Errorf("code = %q", got)
	}
}

func TestMountRoutes_RequestIDGeneratedAndPropagated(t *testing.T) {
	var seen string
	srv := newRoutedServer(t, func(r chi.Router) {
		r.Get("/id", func(w http.ResponseWriter, r *http.Request) {
			seen = types.GetRequestID(r.Context())
		})
	})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/v1/id", nil))
	generated := rec.Header().Get("X-Request-Id")
	if len(generated) != 32 || seen != generated {
		t.Errorf("generated id %q, handler saw %q", generated, seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/id", nil)
	req.Header.Set("X-Request-Id", "req-abc")
	rec = serve(srv, req)
	if rec.Header().Get("X-Request-Id") != "req-abc" || seen != "req-abc" {
		t.Errorf("expected propagated id, header=%q seen=%q", rec.Header().Get("X-Request-Id"), seen)
	}
}

func TestMountRoutes_ScopedLogger(t *testing.T) {
	var scoped *slog.Logger
	srv := newRoutedServer(t, func(r chi.Router) {
		r.Get("/log", func(w http.ResponseWriter, r *http.Request) {
			scoped = types.LoggerFrom(r.Context(), nil)
		})
	})

	serve(srv, httptest.NewRequest(http.MethodGet, "/v1/log", nil))
	if scoped == nil {
		t.Fatal("expected a request-scoped logger in the context")
	}
	if scoped == srv.Logger {
		t.Error("scoped logger should be derived from the server logger, not the same instance")
	}
}

func TestMountRoutes_RecovererCatchesPanics(t *testing.T) {
	srv := newRoutedServer(t, func(r chi.Router) {
		r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})
	})
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/v1/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if got := decodeError(t, rec).Code; got != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("code = %q", got)
	}
}

func TestMountRoutes_CORSHeaders(t *testing.T) {
	srv := newRoutedServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := serve(srv, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("allow-origin = %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestMountRoutes_ContextDeadline(t *testing.T) {
	var deadline time.Time
	srv := newRoutedServer(t, func(r chi.Router) {
		r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
			deadline, _ = r.Context().Deadline()
		})
	})
	serve(srv, httptest.NewRequest(http.MethodGet, "/v1/slow", nil))
	if deadline.IsZero() {
		t.Fatal("expected a request deadline")
	}
	if remaining := time.Until(deadline); remaining > 5*time.Second {
		t.Errorf("deadline too far: %v", remaining)
	}
}

func TestContextTimeoutMiddleware_Cancellation(t *testing.T) {
	var ctxErr error
	h := ContextTimeoutMiddleware(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		ctxErr = r.Context().Err()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if ctxErr != context.DeadlineExceeded {
		t.Errorf("ctx err = %v, want DeadlineExceeded", ctxErr)
	}
}
