package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type stubProbe struct {
	name   string
	err    error
	delay  time.Duration
	panics bool
	called atomic.Bool
}

func (p *stubProbe) Name() string { return p.name }

func (p *stubProbe) Check(ctx context.Context) error {
	p.called.Store(true)
	if p.panics {
		panic("nil client")
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.err
}

func runHealth(t *testing.T, probes ...HealthProbe) (int, healthResponse) {
	t.Helper()
	srv := newTestServer(t)
	srv.HealthProbes = probes

	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	return rec.Code, resp
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	db := &stubProbe{name: "database"}
	cache := &stubProbe{name: "cache"}

	code, resp := runHealth(t, db, cache)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	for _, name := range []string{"database", "cache"} {
		if resp.Components[name].Status != "healthy" {
			t.Errorf("component %s = %+v", name, resp.Components[name])
		}
	}
	if !db.called.Load() || !cache.called.Load() {
		t.Error("expected every probe to be called")
	}
}

func TestHandleHealth_OneUnhealthy(t *testing.T) {
	code, resp := runHealth(t,
		&stubProbe{name: "database"},
		&stubProbe{name: "provider", err: errors.New("circuit open")},
	)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", code)
	}
	if resp.Status != "unhealthy" {
		t.Errorf("status = %q, want unhealthy", resp.Status)
	}
	if got := resp.Components["provider"]; got.Status != "unhealthy" || got.Message != "circuit open" {
		t.Errorf("provider component = %+v", got)
	}
	if resp.Components["database"].Status != "healthy" {
		t.Errorf("database component = %+v", resp.Components["database"])
	}
}

func TestHandleHealth_Timeout(t *testing.T) {
	start := time.Now()
	code, resp := runHealth(t, &stubProbe{name: "cache", delay: 10 * time.Second})
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", code)
	}
	if resp.Components["cache"].Status != "unhealthy" {
		t.Errorf("cache component = %+v", resp.Components["cache"])
	}
	if elapsed := time.Since(start); elapsed > healthCheckTimeout+time.Second {
		t.Errorf("health check took %v", elapsed)
	}
}

func TestHandleHealth_NoProbes(t *testing.T) {
	code, resp := runHealth(t)
	if code != http.StatusOK || resp.Status != "healthy" {
		t.Fatalf("got %d %+v", code, resp)
	}
	if len(resp.Components) != 0 {
		t.Errorf("expected no components, got %v", resp.Components)
	}
}

func TestHandleHealth_ProbePanic(t *testing.T) {
	code, resp := runHealth(t,
		&stubProbe{name: "database"},
		&stubProbe{name: "cache", panics: true},
	)
	if code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", code)
	}
	if got := resp.Components["cache"]; got.Status != "unhealthy" || got.Message == "" {
		t.Errorf("cache component = %+v", got)
	}
	if resp.Components["database"].Status != "healthy" {
		t.Errorf("database component = %+v", resp.Components["database"])
	}
}

func TestNewProbe(t *testing.T) {
	wantErr := errors.New("ping failed")
	p := NewProbe("database", func(ctx context.Context) error { return wantErr })

	if p.Name() != "database" {
		t.Errorf("Name() = %q", p.Name())
	}
	if err := p.Check(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("Check() = %v, want %v", err, wantErr)
	}
}

func TestHandleHealth_ReportsDetailAndService(t *testing.T) {
	srv := newTestServer(t)
	srv.Config.Service = "regionwatch"
	srv.Config.Build.Version = "1.2.3"
	srv.HealthProbes = []HealthProbe{
		NewDetailedProbe("cache", func(context.Context) error { return nil }, func() string { return "redis" }),
		NewDetailedProbe("provider",
			func(context.Context) error { return errors.New("provider circuit breaker is open") },
			func() string { return "open" }),
		&stubProbe{name: "database"},
	}

	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Service != "regionwatch" || resp.Version != "1.2.3" || resp.Environment != "local" {
		t.Errorf("metadata = %q %q %q", resp.Service, resp.Version, resp.Environment)
	}
	if got := resp.Components["cache"]; got.Status != "healthy" || got.Detail != "redis" {
		t.Errorf("cache component = %+v", got)
	}
	if got := resp.Components["provider"]; got.Status != "unhealthy" || got.Detail != "open" {
		t.Errorf("provider component = %+v", got)
	}
	if got := resp.Components["database"]; got.Detail != "" {
		t.Errorf("database detail = %q, want empty", got.Detail)
	}
}

func TestProbeFunc_DetailWithoutFunc(t *testing.T) {
	p := NewProbe("cache", func(context.Context) error { return nil })
	if d := probeDetail(p); d != "" {
		t.Errorf("detail = %q, want empty", d)
	}
}
