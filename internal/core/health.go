package core

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// healthCheckTimeout bounds all probes together.
const healthCheckTimeout = 2 * time.Second

// Component states reported by /health.
const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// HealthProbe is a health check for one dependency (database, cache,
// provider circuit).
type HealthProbe interface {
	Name() string

	// Check must respect the context deadline.
	Check(ctx context.Context) error
}

// HealthDetailer is implemented by probes that describe the dependency they
// check, such as the cache backend or the provider breaker state. The
// detail is reported whether or not the check passes.
type HealthDetailer interface {
	Detail() string
}

// ProbeFunc adapts functions to HealthProbe and HealthDetailer.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) error
	DetailFn  func() string
}

// Name implements HealthProbe.
func (p ProbeFunc) Name() string { return p.ProbeName }

// Check implements HealthProbe.
func (p ProbeFunc) Check(ctx context.Context) error { return p.Fn(ctx) }

// Detail implements HealthDetailer.
func (p ProbeFunc) Detail() string {
	if p.DetailFn == nil {
		return ""
	}
	return p.DetailFn()
}

// NewProbe returns a HealthProbe named name that runs fn.
func NewProbe(name string, fn func(ctx context.Context) error) HealthProbe {
	return ProbeFunc{ProbeName: name, Fn: fn}
}

// NewDetailedProbe is NewProbe with a detail reported alongside the result.
func NewDetailedProbe(name string, fn func(ctx context.Context) error, detail func() string) HealthProbe {
	return ProbeFunc{ProbeName: name, Fn: fn, DetailFn: detail}
}

type componentStatus struct {
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status      string                     `json:"status"`
	Service     string                     `json:"service,omitempty"`
	Version     string                     `json:"version,omitempty"`
	Environment string                     `json:"environment,omitempty"`
	Components  map[string]componentStatus `json:"components,omitempty"`
}

type probeResult struct {
	index int
	err   error
}

// HandleHealth runs all probes concurrently under healthCheckTimeout.
// It returns 200 when every probe passes and 503 when any fails or times out.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: statusHealthy}
	if s.Config != nil {
		resp.Service = s.Config.Service
		resp.Version = s.Config.Build.Version
		resp.Environment = s.Config.Environment
	}

	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, resp)
		return
	}

	results := make(chan probeResult, len(probes))
	for i, p := range probes {
		go func() {
			results <- probeResult{index: i, err: checkProbe(ctx, p)}
		}()
	}

	// Every component starts as timed out and is overwritten as results
	// arrive.
	resp.Components = make(map[string]componentStatus, len(probes))
	for _, p := range probes {
		resp.Components[p.Name()] = componentStatus{
			Status:  statusUnhealthy,
			Detail:  probeDetail(p),
			Message: "health check timed out",
		}
	}

	for pending := len(probes); pending > 0; pending-- {
		var res probeResult
		select {
		case res = <-results:
		case <-ctx.Done():
			pending = 0
			continue
		}
		p := probes[res.index]
		c := componentStatus{Status: statusHealthy, Detail: probeDetail(p)}
		if res.err != nil {
			c.Status = statusUnhealthy
			c.Message = res.err.Error()
		}
		resp.Components[p.Name()] = c
	}

	status := http.StatusOK
	for _, c := range resp.Components {
		if c.Status != statusHealthy {
			resp.Status = statusUnhealthy
			status = http.StatusServiceUnavailable
			break
		}
	}
	JSON(w, r, status, resp)
}

// checkProbe runs p and turns a panic into an error.
func checkProbe(ctx context.Context, p HealthProbe) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("health check panicked: %v", rec)
		}
	}()
	return p.Check(ctx)
}

func probeDetail(p HealthProbe) string {
	if d, ok := p.(HealthDetailer); ok {
		return d.Detail()
	}
	return ""
}
