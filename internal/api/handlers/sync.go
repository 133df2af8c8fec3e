package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"regionwatch/internal/core"
	"regionwatch/internal/orchestrator"
	"regionwatch/internal/regions"
	"regionwatch/internal/types"
)

// Syncer is the part of orchestrator.Orchestrator used by SyncHandler.
type Syncer interface {
	State() orchestrator.State
	LastReport() *orchestrator.CycleReport
	RunCycle(ctx context.Context) orchestrator.CycleReport
}

// StatusSource exposes the store's transient loading/error status.
type StatusSource interface {
	Status() regions.Status
}

// SyncStatusResponse is the body of GET /v1/sync/status.
type SyncStatusResponse struct {
	State      orchestrator.State        `json:"state"`
	Loading    bool                      `json:"loading"`
	Error      string                    `json:"error,omitempty"`
	LastReport *orchestrator.CycleReport `json:"last_report,omitempty"`
}

// SyncHandler reports and drives resolution cycles.
type SyncHandler struct {
	syncer Syncer
	status StatusSource
	logger *slog.Logger
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(syncer Syncer, status StatusSource, l *slog.Logger) *SyncHandler {
	if l == nil {
		l = slog.Default()
	}
	return &SyncHandler{syncer: syncer, status: status, logger: l}
}

// RegisterRoutes mounts sync routes on r.
func (h *SyncHandler) RegisterRoutes(r chi.Router) {
	r.Route("/sync", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.Post("/refresh", h.Refresh)
	})
}

// Status handles GET /v1/sync/status.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	st := h.status.Status()
	core.Success(w, r, http.StatusOK, SyncStatusResponse{
		State:      h.syncer.State(),
		Loading:    st.Loading,
		Error:      st.Error,
		LastReport: h.syncer.LastReport(),
	})
}

// Refresh handles POST /v1/sync/refresh: it runs one cycle to completion
// and returns its report. Region failures are reported, not returned as
// an error status.
func (h *SyncHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	report := h.syncer.RunCycle(r.Context())
	types.LoggerFrom(r.Context(), h.logger).InfoContext(r.Context(), "manual sync finished",
		"resolved", report.Resolved,
		"failed", report.Failed,
	)
	core.Success(w, r, http.StatusOK, report)
}
