package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"regionwatch/internal/core"
	"regionwatch/internal/types"
)

// ViewportStore is the viewport part of regions.Store.
type ViewportStore interface {
	Viewport() types.Viewport
	SetViewport(v types.Viewport) error
}

// SetViewportRequest is the body of PUT /v1/viewport.
type SetViewportRequest struct {
	Center *types.GeoPoint `json:"center" validate:"required"`
	Zoom   *float64        `json:"zoom" validate:"required,gte=0,lte=22"`
}

// ViewportHandler serves the persisted map camera.
type ViewportHandler struct {
	store     ViewportStore
	validator *core.Validator
	logger    *slog.Logger
}

// NewViewportHandler creates a ViewportHandler.
func NewViewportHandler(store ViewportStore, v *core.Validator, l *slog.Logger) *ViewportHandler {
	if l == nil {
		l = slog.Default()
	}
	return &ViewportHandler{store: store, validator: v, logger: l}
}

// RegisterRoutes mounts viewport routes on r.
func (h *ViewportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/viewport", h.Get)
	r.Put("/viewport", h.Put)
}

// Get handles GET /v1/viewport.
func (h *ViewportHandler) Get(w http.ResponseWriter, r *http.Request) {
	core.Success(w, r, http.StatusOK, h.store.Viewport())
}

// Put handles PUT /v1/viewport.
func (h *ViewportHandler) Put(w http.ResponseWriter, r *http.Request) {
	var req SetViewportRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	v := types.Viewport{Center: *req.Center, Zoom: *req.Zoom}
	if err := h.store.SetViewport(v); err != nil {
		core.Error(w, r, err)
		return
	}
	core.Success(w, r, http.StatusOK, h.store.Viewport())
}
