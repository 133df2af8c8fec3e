package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/twpayne/go-geom/encoding/geojson"

	"regionwatch/internal/core"
	"regionwatch/internal/overlay"
)

// OverlayExporter exports the drawn overlays. overlay.MemorySurface
// satisfies it.
type OverlayExporter interface {
	FeatureCollection() *geojson.FeatureCollection
}

// ReconcileReporter reports the latest reconciliation pass.
type ReconcileReporter interface {
	LastResult() overlay.Result
}

// OverlayHandler serves the rendered region overlays to map clients.
type OverlayHandler struct {
	exporter OverlayExporter
	reporter ReconcileReporter
}

// NewOverlayHandler creates an OverlayHandler.
func NewOverlayHandler(exporter OverlayExporter, reporter ReconcileReporter) *OverlayHandler {
	return &OverlayHandler{exporter: exporter, reporter: reporter}
}

// RegisterRoutes mounts overlay routes on r.
func (h *OverlayHandler) RegisterRoutes(r chi.Router) {
	r.Route("/overlays", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Get("/status", h.Status)
	})
}

// Get handles GET /v1/overlays. The body is a bare GeoJSON
// FeatureCollection so it can be handed to a map source unchanged.
func (h *OverlayHandler) Get(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, h.exporter.FeatureCollection())
}

// Status handles GET /v1/overlays/status.
func (h *OverlayHandler) Status(w http.ResponseWriter, r *http.Request) {
	core.Success(w, r, http.StatusOK, h.reporter.LastResult())
}
