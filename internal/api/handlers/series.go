package handlers

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"regionwatch/internal/core"
	"regionwatch/internal/series"
	"regionwatch/internal/types"
)

// SeriesFetcher is the part of series.Resolver used by SeriesHandler.
type SeriesFetcher interface {
	Fetch(ctx context.Context, loc types.GeoPoint, kinds ...types.DatasetKind) (*types.TimeSeries, series.Window, error)
	ClearCache(ctx context.Context) error
}

// SeriesResponse is the body of GET /v1/series.
type SeriesResponse struct {
	Window series.Window     `json:"window"`
	Series *types.TimeSeries `json:"series"`
}

// SeriesHandler exposes the cached hourly series.
type SeriesHandler struct {
	fetcher SeriesFetcher
	logger  *slog.Logger
}

// NewSeriesHandler creates a SeriesHandler.
func NewSeriesHandler(fetcher SeriesFetcher, l *slog.Logger) *SeriesHandler {
	if l == nil {
		l = slog.Default()
	}
	return &SeriesHandler{fetcher: fetcher, logger: l}
}

// RegisterRoutes mounts series routes on r.
func (h *SeriesHandler) RegisterRoutes(r chi.Router) {
	r.Route("/series", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/cache", h.ClearCache)
	})
}

// Get handles GET /v1/series?lat=..&lon=..&dataset=a,b. Every dataset when
// dataset is omitted.
func (h *SeriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := parseCoord(q.Get("lat"), types.MinLat, types.MaxLat)
	if err != nil {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidLat,
			"lat must be a number within [-90, 90]", nil, map[string]any{"lat": q.Get("lat")}))
		return
	}
	lon, err := parseCoord(q.Get("lon"), types.MinLon, types.MaxLon)
	if err != nil {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidLon,
			"lon must be a number within [-180, 180]", nil, map[string]any{"lon": q.Get("lon")}))
		return
	}

	kinds := types.DatasetKinds
	if raw := q.Get("dataset"); raw != "" {
		kinds = nil
		for _, part := range strings.Split(raw, ",") {
			kinds = append(kinds, types.DatasetKind(strings.TrimSpace(part)))
		}
	}

	ts, window, err := h.fetcher.Fetch(r.Context(), types.GeoPoint{Lat: lat, Lon: lon}, kinds...)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Success(w, r, http.StatusOK, SeriesResponse{Window: window, Series: ts})
}

// ClearCache handles DELETE /v1/series/cache.
func (h *SeriesHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.fetcher.ClearCache(r.Context()); err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeInternalCache, "failed to clear series cache", err))
		return
	}
	types.LoggerFrom(r.Context(), h.logger).InfoContext(r.Context(), "series cache cleared")
	core.NoContent(w)
}

func parseCoord(raw string, lo, hi float64) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v < lo || v > hi {
		return 0, strconv.ErrRange
	}
	return v, nil
}
