package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"regionwatch/internal/core"
	"regionwatch/internal/series"
	"regionwatch/internal/timeline"
	"regionwatch/internal/types"
)

// TimelineStore is the timeline part of regions.Store.
type TimelineStore interface {
	Timeline() types.TimelineState
	SetMode(mode types.TimelineMode) error
	SetInstant(hour int) error
	SetRange(start, end int) error
}

// Player drives automatic playback. timeline.Playback satisfies it.
type Player interface {
	Start(ctx context.Context) error
	Stop()
	Reset()
	Playing() bool
}

// WindowSource returns the current request window.
type WindowSource interface {
	Window() series.Window
}

// SetModeRequest is the body of PUT /v1/timeline/mode.
type SetModeRequest struct {
	Mode types.TimelineMode `json:"mode" validate:"required,timeline_mode"`
}

// SetInstantRequest is the body of PUT /v1/timeline/instant.
type SetInstantRequest struct {
	Instant *int `json:"instant" validate:"required,gte=0,lte=720"`
}

// SetRangeRequest is the body of PUT /v1/timeline/range.
type SetRangeRequest struct {
	Start *int `json:"start" validate:"required,gte=0,lte=720"`
	End   *int `json:"end" validate:"required,gte=0,lte=720"`
}

// TimelineResponse is the timeline state with its wall-clock rendering.
type TimelineResponse struct {
	State       types.TimelineState `json:"state"`
	Window      series.Window       `json:"window"`
	Description string              `json:"description"`
	Labels      []timeline.Tick     `json:"labels"`
}

// TimelineHandler serves the scrubbable timeline and playback controls.
type TimelineHandler struct {
	store     TimelineStore
	player    Player
	windows   WindowSource
	validator *core.Validator
	logger    *slog.Logger
}

// NewTimelineHandler creates a TimelineHandler.
func NewTimelineHandler(store TimelineStore, player Player, windows WindowSource, v *core.Validator, l *slog.Logger) *TimelineHandler {
	if l == nil {
		l = slog.Default()
	}
	return &TimelineHandler{
		store:     store,
		player:    player,
		windows:   windows,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts timeline routes on r.
func (h *TimelineHandler) RegisterRoutes(r chi.Router) {
	r.Route("/timeline", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/mode", h.SetMode)
		r.Put("/instant", h.SetInstant)
		r.Put("/range", h.SetRange)
		r.Post("/play", h.Play)
		r.Post("/pause", h.Pause)
		r.Post("/reset", h.Reset)
	})
}

func (h *TimelineHandler) respond(w http.ResponseWriter, r *http.Request, status int) {
	win := h.windows.Window()
	tl := h.store.Timeline()
	core.Success(w, r, status, TimelineResponse{
		State:       tl,
		Window:      win,
		Description: timeline.Describe(win, tl),
		Labels:      timeline.Labels(win),
	})
}

// Get handles GET /v1/timeline.
func (h *TimelineHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)
}

// SetMode handles PUT /v1/timeline/mode.
func (h *TimelineHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req SetModeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.store.SetMode(req.Mode); err != nil {
		core.Error(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK)
}

// SetInstant handles PUT /v1/timeline/instant.
func (h *TimelineHandler) SetInstant(w http.ResponseWriter, r *http.Request) {
	var req SetInstantRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.store.SetInstant(*req.Instant); err != nil {
		core.Error(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK)
}

// SetRange handles PUT /v1/timeline/range.
func (h *TimelineHandler) SetRange(w http.ResponseWriter, r *http.Request) {
	var req SetRangeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.store.SetRange(*req.Start, *req.End); err != nil {
		core.Error(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK)
}

// Play handles POST /v1/timeline/play. Playback outlives the request.
func (h *TimelineHandler) Play(w http.ResponseWriter, r *http.Request) {
	if err := h.player.Start(r.Context()); err != nil {
		core.Error(w, r, err)
		return
	}
	types.LoggerFrom(r.Context(), h.logger).InfoContext(r.Context(), "playback started", "instant", h.store.Timeline().Instant)
	h.respond(w, r, http.StatusAccepted)
}

// Pause handles POST /v1/timeline/pause. Pausing when not playing is a no-op.
func (h *TimelineHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.player.Stop()
	h.respond(w, r, http.StatusOK)
}

// Reset handles POST /v1/timeline/reset.
func (h *TimelineHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.player.Reset()
	h.respond(w, r, http.StatusOK)
}

func (h *TimelineHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := core.DecodeJSON(w, r, dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	if err := h.validator.ValidateStruct(dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	return true
}
