// Package handlers contains the HTTP handlers of the regionwatch API. Each
// handler depends on small local interfaces and exposes RegisterRoutes for
// mounting under /v1.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"regionwatch/internal/core"
	"regionwatch/internal/regions"
	"regionwatch/internal/types"
)

// RegionStore is the part of regions.Store used by RegionHandler.
type RegionStore interface {
	Snapshot() regions.Snapshot
	Region(id string) (types.Region, error)
	AddRegion(in regions.NewRegion) (types.Region, error)
	UpdateRegion(id string, patch regions.RegionPatch) (types.Region, error)
	SetRules(id string, rules []types.ColorRule) (types.Region, error)
	DeleteRegion(id string) error
}

// --- Request/Response Models ---

// ColorRuleInput is a color rule as accepted from clients. Rule IDs are
// optional and assigned by the store when absent.
type ColorRuleInput struct {
	ID        string              `json:"id,omitempty" validate:"omitempty,max=64"`
	Operator  types.ColorOperator `json:"operator" validate:"required,color_operator"`
	Threshold *float64            `json:"threshold" validate:"required"`
	Color     string              `json:"color" validate:"required,hex_color"`
}

// CreateRegionRequest is the request body for POST /v1/regions. Name,
// dataset and rules fall back to defaults when omitted.
type CreateRegionRequest struct {
	Name       string            `json:"name,omitempty" validate:"omitempty,max=100"`
	Points     []types.GeoPoint  `json:"points" validate:"required,min=3,max=12,dive"`
	Dataset    types.DatasetKind `json:"dataset,omitempty" validate:"omitempty,dataset_kind"`
	ColorRules []ColorRuleInput  `json:"color_rules,omitempty" validate:"omitempty,max=20,dive"`
}

// UpdateRegionRequest is the request body for PATCH /v1/regions/{id}.
// Omitted fields are left unchanged.
type UpdateRegionRequest struct {
	Name       *string            `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Points     []types.GeoPoint   `json:"points,omitempty" validate:"omitempty,min=3,max=12,dive"`
	Dataset    *types.DatasetKind `json:"dataset,omitempty" validate:"omitempty,dataset_kind"`
	ColorRules *[]ColorRuleInput  `json:"color_rules,omitempty" validate:"omitempty,max=20,dive"`
}

// SetRulesRequest is the request body for PUT /v1/regions/{id}/rules. An
// empty list is allowed and leaves the region uncolored.
type SetRulesRequest struct {
	ColorRules []ColorRuleInput `json:"color_rules" validate:"max=20,dive"`
}

// RegionResponse is a region plus its dataset display metadata.
type RegionResponse struct {
	types.Region
	DatasetLabel string `json:"dataset_label"`
	Unit         string `json:"unit"`
}

func newRegionResponse(r types.Region) RegionResponse {
	return RegionResponse{
		Region:       r,
		DatasetLabel: r.Dataset.Label(),
		Unit:         r.Unit(),
	}
}

func toColorRules(in []ColorRuleInput) []types.ColorRule {
	out := make([]types.ColorRule, 0, len(in))
	for _, r := range in {
		rule := types.ColorRule{ID: r.ID, Operator: r.Operator, Color: r.Color}
		if r.Threshold != nil {
			rule.Threshold = *r.Threshold
		}
		out = append(out, rule)
	}
	return out
}

// --- Handler ---

// RegionHandler serves region CRUD and rule edits.
type RegionHandler struct {
	store     RegionStore
	validator *core.Validator
	logger    *slog.Logger
}

// NewRegionHandler creates a RegionHandler.
func NewRegionHandler(store RegionStore, v *core.Validator, l *slog.Logger) *RegionHandler {
	if l == nil {
		l = slog.Default()
	}
	return &RegionHandler{store: store, validator: v, logger: l}
}

// RegisterRoutes mounts region routes on r.
func (h *RegionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/regions", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
			r.Put("/rules", h.SetRules)
		})
	})
}

// List handles GET /v1/regions. Regions are returned in drawing order.
func (h *RegionHandler) List(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	items := make([]RegionResponse, 0, len(snap.Regions))
	for _, region := range snap.Regions {
		items = append(items, newRegionResponse(region))
	}
	core.JSON(w, r, http.StatusOK, types.NewListResponse(items, snap.Version))
}

// Create handles POST /v1/regions.
func (h *RegionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRegionRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	in := regions.NewRegion{
		Name:    req.Name,
		Points:  req.Points,
		Dataset: req.Dataset,
	}
	if req.ColorRules != nil {
		in.Rules = toColorRules(req.ColorRules)
	}

	region, err := h.store.AddRegion(in)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	types.LoggerFrom(r.Context(), h.logger).DebugContext(r.Context(), "region created via API",
		"region_id", region.ID,
	)
	core.Success(w, r, http.StatusCreated, newRegionResponse(region))
}

// Get handles GET /v1/regions/{id}.
func (h *RegionHandler) Get(w http.ResponseWriter, r *http.Request) {
	region, err := h.store.Region(chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Success(w, r, http.StatusOK, newRegionResponse(region))
}

// Update handles PATCH /v1/regions/{id}.
func (h *RegionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateRegionRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	patch := regions.RegionPatch{
		Name:    req.Name,
		Points:  req.Points,
		Dataset: req.Dataset,
	}
	if req.ColorRules != nil {
		rules := toColorRules(*req.ColorRules)
		patch.Rules = &rules
	}

	region, err := h.store.UpdateRegion(id, patch)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Success(w, r, http.StatusOK, newRegionResponse(region))
}

// SetRules handles PUT /v1/regions/{id}/rules.
func (h *RegionHandler) SetRules(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SetRulesRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	region, err := h.store.SetRules(id, toColorRules(req.ColorRules))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Success(w, r, http.StatusOK, newRegionResponse(region))
}

// Delete handles DELETE /v1/regions/{id}.
func (h *RegionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteRegion(id); err != nil {
		core.Error(w, r, err)
		return
	}
	core.NoContent(w)
}
