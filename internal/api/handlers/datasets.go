package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"regionwatch/internal/core"
	"regionwatch/internal/types"
)

// DatasetInfo describes one supported dataset.
type DatasetInfo struct {
	Kind          types.DatasetKind `json:"kind"`
	Label         string            `json:"label"`
	Unit          string            `json:"unit"`
	ProviderField string            `json:"provider_field"`
}

// RegisterDatasetRoutes mounts GET /v1/datasets.
func RegisterDatasetRoutes(r chi.Router) {
	r.Get("/datasets", ListDatasets)
}

// ListDatasets handles GET /v1/datasets.
func ListDatasets(w http.ResponseWriter, r *http.Request) {
	items := make([]DatasetInfo, 0, len(types.DatasetKinds))
	for _, k := range types.DatasetKinds {
		items = append(items, DatasetInfo{
			Kind:          k,
			Label:         k.Label(),
			Unit:          k.Unit(),
			ProviderField: k.ProviderField(),
		})
	}
	core.JSON(w, r, http.StatusOK, types.NewListResponse(items, 0))
}
