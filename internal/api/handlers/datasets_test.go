package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regionwatch/internal/types"
)

func TestListDatasets(t *testing.T) {
	router := newRouter(RegisterDatasetRoutes)

	rec := do(t, router, http.MethodGet, "/datasets", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	items := decodeData[[]DatasetInfo](t, rec)
	require.Len(t, items, len(types.DatasetKinds))
	assert.Equal(t, DatasetInfo{
		Kind:          types.DatasetTemperature,
		Label:         "Temperature",
		Unit:          "°C",
		ProviderField: "temperature_2m",
	}, items[0])
	assert.Equal(t, "precipitation", items[3].ProviderField)
}
