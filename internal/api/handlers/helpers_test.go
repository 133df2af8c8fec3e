package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"regionwatch/internal/core"
	"regionwatch/internal/regions"
	"regionwatch/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testValidator() *core.Validator {
	return core.NewValidator(testLogger())
}

// newTestStore returns a store with sequential IDs id-1, id-2, ...
func newTestStore() *regions.Store {
	n := 0
	return regions.NewStore(
		regions.WithIDGenerator(func() string {
			n++
			return "id-" + strconv.Itoa(n)
		}),
		regions.WithLogger(testLogger()),
	)
}

func newRouter(register ...func(chi.Router)) chi.Router {
	r := chi.NewRouter()
	for _, fn := range register {
		fn(r)
	}
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Data
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env core.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error.Code
}

func kolkataTriangle() []types.GeoPoint {
	return []types.GeoPoint{
		{Lat: 22.50, Lon: 88.30},
		{Lat: 22.60, Lon: 88.40},
		{Lat: 22.50, Lon: 88.50},
	}
}

func decodeMeta(t *testing.T, rec *httptest.ResponseRecorder) types.ResponseMeta {
	t.Helper()
	var env struct {
		Meta types.ResponseMeta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Meta
}

func regionsNew(name string, kind types.DatasetKind) regions.NewRegion {
	return regions.NewRegion{Name: name, Points: kolkataTriangle(), Dataset: kind}
}
