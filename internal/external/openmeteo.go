package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"regionwatch/internal/series"
	"regionwatch/internal/types"
)

// openMeteoAPIBase is the default forecast endpoint. Overridable for tests
// and self-hosted instances via OpenMeteoConfig.BaseURL.
const openMeteoAPIBase = "https://api.open-meteo.com/v1/forecast"

// maxResponseBytes caps the decoded body; a 31-day, 4-field hourly response
// is well under 1 MiB.
const maxResponseBytes = 8 << 20

// OpenMeteoConfig holds the settings for an OpenMeteoClient.
type OpenMeteoConfig struct {
	BaseURL   string
	Timezone  string
	UserAgent string
	Retry     RetryPolicy
	Logger    *slog.Logger
}

// openMeteoHourly is the typed "hourly" block. A field absent from the
// response decodes to nil and is reported as an unavailable dataset.
type openMeteoHourly struct {
	Time          []string   `json:"time"`
	Temperature2m []*float64 `json:"temperature_2m"`
	WindSpeed10m  []*float64 `json:"wind_speed_10m"`
	CloudCover    []*float64 `json:"cloud_cover"`
	Precipitation []*float64 `json:"precipitation"`
}

func (h *openMeteoHourly) series(kind types.DatasetKind) []*float64 {
	switch kind {
	case types.DatasetTemperature:
		return h.Temperature2m
	case types.DatasetWind:
		return h.WindSpeed10m
	case types.DatasetCloud:
		return h.CloudCover
	case types.DatasetPrecipitation:
		return h.Precipitation
	}
	return nil
}

type openMeteoResponse struct {
	Latitude  float64          `json:"latitude"`
	Longitude float64          `json:"longitude"`
	Hourly    *openMeteoHourly `json:"hourly"`
}

type openMeteoErrorBody struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// OpenMeteoClient implements series.Provider against the Open-Meteo forecast
// API through BaseClient.
type OpenMeteoClient struct {
	base     *BaseClient
	baseURL  string
	timezone string
	logger   *slog.Logger
}

var _ series.Provider = (*OpenMeteoClient)(nil)

// NewOpenMeteoClient creates a client. The httpClient timeout should not be
// shorter than the resolver timeout, which bounds each call via context.
func NewOpenMeteoClient(httpClient *http.Client, cfg OpenMeteoConfig, opts ...BaseClientOption) *OpenMeteoClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openMeteoAPIBase
	}
	tz := cfg.Timezone
	if tz == "" {
		tz = "auto"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retry := cfg.Retry
	if retry == (RetryPolicy{}) {
		retry = DefaultRetryPolicy()
	}

	return &OpenMeteoClient{
		base:     NewBaseClient(httpClient, "open-meteo", retry, cfg.UserAgent, opts...),
		baseURL:  baseURL,
		timezone: tz,
		logger:   logger,
	}
}

// Base exposes the underlying BaseClient for health checks.
func (c *OpenMeteoClient) Base() *BaseClient {
	return c.base
}

func (c *OpenMeteoClient) buildURL(req series.Request) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(req.Location.Lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(req.Location.Lon, 'f', -1, 64))
	q.Set("hourly", series.FieldList(req.Kinds))
	q.Set("start_date", req.Window.StartDate())
	q.Set("end_date", req.Window.EndDate())
	q.Set("timezone", c.timezone)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchHourly requests the hourly series for req. Datasets whose arrays are
// missing or not aligned with the time array are left out of the result.
func (c *OpenMeteoClient) FetchHourly(ctx context.Context, req series.Request) (*types.TimeSeries, error) {
	endpoint, err := c.buildURL(req)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "invalid provider URL", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build provider request", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.base.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamTimeout, "request timed out", err)
		}
		return nil, types.NewAppError(types.ErrCodeUpstreamNetwork, "failed to read provider response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		appErr := ProviderStatusError(resp.StatusCode, nil)
		var eb openMeteoErrorBody
		if json.Unmarshal(body, &eb) == nil && eb.Reason != "" {
			appErr = appErr.WithDetails(map[string]any{"reason": eb.Reason})
		}
		return nil, appErr
	}

	var parsed openMeteoResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamProvider, "malformed provider response", err)
	}
	if parsed.Hourly == nil || len(parsed.Hourly.Time) == 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeUpstreamDatasetUnavailable,
			"provider response has no hourly time axis", nil,
			map[string]any{"fields": series.FieldList(req.Kinds)})
	}

	ts := &types.TimeSeries{
		Latitude:  parsed.Latitude,
		Longitude: parsed.Longitude,
		Times:     parsed.Hourly.Time,
		Values:    make(map[types.DatasetKind][]*float64, len(req.Kinds)),
	}
	for _, kind := range req.Kinds {
		samples := parsed.Hourly.series(kind)
		if samples == nil {
			continue
		}
		if len(samples) != len(parsed.Hourly.Time) {
			c.logger.WarnContext(ctx, "dropping misaligned provider series",
				"dataset", string(kind),
				"samples", len(samples),
				"times", len(parsed.Hourly.Time),
			)
			continue
		}
		ts.Values[kind] = samples
	}

	c.logger.DebugContext(ctx, "provider fetch complete",
		"fields", series.FieldList(req.Kinds),
		"window", req.Window.String(),
		"hours", len(ts.Times),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return ts, nil
}

// String identifies the client in logs.
func (c *OpenMeteoClient) String() string {
	return fmt.Sprintf("open-meteo(%s)", c.baseURL)
}
