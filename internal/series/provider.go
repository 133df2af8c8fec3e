package series

import (
	"context"

	"regionwatch/internal/types"
)

// Request describes one provider call: a rounded location, the datasets
// wanted, and the calendar window.
type Request struct {
	Location types.GeoPoint
	Kinds    []types.DatasetKind
	Window   Window
}

// Provider fetches hourly series. Implementations return upstream AppErrors
// (timeout, network, provider status) and omit any requested dataset the
// response did not carry.
type Provider interface {
	FetchHourly(ctx context.Context, req Request) (*types.TimeSeries, error)
}
