// Package metrics records resolver, sync and HTTP telemetry.
//
// Recording never fails from the caller's point of view: implementations log
// their own errors and return nothing.
package metrics

import (
	"context"
	"time"
)

// Metric names.
const (
	MetricCacheLookup   = "SeriesCacheLookup"
	MetricFetch         = "SeriesFetch"
	MetricFetchLatency  = "SeriesFetchLatency"
	MetricCycleResolved = "SyncCycleResolved"
	MetricCycleFailed   = "SyncCycleFailed"
	MetricCycleDuration = "SyncCycleDuration"
	MetricAPIRequest    = "APIRequestCount"
	MetricAPILatency    = "APILatency"
	DefaultNamespace    = "RegionWatch"
	dimResult           = "Result"
	dimDataset          = "Dataset"
	dimMethod           = "Method"
	dimPath             = "Path"
	dimStatusClass      = "StatusClass"
	resultHit           = "hit"
	resultMiss          = "miss"
)

// Fetch outcomes.
const (
	FetchSuccess = "success"
	FetchFailure = "failure"
)

// Recorder is the telemetry sink used across the service.
type Recorder interface {
	RecordCacheLookup(ctx context.Context, hit bool)
	RecordFetch(ctx context.Context, dataset string, result string, duration time.Duration)
	RecordCycle(ctx context.Context, resolved, failed int, duration time.Duration)
	RecordRequest(method, path string, status int, duration time.Duration)
}

// Noop discards everything.
type Noop struct{}

var _ Recorder = Noop{}

func (Noop) RecordCacheLookup(context.Context, bool)                    {}
func (Noop) RecordFetch(context.Context, string, string, time.Duration) {}
func (Noop) RecordCycle(context.Context, int, int, time.Duration)       {}
func (Noop) RecordRequest(string, string, int, time.Duration)           {}

// OrNoop returns r, or Noop when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return Noop{}
	}
	return r
}
