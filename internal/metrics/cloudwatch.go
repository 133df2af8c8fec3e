package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// CloudWatchClient abstracts PutMetricData for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// requestPublishTimeout bounds the PutMetricData call made for HTTP requests,
// which have no caller context of their own.
const requestPublishTimeout = 2 * time.Second

var _ Recorder = (*CloudWatchRecorder)(nil)

// CloudWatchRecorder publishes metrics with PutMetricData.
//
// Metrics emitted:
//   - SeriesCacheLookup: Dims {Result: hit|miss}
//   - SeriesFetch / SeriesFetchLatency: Dims {Dataset, Result}
//   - SyncCycleResolved / SyncCycleFailed / SyncCycleDuration: no dims
//   - APIRequestCount / APILatency: Dims {Method, Path, StatusClass}
type CloudWatchRecorder struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchRecorder creates a recorder publishing under namespace.
func NewCloudWatchRecorder(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchRecorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchRecorder{client: client, namespace: namespace, logger: logger}
}

func (m *CloudWatchRecorder) put(ctx context.Context, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.WarnContext(ctx, "failed to publish metric",
			"error", err.Error(),
			"metric", aws.ToString(data[0].MetricName),
		)
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// RecordCacheLookup counts series cache hits and misses.
func (m *CloudWatchRecorder) RecordCacheLookup(ctx context.Context, hit bool) {
	result := resultMiss
	if hit {
		result = resultHit
	}
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(MetricCacheLookup),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{dim(dimResult, result)},
	})
}

// RecordFetch records one provider fetch and its latency.
func (m *CloudWatchRecorder) RecordFetch(ctx context.Context, dataset string, result string, duration time.Duration) {
	dims := []cwtypes.Dimension{dim(dimDataset, dataset), dim(dimResult, result)}
	m.put(ctx,
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricFetch),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricFetchLatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
	)
}

// RecordCycle records the outcome of one sync cycle.
func (m *CloudWatchRecorder) RecordCycle(ctx context.Context, resolved, failed int, duration time.Duration) {
	m.put(ctx,
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricCycleResolved),
			Value:      aws.Float64(float64(resolved)),
			Unit:       cwtypes.StandardUnitCount,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricCycleFailed),
			Value:      aws.Float64(float64(failed)),
			Unit:       cwtypes.StandardUnitCount,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricCycleDuration),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
		},
	)
}

// RecordRequest records HTTP request count and latency. Status is bucketed
// into its class (2xx, 4xx, ...) to keep dimension cardinality low.
func (m *CloudWatchRecorder) RecordRequest(method, path string, status int, duration time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), requestPublishTimeout)
	defer cancel()

	dims := []cwtypes.Dimension{
		dim(dimMethod, method),
		dim(dimPath, path),
		dim(dimStatusClass, fmt.Sprintf("%dxx", status/100)),
	}
	m.put(ctx,
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricAPIRequest),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
	)
}
