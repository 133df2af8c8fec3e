package series

import (
	"fmt"

	"regionwatch/internal/types"
)

func datasetUnavailable(kind types.DatasetKind, reason string) error {
	return types.NewAppErrorWithDetails(
		types.ErrCodeUpstreamDatasetUnavailable,
		fmt.Sprintf("dataset %s unavailable: %s", kind, reason),
		nil,
		map[string]any{"dataset": string(kind)},
	)
}

// Extract reduces a series to the scalar shown for tl.
//
// Single-instant mode clamps the hour into the series and returns that sample
// rounded to 2 decimals; a missing sample is dataset_unavailable. Range mode
// clamps both ends, averages the inclusive slice with missing samples counted
// as zero, and returns 0 when the clamped range is empty.
func Extract(kind types.DatasetKind, samples []*float64, tl types.TimelineState) (float64, error) {
	if len(samples) == 0 {
		return 0, datasetUnavailable(kind, "empty series")
	}
	last := len(samples) - 1

	if tl.Mode == types.TimelineRange {
		start := max(tl.Range[0], 0)
		end := min(tl.Range[1], last)
		if start > end {
			return 0, nil
		}
		var sum float64
		for _, v := range samples[start : end+1] {
			if v != nil {
				sum += *v
			}
		}
		return round2(sum / float64(end-start+1)), nil
	}

	idx := min(max(tl.Instant, 0), last)
	v := samples[idx]
	if v == nil {
		return 0, datasetUnavailable(kind, fmt.Sprintf("no sample at hour %d", idx))
	}
	return round2(*v), nil
}
