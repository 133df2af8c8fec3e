package series

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"regionwatch/internal/types"
)

// Cached series are stored outside the process (redis values, snapshot rows)
// as zstd-compressed JSON.

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder

	decoderPool = sync.Pool{
		New: func() any {
			d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
			if err != nil {
				// Cannot fail with nil input and default options.
				panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
			}
			return d
		},
	}
)

func zstdEncoder() *zstd.Encoder {
	encoderOnce.Do(func() {
		e, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd encoder: %v", err))
		}
		encoder = e
	})
	return encoder
}

// EncodeSeries serializes ts for external storage.
func EncodeSeries(ts *types.TimeSeries) ([]byte, error) {
	raw, err := json.Marshal(ts)
	if err != nil {
		return nil, fmt.Errorf("encode series: %w", err)
	}
	return zstdEncoder().EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

// DecodeSeries reverses EncodeSeries.
func DecodeSeries(data []byte) (*types.TimeSeries, error) {
	d := decoderPool.Get().(*zstd.Decoder)
	defer decoderPool.Put(d)

	raw, err := d.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	var ts types.TimeSeries
	if err := json.Unmarshal(raw, &ts); err != nil {
		return nil, fmt.Errorf("decode series: %w", err)
	}
	return &ts, nil
}
