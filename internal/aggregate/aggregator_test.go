package aggregate

import (
	"testing"
	"time"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const token = int64(256265)

func tick(ts time.Time, price float64, volume float64) model.Tick {
	return model.Tick{
		InstrumentToken: token,
		LastPrice:       decimal.NewFromFloat(price),
		Volume:          decimal.NewFromFloat(volume),
		Timestamp:       ts,
	}
}

func TestAggregator_SingleBucket(t *testing.T) {
	agg := New(5*time.Minute, zap.NewNop())
	start := time.Date(2024, 1, 15, 9, 15, 0, 0, time.UTC)

	// All ticks inside one 5m bucket: no candle until Flush.
	_, ok := agg.Ingest(tick(start.Add(10*time.Second), 100, 1))
	assert.False(t, ok)
	_, ok = agg.Ingest(tick(start.Add(1*time.Minute), 104, 2))
	assert.False(t, ok)
	_, ok = agg.Ingest(tick(start.Add(2*time.Minute), 97, 1))
	assert.False(t, ok)
	_, ok = agg.Ingest(tick(start.Add(4*time.Minute), 101, 3))
	assert.False(t, ok)

	candle, ok := agg.Flush()
	assert.True(t, ok)
	assert.Equal(t, start, candle.Timestamp)
	assert.Equal(t, "5m", candle.Period)
	assert.True(t, candle.Open.Equal(decimal.NewFromInt(100)))
	assert.True(t, candle.High.Equal(decimal.NewFromInt(104)))
	assert.True(t, candle.Low.Equal(decimal.NewFromInt(97)))
	assert.True(t, candle.Close.Equal(decimal.NewFromInt(101)))
	assert.True(t, candle.Volume.Equal(decimal.NewFromInt(7)))
}

func TestAggregator_BucketRoll(t *testing.T) {
	agg := New(5*time.Minute, zap.NewNop())
	start := time.Date(2024, 1, 15, 9, 15, 0, 0, time.UTC)

	agg.Ingest(tick(start.Add(time.Minute), 100, 1))

	// First tick of the next bucket closes the previous one.
	candle, ok := agg.Ingest(tick(start.Add(5*time.Minute), 102, 1))
	assert.True(t, ok)
	assert.Equal(t, start, candle.Timestamp)
	assert.True(t, candle.Close.Equal(decimal.NewFromInt(100)))

	next, ok := agg.Flush()
	assert.True(t, ok)
	assert.Equal(t, start.Add(5*time.Minute), next.Timestamp)
	assert.True(t, next.Open.Equal(decimal.NewFromInt(102)))
}

func TestAggregator_GapSkipsBuckets(t *testing.T) {
	agg := New(5*time.Minute, zap.NewNop())
	start := time.Date(2024, 1, 15, 9, 15, 0, 0, time.UTC)

	agg.Ingest(tick(start, 100, 1))

	// A tick three buckets ahead closes the open bucket; the empty
	// buckets in between are never synthesized.
	candle, ok := agg.Ingest(tick(start.Add(15*time.Minute), 110, 1))
	assert.True(t, ok)
	assert.Equal(t, start, candle.Timestamp)

	next, ok := agg.Flush()
	assert.True(t, ok)
	assert.Equal(t, start.Add(15*time.Minute), next.Timestamp)
}

func TestAggregator_LateTickDropped(t *testing.T) {
	agg := New(5*time.Minute, zap.NewNop())
	start := time.Date(2024, 1, 15, 9, 15, 0, 0, time.UTC)

	agg.Ingest(tick(start, 100, 1))
	agg.Ingest(tick(start.Add(5*time.Minute), 102, 1)) // closes first bucket

	// A tick belonging to the closed bucket is dropped, not retried.
	_, ok := agg.Ingest(tick(start.Add(2*time.Minute), 999, 1))
	assert.False(t, ok)

	candle, ok := agg.Flush()
	assert.True(t, ok)
	assert.True(t, candle.High.Equal(decimal.NewFromInt(102)), "late tick must not touch the open bucket")
}
