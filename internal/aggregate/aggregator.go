package aggregate

import (
	"fmt"
	"time"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/infrastructure"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"

	"go.uber.org/zap"
)

// Aggregator buckets raw ticks for one instrument into fixed-duration
// OHLCV candles. It keeps exactly one open bucket; a tick belonging to a
// later bucket closes the current one, even if the new tick is several
// buckets ahead (empty intermediate buckets are not synthesized).
type Aggregator struct {
	duration time.Duration
	period   string
	logger   *zap.Logger

	current    *model.Candle
	lastClosed time.Time // bucket start of the most recently closed bucket
}

func New(duration time.Duration, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		duration: duration,
		period:   model.PeriodLabel(duration),
		logger:   logger,
	}
}

// Ingest applies one tick. It returns the completed candle, if this tick
// closed a bucket. Ticks older than an already-closed bucket are dropped
// with a warning, never retried.
func (a *Aggregator) Ingest(tick model.Tick) (*model.Candle, bool) {
	bucket := tick.Timestamp.Truncate(a.duration)

	if a.isLate(bucket) {
		a.logger.Warn("dropping late tick",
			zap.Int64("instrument_token", tick.InstrumentToken),
			zap.Time("tick_ts", tick.Timestamp),
			zap.Time("open_bucket", a.openBucketStart()),
		)
		infrastructure.LateTicksDropped.WithLabelValues(instrumentLabel(tick.InstrumentToken)).Inc()
		return nil, false
	}

	var closed *model.Candle
	if a.current != nil && bucket.After(a.current.Timestamp) {
		closed = a.closeCurrent()
	}

	if a.current == nil {
		a.current = &model.Candle{
			InstrumentToken: tick.InstrumentToken,
			Period:          a.period,
			Open:            tick.LastPrice,
			High:            tick.LastPrice,
			Low:             tick.LastPrice,
			Close:           tick.LastPrice,
			Volume:          tick.Volume,
			Timestamp:       bucket,
		}
	} else {
		if tick.LastPrice.GreaterThan(a.current.High) {
			a.current.High = tick.LastPrice
		}
		if tick.LastPrice.LessThan(a.current.Low) {
			a.current.Low = tick.LastPrice
		}
		a.current.Close = tick.LastPrice
		a.current.Volume = a.current.Volume.Add(tick.Volume)
	}

	return closed, closed != nil
}

// Flush force-closes the open bucket, at end of a replay or session.
func (a *Aggregator) Flush() (*model.Candle, bool) {
	if a.current == nil {
		return nil, false
	}
	closed := a.closeCurrent()
	return closed, true
}

func (a *Aggregator) closeCurrent() *model.Candle {
	closed := a.current
	a.current = nil
	a.lastClosed = closed.Timestamp
	infrastructure.CandlesEmitted.WithLabelValues(
		instrumentLabel(closed.InstrumentToken), closed.Period).Inc()
	return closed
}

func (a *Aggregator) isLate(bucket time.Time) bool {
	if a.current != nil {
		return bucket.Before(a.current.Timestamp)
	}
	return !a.lastClosed.IsZero() && !bucket.After(a.lastClosed)
}

func (a *Aggregator) openBucketStart() time.Time {
	if a.current != nil {
		return a.current.Timestamp
	}
	return a.lastClosed
}

func instrumentLabel(token int64) string {
	return fmt.Sprintf("%d", token)
}
