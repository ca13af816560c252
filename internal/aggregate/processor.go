package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/infrastructure"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Processor consumes raw ticks off JetStream, buckets them with one
// Aggregator per instrument, and publishes completed candles back to
// "candles.<period>.<token>". Live mode only; replays bypass NATS and
// drive an Aggregator directly.
type Processor struct {
	js       nats.JetStreamContext
	logger   *zap.Logger
	duration time.Duration
	period   string

	mu          sync.Mutex
	aggregators map[int64]*Aggregator
}

func NewProcessor(js nats.JetStreamContext, duration time.Duration, logger *zap.Logger) *Processor {
	return &Processor{
		js:          js,
		logger:      logger,
		duration:    duration,
		period:      model.PeriodLabel(duration),
		aggregators: make(map[int64]*Aggregator),
	}
}

func (p *Processor) Run(ctx context.Context) error {
	_, err := p.js.Subscribe("ticks.raw.*", func(msg *nats.Msg) {
		var tick model.Tick
		if err := json.Unmarshal(msg.Data, &tick); err != nil {
			p.logger.Error("failed to unmarshal tick in processor", zap.Error(err))
			return
		}
		infrastructure.TickIngestRate.WithLabelValues(instrumentLabel(tick.InstrumentToken)).Inc()
		if candle, ok := p.processTick(tick); ok {
			p.publish(candle)
		}
		msg.Ack()
	}, nats.Durable("candle-processor"), nats.ManualAck())

	if err != nil {
		return err
	}

	go p.flushLoop(ctx)
	p.logger.Info("candle processor started", zap.String("period", p.period))
	return nil
}

func (p *Processor) processTick(tick model.Tick) (*model.Candle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	agg, ok := p.aggregators[tick.InstrumentToken]
	if !ok {
		agg = New(p.duration, p.logger)
		p.aggregators[tick.InstrumentToken] = agg
	}
	return agg.Ingest(tick)
}

// flushLoop closes buckets whose window has elapsed without a newer tick
// arriving to close them.
func (p *Processor) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(p.duration / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.flushStale()
		}
	}
}

func (p *Processor) flushStale() {
	cutoff := time.Now().Truncate(p.duration)

	p.mu.Lock()
	toPublish := make([]*model.Candle, 0)
	for _, agg := range p.aggregators {
		if agg.current != nil && agg.current.Timestamp.Before(cutoff) {
			if candle, ok := agg.Flush(); ok {
				toPublish = append(toPublish, candle)
			}
		}
	}
	p.mu.Unlock()

	for _, candle := range toPublish {
		p.publish(candle)
	}
}

func (p *Processor) publish(candle *model.Candle) {
	subject := fmt.Sprintf("candles.%s.%d", candle.Period, candle.InstrumentToken)
	data, _ := json.Marshal(candle)
	if _, err := p.js.Publish(subject, data); err != nil {
		p.logger.Error("failed to publish candle", zap.Error(err))
	}
}
