package engine

import (
	"fmt"
	"time"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/aggregate"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/feed"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/indicator"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/infrastructure"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/ledger"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/strategy"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Replayer drives one strategy over a historical event stream in a
// single deterministic pass: no wall clock, no randomness, so the same
// events and config always produce the same ledger and summary.
type Replayer struct {
	logger *zap.Logger
}

func NewReplayer(logger *zap.Logger) *Replayer {
	return &Replayer{logger: logger}
}

// Replay feeds each event through aggregator → EMA → state machine →
// ledger in order. On a ledger invariant violation the partial ledger is
// returned alongside the error, with its summary tagged incomplete.
func (r *Replayer) Replay(events []feed.Event, cfg model.StrategyConfig) (*ledger.Ledger, model.PerformanceSummary, error) {
	start := time.Now()
	defer func() {
		infrastructure.ReplayDuration.Observe(time.Since(start).Seconds())
	}()

	strat, err := strategy.New(cfg, r.logger)
	if err != nil {
		return nil, model.PerformanceSummary{}, err
	}

	run := &run{
		cfg:    cfg,
		logger: r.logger,
		strat:  strat,
		agg:    aggregate.New(cfg.CandleDuration, r.logger),
		ema:    indicator.NewEMA(cfg.EMAPeriod),
		ledger: ledger.New(r.logger),
	}

	if err := run.process(events); err != nil {
		summary := ledger.Summarize(run.ledger.Trades(), cfg.InitialBalance)
		summary.Incomplete = true
		return run.ledger, summary, err
	}

	summary := ledger.Summarize(run.ledger.Trades(), cfg.InitialBalance)
	summary.Incomplete = run.ledger.Incomplete()
	return run.ledger, summary, nil
}

// run is the mutable state of one replay pass.
type run struct {
	cfg    model.StrategyConfig
	logger *zap.Logger
	strat  strategy.Strategy
	agg    *aggregate.Aggregator
	ema    *indicator.EMA
	ledger *ledger.Ledger

	day          time.Time // session date currently being processed
	lastCandleTS time.Time // for monotonicity of pre-built candle input
	lastPrice    decimal.Decimal
	lastPriceTS  time.Time
}

func (s *run) process(events []feed.Event) error {
	seen := false
	for _, ev := range events {
		switch {
		case ev.Tick != nil:
			if ev.Tick.InstrumentToken != s.cfg.InstrumentToken {
				continue
			}
			seen = true
			if err := s.onTick(*ev.Tick); err != nil {
				return err
			}
		case ev.Candle != nil:
			if ev.Candle.InstrumentToken != s.cfg.InstrumentToken {
				continue
			}
			seen = true
			if err := s.onPrebuiltCandle(*ev.Candle); err != nil {
				return err
			}
		}
	}

	if !seen {
		return model.ErrEmptyEventStream
	}

	// Close out the bucket left open at the end of the stream.
	if candle, ok := s.agg.Flush(); ok {
		if err := s.onCandle(candle); err != nil {
			return err
		}
	}
	return nil
}

func (s *run) onTick(tick model.Tick) error {
	if tick.Timestamp.IsZero() || !tick.LastPrice.IsPositive() {
		s.logger.Warn("dropping malformed tick",
			zap.Int64("instrument_token", tick.InstrumentToken),
			zap.Time("ts", tick.Timestamp),
		)
		return nil
	}

	if err := s.rollSession(tick.Timestamp); err != nil {
		return err
	}

	if candle, ok := s.agg.Ingest(tick); ok {
		if err := s.onCandle(candle); err != nil {
			return err
		}
	}

	s.lastPrice = tick.LastPrice
	s.lastPriceTS = tick.Timestamp
	return s.record(s.strat.OnTick(tick))
}

func (s *run) onPrebuiltCandle(candle model.Candle) error {
	if candle.Timestamp.IsZero() {
		return fmt.Errorf("%w: candle without timestamp", model.ErrMalformedEvent)
	}
	if !s.lastCandleTS.IsZero() && candle.Timestamp.Before(s.lastCandleTS) {
		return fmt.Errorf("%w: candle at %s after candle at %s",
			model.ErrMalformedEvent, candle.Timestamp, s.lastCandleTS)
	}
	s.lastCandleTS = candle.Timestamp

	if err := s.rollSession(candle.Timestamp); err != nil {
		return err
	}
	return s.onCandle(&candle)
}

func (s *run) onCandle(candle *model.Candle) error {
	emaVal := s.ema.Update(candle.Close)
	candle.EMA = &emaVal
	s.lastPrice = candle.Close
	s.lastPriceTS = candle.Timestamp
	return s.record(s.strat.OnCandle(*candle))
}

// rollSession resets per-session state when the stream crosses into a
// new trading day. A position left open across the boundary (data gap
// before the session's square-off event) is closed at the last seen
// price so the ledger never carries an unmatched OPEN into a session.
func (s *run) rollSession(ts time.Time) error {
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
	if s.day.Equal(day) {
		return nil
	}
	if !s.day.IsZero() {
		// The previous day's partial bucket still belongs to that
		// session; close and process it before anything resets.
		if candle, ok := s.agg.Flush(); ok {
			if err := s.onCandle(candle); err != nil {
				return err
			}
		}
		if s.ledger.Pending() {
			err := s.ledger.Record(model.TradeIntent{
				Action:    model.ActionClose,
				Price:     s.lastPrice,
				Quantity:  s.cfg.LotSize,
				Timestamp: s.lastPriceTS,
				Reason:    model.ReasonEODSquareOff,
			})
			if err != nil {
				return err
			}
		}
		s.strat.Reset()
		s.ema.Reset()
		s.agg = aggregate.New(s.cfg.CandleDuration, s.logger)
	}
	s.day = day
	return nil
}

func (s *run) record(intents []model.TradeIntent) error {
	for _, intent := range intents {
		infrastructure.IntentsEmitted.WithLabelValues(s.strat.Name(), string(intent.Action)).Inc()
		if err := s.ledger.Record(intent); err != nil {
			return err
		}
	}
	return nil
}
