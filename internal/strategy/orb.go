package strategy

import (
	"time"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Phase is the per-session state of the opening-range-breakout machine.
type Phase int

const (
	PhaseAwaitingRange Phase = iota
	PhaseRangeSet
	PhaseInPosition
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingRange:
		return "awaiting_range"
	case PhaseRangeSet:
		return "range_set"
	case PhaseInPosition:
		return "in_position"
	default:
		return "done"
	}
}

type position struct {
	side      model.Side
	entry     decimal.Decimal
	qty       int64
	stop      decimal.Decimal
	target    decimal.Decimal
	trail     decimal.Decimal
	hasTrail  bool
	entryTime time.Time
}

// ORB is the opening-range-breakout strategy. The first RangeCandles
// candles of the session define a high/low range; a close at or beyond a
// boundary opens a position in that direction, subject to the direction
// policy. Exits are checked on every tick and candle in fixed priority:
// stop-loss, target, trailing stop, end-of-session square-off, EMA cross.
// All trigger comparisons are inclusive.
type ORB struct {
	cfg    model.StrategyConfig
	logger *zap.Logger

	phase      Phase
	rangeHigh  decimal.Decimal
	rangeLow   decimal.Decimal
	rangeCount int
	pos        position
}

func NewORB(cfg model.StrategyConfig, logger *zap.Logger) *ORB {
	return &ORB{cfg: cfg, logger: logger}
}

func (s *ORB) Name() string { return VariantORB }

func (s *ORB) Phase() Phase { return s.phase }

// Range returns the opening range; valid once the phase has left
// PhaseAwaitingRange.
func (s *ORB) Range() (high, low decimal.Decimal) {
	return s.rangeHigh, s.rangeLow
}

func (s *ORB) Reset() {
	s.phase = PhaseAwaitingRange
	s.rangeHigh = decimal.Decimal{}
	s.rangeLow = decimal.Decimal{}
	s.rangeCount = 0
	s.pos = position{}
}

func (s *ORB) OnCandle(candle model.Candle) []model.TradeIntent {
	switch s.phase {
	case PhaseAwaitingRange:
		if s.sessionOver(candle.Timestamp) {
			s.phase = PhaseDone
			return nil
		}
		// Pre-open candles never count toward the range.
		if candle.Timestamp.Before(s.cfg.SessionStart.On(candle.Timestamp)) {
			return nil
		}
		s.extendRange(candle)
		return nil

	case PhaseRangeSet:
		if s.sessionOver(candle.Timestamp) {
			s.phase = PhaseDone
			return nil
		}
		return s.checkBreakout(candle)

	case PhaseInPosition:
		return s.checkExit(candle.Close, candle.Timestamp, candle.EMA)

	default:
		return nil
	}
}

func (s *ORB) OnTick(tick model.Tick) []model.TradeIntent {
	if s.phase != PhaseInPosition {
		return nil
	}
	return s.checkExit(tick.LastPrice, tick.Timestamp, nil)
}

func (s *ORB) extendRange(candle model.Candle) {
	if s.rangeCount == 0 {
		s.rangeHigh = candle.High
		s.rangeLow = candle.Low
	} else {
		if candle.High.GreaterThan(s.rangeHigh) {
			s.rangeHigh = candle.High
		}
		if candle.Low.LessThan(s.rangeLow) {
			s.rangeLow = candle.Low
		}
	}
	s.rangeCount++

	if s.rangeCount >= s.cfg.RangeCandles {
		s.phase = PhaseRangeSet
		s.logger.Info("opening range set",
			zap.Int64("instrument_token", s.cfg.InstrumentToken),
			zap.String("range_high", s.rangeHigh.String()),
			zap.String("range_low", s.rangeLow.String()),
		)
	}
}

func (s *ORB) checkBreakout(candle model.Candle) []model.TradeIntent {
	if candle.Close.GreaterThanOrEqual(s.rangeHigh) && s.cfg.Direction.Allows(model.SideLong) {
		return s.open(model.SideLong, candle.Close, candle.Timestamp)
	}
	if candle.Close.LessThanOrEqual(s.rangeLow) && s.cfg.Direction.Allows(model.SideShort) {
		return s.open(model.SideShort, candle.Close, candle.Timestamp)
	}
	return nil
}

func (s *ORB) open(side model.Side, price decimal.Decimal, ts time.Time) []model.TradeIntent {
	pos := position{
		side:      side,
		entry:     price,
		qty:       s.cfg.LotSize,
		entryTime: ts,
	}
	if side == model.SideLong {
		pos.stop = price.Sub(s.cfg.StopLoss)
		pos.target = price.Add(s.cfg.Target)
		if s.cfg.TrailingStop.IsPositive() {
			pos.trail = price.Sub(s.cfg.TrailingStop)
			pos.hasTrail = true
		}
	} else {
		pos.stop = price.Add(s.cfg.StopLoss)
		pos.target = price.Sub(s.cfg.Target)
		if s.cfg.TrailingStop.IsPositive() {
			pos.trail = price.Add(s.cfg.TrailingStop)
			pos.hasTrail = true
		}
	}

	s.pos = pos
	s.phase = PhaseInPosition
	s.logger.Info("range breakout",
		zap.Int64("instrument_token", s.cfg.InstrumentToken),
		zap.String("side", string(side)),
		zap.String("entry", price.String()),
	)

	return []model.TradeIntent{{
		Action:    model.ActionOpen,
		Side:      side,
		Price:     price,
		Quantity:  pos.qty,
		Timestamp: ts,
		Reason:    model.ReasonRangeBreak,
	}}
}

// checkExit runs the exit conditions in priority order; the first match
// wins. ema is nil on the tick path, which skips the EMA filter.
func (s *ORB) checkExit(price decimal.Decimal, ts time.Time, ema *decimal.Decimal) []model.TradeIntent {
	long := s.pos.side == model.SideLong

	if (long && price.LessThanOrEqual(s.pos.stop)) ||
		(!long && price.GreaterThanOrEqual(s.pos.stop)) {
		return s.close(price, ts, model.ReasonStopLoss)
	}

	if (long && price.GreaterThanOrEqual(s.pos.target)) ||
		(!long && price.LessThanOrEqual(s.pos.target)) {
		return s.close(price, ts, model.ReasonTarget)
	}

	if s.pos.hasTrail {
		if (long && price.LessThanOrEqual(s.pos.trail)) ||
			(!long && price.GreaterThanOrEqual(s.pos.trail)) {
			return s.close(price, ts, model.ReasonTrailingStop)
		}
		// Ratchet with favorable movement only.
		if long {
			if next := price.Sub(s.cfg.TrailingStop); next.GreaterThan(s.pos.trail) {
				s.pos.trail = next
			}
		} else {
			if next := price.Add(s.cfg.TrailingStop); next.LessThan(s.pos.trail) {
				s.pos.trail = next
			}
		}
	}

	if s.sessionOver(ts) {
		return s.close(price, ts, model.ReasonEODSquareOff)
	}

	if ema != nil {
		if (long && price.LessThanOrEqual(*ema)) ||
			(!long && price.GreaterThanOrEqual(*ema)) {
			return s.close(price, ts, model.ReasonEMAExit)
		}
	}

	return nil
}

func (s *ORB) close(price decimal.Decimal, ts time.Time, reason string) []model.TradeIntent {
	intent := model.TradeIntent{
		Action:    model.ActionClose,
		Side:      s.pos.side,
		Price:     price,
		Quantity:  s.pos.qty,
		Timestamp: ts,
		Reason:    reason,
	}
	s.pos = position{}

	if s.cfg.AllowReentry && reason != model.ReasonEODSquareOff {
		s.phase = PhaseRangeSet
	} else {
		s.phase = PhaseDone
	}

	s.logger.Info("position closed",
		zap.Int64("instrument_token", s.cfg.InstrumentToken),
		zap.String("reason", reason),
		zap.String("exit", price.String()),
	)
	return []model.TradeIntent{intent}
}

func (s *ORB) sessionOver(ts time.Time) bool {
	return !ts.Before(s.cfg.SessionEnd.On(ts))
}
