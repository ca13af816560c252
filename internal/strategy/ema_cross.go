package strategy

import (
	"time"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/indicator"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EMACross trades crossovers of a short EMA over a long EMA: golden
// cross opens long, death cross opens short (direction policy allowing),
// and a cross against an open position closes it. Entries and exits
// happen on candle closes only; like every variant, an open position is
// squared off at session end.
type EMACross struct {
	cfg    model.StrategyConfig
	logger *zap.Logger

	short *indicator.EMA
	long  *indicator.EMA

	prevShort decimal.Decimal
	prevLong  decimal.Decimal
	count     int

	inPos     bool
	side      model.Side
	qty       int64
	entryTime time.Time
}

func NewEMACross(cfg model.StrategyConfig, logger *zap.Logger) *EMACross {
	return &EMACross{
		cfg:    cfg,
		logger: logger,
		short:  indicator.NewEMA(cfg.ShortPeriod),
		long:   indicator.NewEMA(cfg.LongPeriod),
	}
}

func (s *EMACross) Name() string { return VariantEMACross }

func (s *EMACross) Reset() {
	s.short.Reset()
	s.long.Reset()
	s.prevShort = decimal.Decimal{}
	s.prevLong = decimal.Decimal{}
	s.count = 0
	s.inPos = false
}

func (s *EMACross) OnCandle(candle model.Candle) []model.TradeIntent {
	shortVal := s.short.Update(candle.Close)
	longVal := s.long.Update(candle.Close)
	s.count++

	defer func() {
		s.prevShort = shortVal
		s.prevLong = longVal
	}()

	// Past session end the only allowed action is squaring off; no new
	// positions open on late candles.
	if s.sessionOver(candle.Timestamp) {
		if s.inPos {
			return s.close(candle.Close, candle.Timestamp, model.ReasonEODSquareOff)
		}
		return nil
	}

	// Both averages need a full long-period warmup plus one candle of
	// history before a cross is meaningful.
	if s.count <= s.cfg.LongPeriod {
		return nil
	}

	golden := s.prevShort.LessThanOrEqual(s.prevLong) && shortVal.GreaterThan(longVal)
	death := s.prevShort.GreaterThanOrEqual(s.prevLong) && shortVal.LessThan(longVal)

	switch {
	case s.inPos && s.side == model.SideLong && death:
		return s.close(candle.Close, candle.Timestamp, model.ReasonEMACross)
	case s.inPos && s.side == model.SideShort && golden:
		return s.close(candle.Close, candle.Timestamp, model.ReasonEMACross)
	case !s.inPos && golden && s.cfg.Direction.Allows(model.SideLong):
		return s.open(model.SideLong, candle.Close, candle.Timestamp)
	case !s.inPos && death && s.cfg.Direction.Allows(model.SideShort):
		return s.open(model.SideShort, candle.Close, candle.Timestamp)
	}
	return nil
}

func (s *EMACross) OnTick(model.Tick) []model.TradeIntent { return nil }

func (s *EMACross) sessionOver(ts time.Time) bool {
	return !ts.Before(s.cfg.SessionEnd.On(ts))
}

func (s *EMACross) open(side model.Side, price decimal.Decimal, ts time.Time) []model.TradeIntent {
	s.inPos = true
	s.side = side
	s.qty = s.cfg.LotSize
	s.entryTime = ts
	return []model.TradeIntent{{
		Action:    model.ActionOpen,
		Side:      side,
		Price:     price,
		Quantity:  s.qty,
		Timestamp: ts,
		Reason:    model.ReasonEMACross,
	}}
}

func (s *EMACross) close(price decimal.Decimal, ts time.Time, reason string) []model.TradeIntent {
	intent := model.TradeIntent{
		Action:    model.ActionClose,
		Side:      s.side,
		Price:     price,
		Quantity:  s.qty,
		Timestamp: ts,
		Reason:    reason,
	}
	s.inPos = false
	return []model.TradeIntent{intent}
}
