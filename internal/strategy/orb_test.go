package strategy

import (
	"testing"
	"time"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func orbConfig() model.StrategyConfig {
	return model.StrategyConfig{
		InstrumentToken: 256265,
		Variant:         VariantORB,
		CandleDuration:  5 * time.Minute,
		SessionStart:    model.ClockTime{Hour: 9, Minute: 15},
		SessionEnd:      model.ClockTime{Hour: 15, Minute: 30},
		RangeCandles:    3,
		StopLoss:        decimal.NewFromInt(20),
		Target:          decimal.NewFromInt(40),
		LotSize:         1,
		EMAPeriod:       5,
		Direction:       model.DirectionBoth,
		InitialBalance:  decimal.NewFromInt(100000),
	}
}

func candleAt(hh, mm int, o, h, l, c float64) model.Candle {
	return model.Candle{
		InstrumentToken: 256265,
		Period:          "5m",
		Open:            decimal.NewFromFloat(o),
		High:            decimal.NewFromFloat(h),
		Low:             decimal.NewFromFloat(l),
		Close:           decimal.NewFromFloat(c),
		Volume:          decimal.NewFromInt(100),
		Timestamp:       time.Date(2024, 1, 15, hh, mm, 0, 0, time.UTC),
	}
}

func tickAt(hh, mm int, price float64) model.Tick {
	return model.Tick{
		InstrumentToken: 256265,
		LastPrice:       decimal.NewFromFloat(price),
		Volume:          decimal.NewFromInt(1),
		Timestamp:       time.Date(2024, 1, 15, hh, mm, 0, 0, time.UTC),
	}
}

// setRange walks the machine through the opening-range window,
// producing range [96, 104].
func setRange(t *testing.T, s *ORB) {
	t.Helper()
	assert.Empty(t, s.OnCandle(candleAt(9, 15, 100, 102, 98, 100)))
	assert.Empty(t, s.OnCandle(candleAt(9, 20, 100, 103, 97, 99)))
	assert.Empty(t, s.OnCandle(candleAt(9, 25, 99, 104, 96, 101)))
	assert.Equal(t, PhaseRangeSet, s.Phase())

	high, low := s.Range()
	assert.True(t, high.Equal(decimal.NewFromInt(104)))
	assert.True(t, low.Equal(decimal.NewFromInt(96)))
}

func TestORB_PreSessionCandlesIgnored(t *testing.T) {
	s := NewORB(orbConfig(), zap.NewNop())

	// Pre-open data must not pollute the opening range.
	assert.Empty(t, s.OnCandle(candleAt(9, 10, 100, 130, 70, 100)))
	assert.Equal(t, PhaseAwaitingRange, s.Phase())

	setRange(t, s)
}

func TestORB_BreakoutLong(t *testing.T) {
	s := NewORB(orbConfig(), zap.NewNop())
	setRange(t, s)

	// Close inside the range: no trade.
	assert.Empty(t, s.OnCandle(candleAt(9, 30, 101, 103, 100, 102)))

	intents := s.OnCandle(candleAt(9, 35, 102, 110, 101, 109))
	assert.Len(t, intents, 1)
	assert.Equal(t, model.ActionOpen, intents[0].Action)
	assert.Equal(t, model.SideLong, intents[0].Side)
	assert.True(t, intents[0].Price.Equal(decimal.NewFromInt(109)))
	assert.Equal(t, int64(1), intents[0].Quantity)
	assert.Equal(t, PhaseInPosition, s.Phase())
}

func TestORB_BreakoutBoundaryIsInclusive(t *testing.T) {
	s := NewORB(orbConfig(), zap.NewNop())
	setRange(t, s)

	// Close exactly at the range high triggers.
	intents := s.OnCandle(candleAt(9, 30, 101, 105, 100, 104))
	assert.Len(t, intents, 1)
	assert.Equal(t, model.SideLong, intents[0].Side)
}

func TestORB_BreakoutShort(t *testing.T) {
	s := NewORB(orbConfig(), zap.NewNop())
	setRange(t, s)

	intents := s.OnCandle(candleAt(9, 30, 97, 98, 90, 92))
	assert.Len(t, intents, 1)
	assert.Equal(t, model.SideShort, intents[0].Side)
}

func TestORB_DirectionPolicyBlocksShort(t *testing.T) {
	cfg := orbConfig()
	cfg.Direction = model.DirectionLong
	s := NewORB(cfg, zap.NewNop())
	setRange(t, s)

	assert.Empty(t, s.OnCandle(candleAt(9, 30, 97, 98, 90, 92)))
	assert.Equal(t, PhaseRangeSet, s.Phase())
}

func TestORB_StopLossExit(t *testing.T) {
	s := NewORB(orbConfig(), zap.NewNop())
	setRange(t, s)
	s.OnCandle(candleAt(9, 30, 102, 110, 101, 109)) // long @109, stop 89

	intents := s.OnCandle(candleAt(9, 35, 108, 108, 85, 88))
	assert.Len(t, intents, 1)
	assert.Equal(t, model.ActionClose, intents[0].Action)
	assert.Equal(t, model.ReasonStopLoss, intents[0].Reason)
	assert.Equal(t, PhaseDone, s.Phase())
}

func TestORB_TargetExit(t *testing.T) {
	s := NewORB(orbConfig(), zap.NewNop())
	setRange(t, s)
	s.OnCandle(candleAt(9, 30, 102, 110, 101, 109)) // long @109, target 149

	intents := s.OnCandle(candleAt(9, 35, 110, 151, 109, 150))
	assert.Len(t, intents, 1)
	assert.Equal(t, model.ReasonTarget, intents[0].Reason)
	assert.True(t, intents[0].Price.Equal(decimal.NewFromInt(150)))
}

func TestORB_StopChecksOnTicks(t *testing.T) {
	s := NewORB(orbConfig(), zap.NewNop())
	setRange(t, s)
	s.OnCandle(candleAt(9, 30, 102, 110, 101, 109)) // long @109, stop 89

	assert.Empty(t, s.OnTick(tickAt(9, 31, 100)))

	intents := s.OnTick(tickAt(9, 32, 89)) // stop boundary, inclusive
	assert.Len(t, intents, 1)
	assert.Equal(t, model.ReasonStopLoss, intents[0].Reason)
}

func TestORB_TrailingStop(t *testing.T) {
	cfg := orbConfig()
	cfg.TrailingStop = decimal.NewFromInt(10)
	cfg.Target = decimal.NewFromInt(100) // keep the target out of the way
	s := NewORB(cfg, zap.NewNop())
	setRange(t, s)
	s.OnCandle(candleAt(9, 30, 102, 110, 101, 109)) // long @109, trail 99

	// Favorable move ratchets the trail up to 120.
	assert.Empty(t, s.OnTick(tickAt(9, 31, 130)))

	intents := s.OnTick(tickAt(9, 32, 120))
	assert.Len(t, intents, 1)
	assert.Equal(t, model.ReasonTrailingStop, intents[0].Reason)
}

func TestORB_EODSquareOff(t *testing.T) {
	s := NewORB(orbConfig(), zap.NewNop())
	setRange(t, s)
	s.OnCandle(candleAt(9, 30, 102, 110, 101, 109))

	intents := s.OnCandle(candleAt(15, 30, 108, 109, 107, 108))
	assert.Len(t, intents, 1)
	assert.Equal(t, model.ReasonEODSquareOff, intents[0].Reason)
	assert.Equal(t, PhaseDone, s.Phase())
}

func TestORB_SessionEndWithoutTrade(t *testing.T) {
	s := NewORB(orbConfig(), zap.NewNop())
	setRange(t, s)

	assert.Empty(t, s.OnCandle(candleAt(15, 30, 100, 101, 99, 100)))
	assert.Equal(t, PhaseDone, s.Phase())
}

func TestORB_EMAExit(t *testing.T) {
	s := NewORB(orbConfig(), zap.NewNop())
	setRange(t, s)
	s.OnCandle(candleAt(9, 30, 102, 110, 101, 109))

	// Close at or below the EMA against a long position exits.
	candle := candleAt(9, 35, 108, 108, 104, 105)
	ema := decimal.NewFromInt(106)
	candle.EMA = &ema

	intents := s.OnCandle(candle)
	assert.Len(t, intents, 1)
	assert.Equal(t, model.ReasonEMAExit, intents[0].Reason)
}

func TestORB_Reentry(t *testing.T) {
	cfg := orbConfig()
	cfg.AllowReentry = true
	s := NewORB(cfg, zap.NewNop())
	setRange(t, s)

	s.OnCandle(candleAt(9, 30, 102, 110, 101, 109))
	intents := s.OnCandle(candleAt(9, 35, 108, 108, 85, 88))
	assert.Equal(t, model.ReasonStopLoss, intents[0].Reason)
	assert.Equal(t, PhaseRangeSet, s.Phase(), "re-entry returns to range watching")

	intents = s.OnCandle(candleAt(9, 40, 90, 112, 89, 110))
	assert.Len(t, intents, 1)
	assert.Equal(t, model.ActionOpen, intents[0].Action)
}

func TestORB_SingleTradePerSessionByDefault(t *testing.T) {
	s := NewORB(orbConfig(), zap.NewNop())
	setRange(t, s)

	s.OnCandle(candleAt(9, 30, 102, 110, 101, 109))
	s.OnCandle(candleAt(9, 35, 108, 108, 85, 88)) // stop loss
	assert.Equal(t, PhaseDone, s.Phase())

	assert.Empty(t, s.OnCandle(candleAt(9, 40, 90, 112, 89, 110)))
}

func TestORB_Reset(t *testing.T) {
	s := NewORB(orbConfig(), zap.NewNop())
	setRange(t, s)
	s.OnCandle(candleAt(9, 30, 102, 110, 101, 109))

	s.Reset()
	assert.Equal(t, PhaseAwaitingRange, s.Phase())
	assert.Empty(t, s.OnCandle(candleAt(9, 15, 100, 102, 98, 100)))
}
