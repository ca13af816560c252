package engine

import (
	"testing"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/indicator"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/ledger"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/strategy"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testDeployment(t *testing.T) *Deployment {
	t.Helper()
	cfg := replayConfig()
	strat, err := strategy.New(cfg, zap.NewNop())
	assert.NoError(t, err)
	return &Deployment{
		ID:     "dep-test",
		Config: cfg,
		strat:  strat,
		ema:    indicator.NewEMA(cfg.EMAPeriod),
		ledger: ledger.New(zap.NewNop()),
		logger: zap.NewNop(),
	}
}

func TestDeployment_SquaresOffOnDayRoll(t *testing.T) {
	d := testDeployment(t)

	for _, c := range rangeCandles(15) {
		assert.Empty(t, d.apply(c))
	}
	intents := d.apply(histCandle(15, 9, 30, 101, 110, 100, 109))
	assert.Len(t, intents, 1)
	assert.Equal(t, model.ActionOpen, intents[0].Action)

	// First candle of the next day closes day one's position at the
	// last seen price before anything resets.
	intents = d.apply(rangeCandles(16)[0])
	assert.Len(t, intents, 1)
	assert.Equal(t, model.ActionClose, intents[0].Action)
	assert.Equal(t, model.ReasonEODSquareOff, intents[0].Reason)
	assert.True(t, intents[0].Price.Equal(decimal.NewFromInt(109)))
	assert.False(t, d.ledger.Pending())
	assert.False(t, d.ledger.Incomplete())

	// Day two trades normally afterwards.
	for _, c := range rangeCandles(16)[1:] {
		assert.Empty(t, d.apply(c))
	}
	intents = d.apply(histCandle(16, 9, 30, 101, 110, 100, 109))
	assert.Len(t, intents, 1)
	assert.Equal(t, model.ActionOpen, intents[0].Action)
	assert.False(t, d.ledger.Incomplete())
}

func TestDeployment_DayRollWithoutPositionJustResets(t *testing.T) {
	d := testDeployment(t)

	for _, c := range rangeCandles(15) {
		assert.Empty(t, d.apply(c))
	}

	// No position pending: the roll emits nothing and day two starts a
	// fresh range.
	assert.Empty(t, d.apply(rangeCandles(16)[0]))
	assert.Empty(t, d.ledger.Trades())
	assert.False(t, d.ledger.Incomplete())
}
