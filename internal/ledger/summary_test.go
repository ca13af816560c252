package ledger

import (
	"testing"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func closed(side model.Side, pnl float64) model.ClosedTrade {
	return model.ClosedTrade{
		Side: side,
		PnL:  decimal.NewFromFloat(pnl),
	}
}

func TestSummarize_EmptyLedger(t *testing.T) {
	s := Summarize(nil, decimal.NewFromInt(100000))

	assert.Equal(t, 0, s.TotalTrades)
	assert.Equal(t, 0.0, s.WinRate)
	assert.Equal(t, 0.0, s.ProfitFactor)
	assert.Equal(t, 0.0, s.CumulativeReturn)
	assert.True(t, s.TotalPnL.IsZero())
	assert.True(t, s.FinalBalance.Equal(decimal.NewFromInt(100000)))
}

func TestSummarize_MixedTrades(t *testing.T) {
	trades := []model.ClosedTrade{
		closed(model.SideLong, 40),
		closed(model.SideLong, -20),
		closed(model.SideShort, 60),
	}
	s := Summarize(trades, decimal.NewFromInt(1000))

	assert.Equal(t, 3, s.TotalTrades)
	assert.Equal(t, 2, s.WinningTrades)
	assert.Equal(t, 1, s.LosingTrades)
	assert.InDelta(t, 2.0/3.0, s.WinRate, 1e-12)
	assert.True(t, s.TotalPnL.Equal(decimal.NewFromInt(80)))
	assert.True(t, s.FinalBalance.Equal(decimal.NewFromInt(1080)))
	assert.True(t, s.AverageWin.Equal(decimal.NewFromInt(50)))
	assert.True(t, s.AverageLoss.Equal(decimal.NewFromInt(20)))
	assert.InDelta(t, 5.0, s.ProfitFactor, 1e-12) // 100 / 20
	assert.InDelta(t, 0.08, s.CumulativeReturn, 1e-12)
}

func TestSummarize_ZeroLossesReportsZeroProfitFactor(t *testing.T) {
	trades := []model.ClosedTrade{
		closed(model.SideLong, 40),
		closed(model.SideLong, 10),
	}
	s := Summarize(trades, decimal.NewFromInt(1000))

	assert.Equal(t, 1.0, s.WinRate)
	assert.Equal(t, 0.0, s.ProfitFactor, "undefined profit factor reports as zero")
	assert.True(t, s.AverageLoss.IsZero())
}

func TestSummarize_BreakEvenTradeIsNeitherWinNorLoss(t *testing.T) {
	trades := []model.ClosedTrade{closed(model.SideLong, 0)}
	s := Summarize(trades, decimal.NewFromInt(1000))

	assert.Equal(t, 1, s.TotalTrades)
	assert.Equal(t, 0, s.WinningTrades)
	assert.Equal(t, 0, s.LosingTrades)
}
