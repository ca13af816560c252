package ledger

import (
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"

	"github.com/shopspring/decimal"
)

// Summarize reduces a full trade sequence into aggregate statistics.
// Pure function over its inputs: win rate and profit factor are 0, not
// an error, when the denominators are zero.
func Summarize(trades []model.ClosedTrade, initialBalance decimal.Decimal) model.PerformanceSummary {
	summary := model.PerformanceSummary{
		TotalTrades:    len(trades),
		InitialBalance: initialBalance,
		TotalPnL:       decimal.Zero,
		AverageWin:     decimal.Zero,
		AverageLoss:    decimal.Zero,
	}

	grossWin := decimal.Zero
	grossLoss := decimal.Zero
	for _, t := range trades {
		summary.TotalPnL = summary.TotalPnL.Add(t.PnL)
		if t.PnL.IsPositive() {
			summary.WinningTrades++
			grossWin = grossWin.Add(t.PnL)
		} else if t.PnL.IsNegative() {
			summary.LosingTrades++
			grossLoss = grossLoss.Add(t.PnL.Abs())
		}
	}

	summary.FinalBalance = initialBalance.Add(summary.TotalPnL)

	if summary.TotalTrades > 0 {
		summary.WinRate = float64(summary.WinningTrades) / float64(summary.TotalTrades)
	}
	if summary.WinningTrades > 0 {
		summary.AverageWin = grossWin.Div(decimal.NewFromInt(int64(summary.WinningTrades)))
	}
	if summary.LosingTrades > 0 {
		summary.AverageLoss = grossLoss.Div(decimal.NewFromInt(int64(summary.LosingTrades)))
	}
	if grossLoss.IsPositive() {
		summary.ProfitFactor, _ = grossWin.Div(grossLoss).Float64()
	}
	if initialBalance.IsPositive() {
		summary.CumulativeReturn, _ = summary.TotalPnL.Div(initialBalance).Float64()
	}

	return summary
}
