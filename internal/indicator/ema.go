// Package indicator holds the incremental indicators attached to
// completed candles.
package indicator

import (
	"github.com/shopspring/decimal"
)

// EMA maintains a running exponential moving average over candle closes.
// Seeded with the first close, then ema = close*k + prev*(1-k) with
// k = 2/(N+1). Given the same close sequence it always produces the same
// values, which is what makes replays reproducible.
type EMA struct {
	period int
	k      decimal.Decimal
	value  decimal.Decimal
	seeded bool
}

func NewEMA(period int) *EMA {
	return &EMA{
		period: period,
		k:      decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period) + 1)),
	}
}

func (e *EMA) Period() int { return e.period }

// Update folds one close into the average and returns the new value.
func (e *EMA) Update(close decimal.Decimal) decimal.Decimal {
	if !e.seeded {
		e.value = close
		e.seeded = true
		return e.value
	}
	e.value = close.Mul(e.k).Add(e.value.Mul(decimal.NewFromInt(1).Sub(e.k)))
	return e.value
}

// Value returns the current average; ok is false before the first Update.
func (e *EMA) Value() (decimal.Decimal, bool) {
	return e.value, e.seeded
}

// Reset discards history, for the start of a new trading session.
func (e *EMA) Reset() {
	e.value = decimal.Decimal{}
	e.seeded = false
}
