package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Tick is a single trade/quote update for one instrument.
type Tick struct {
	InstrumentToken int64           `json:"instrument_token" db:"instrument_token"`
	LastPrice       decimal.Decimal `json:"last_price" db:"last_price"`
	Volume          decimal.Decimal `json:"volume" db:"volume"`
	Timestamp       time.Time       `json:"ts" db:"time"`
}

// Candle is an OHLCV aggregate over a fixed time bucket.
// Timestamp is the bucket's opening instant. EMA is attached after
// indicator computation and is nil on candles fresh out of the aggregator.
type Candle struct {
	InstrumentToken int64            `json:"instrument_token" db:"instrument_token"`
	Period          string           `json:"period" db:"period"` // "5m", "15m"
	Open            decimal.Decimal  `json:"o" db:"open"`
	High            decimal.Decimal  `json:"h" db:"high"`
	Low             decimal.Decimal  `json:"l" db:"low"`
	Close           decimal.Decimal  `json:"c" db:"close"`
	Volume          decimal.Decimal  `json:"v" db:"volume"`
	EMA             *decimal.Decimal `json:"ema,omitempty" db:"ema"`
	Timestamp       time.Time        `json:"t" db:"time"`
}

// PeriodLabel renders a bucket duration the way candles are keyed in
// storage and on NATS subjects: "5m", "15m", "1h", "30s".
func PeriodLabel(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return fmt.Sprintf("%ds", d/time.Second)
	}
}
