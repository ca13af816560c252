package strategy

import (
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"
)

// Strategy is one deployed trading rule over a single instrument. The
// orchestrator feeds it completed candles (with EMA attached) and raw
// ticks in timestamp order; it answers with zero or more trade intents.
//
// Implementations own their mutable state for exactly one run and are
// not safe for concurrent use; each deployment gets its own instance.
type Strategy interface {
	Name() string
	OnCandle(candle model.Candle) []model.TradeIntent
	OnTick(tick model.Tick) []model.TradeIntent

	// Reset returns the strategy to its start-of-session state. Called
	// by the orchestrator when the event stream rolls to a new session.
	Reset()
}
