// Package ledger pairs trade intents into closed round-trip trades and
// reduces them into a performance summary.
package ledger

import (
	"fmt"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger accumulates intents for one strategy run. The state machine
// should never double-open or close without an open, but the ledger
// enforces it defensively: a violation marks the ledger incomplete and
// the trades recorded up to that point stay available for diagnostics.
type Ledger struct {
	logger     *zap.Logger
	pending    *model.TradeIntent
	trades     []model.ClosedTrade
	incomplete bool
}

func New(logger *zap.Logger) *Ledger {
	return &Ledger{logger: logger}
}

// Record applies one intent. OPEN starts a pending trade; CLOSE pairs
// with the pending OPEN, computes signed P&L, and appends a ClosedTrade.
func (l *Ledger) Record(intent model.TradeIntent) error {
	switch intent.Action {
	case model.ActionOpen:
		if l.pending != nil {
			l.incomplete = true
			return fmt.Errorf("%w: OPEN while a %s position is pending",
				model.ErrInvalidStateTransition, l.pending.Side)
		}
		open := intent
		l.pending = &open
		return nil

	case model.ActionClose:
		if l.pending == nil {
			l.incomplete = true
			return fmt.Errorf("%w: CLOSE with no pending position",
				model.ErrInvalidStateTransition)
		}
		l.trades = append(l.trades, closeTrade(*l.pending, intent))
		l.pending = nil
		return nil

	default:
		l.incomplete = true
		return fmt.Errorf("%w: unknown action %q", model.ErrInvalidStateTransition, intent.Action)
	}
}

func closeTrade(open, close model.TradeIntent) model.ClosedTrade {
	diff := close.Price.Sub(open.Price)
	if open.Side == model.SideShort {
		diff = diff.Neg()
	}
	return model.ClosedTrade{
		Side:       open.Side,
		EntryPrice: open.Price,
		ExitPrice:  close.Price,
		Quantity:   open.Quantity,
		EntryTime:  open.Timestamp,
		ExitTime:   close.Timestamp,
		PnL:        diff.Mul(decimal.NewFromInt(open.Quantity)),
		ExitReason: close.Reason,
	}
}

// Trades returns the closed round trips in execution order.
func (l *Ledger) Trades() []model.ClosedTrade { return l.trades }

// Pending reports whether an OPEN is waiting for its CLOSE.
func (l *Ledger) Pending() bool { return l.pending != nil }

// Incomplete reports whether an invariant violation truncated this run.
func (l *Ledger) Incomplete() bool { return l.incomplete }
