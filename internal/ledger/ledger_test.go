package ledger

import (
	"testing"
	"time"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func intent(action model.Action, side model.Side, price float64, qty int64) model.TradeIntent {
	return model.TradeIntent{
		Action:    action,
		Side:      side,
		Price:     decimal.NewFromFloat(price),
		Quantity:  qty,
		Timestamp: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		Reason:    model.ReasonRangeBreak,
	}
}

func TestLedger_LongRoundTrip(t *testing.T) {
	l := New(zap.NewNop())

	assert.NoError(t, l.Record(intent(model.ActionOpen, model.SideLong, 100, 2)))
	assert.True(t, l.Pending())

	close := intent(model.ActionClose, model.SideLong, 110, 2)
	close.Reason = model.ReasonTarget
	assert.NoError(t, l.Record(close))
	assert.False(t, l.Pending())

	trades := l.Trades()
	assert.Len(t, trades, 1)
	assert.Equal(t, model.SideLong, trades[0].Side)
	assert.True(t, trades[0].PnL.Equal(decimal.NewFromInt(20)), "got %s", trades[0].PnL)
	assert.Equal(t, model.ReasonTarget, trades[0].ExitReason)
}

func TestLedger_ShortPnLIsSigned(t *testing.T) {
	l := New(zap.NewNop())

	assert.NoError(t, l.Record(intent(model.ActionOpen, model.SideShort, 110, 3)))
	assert.NoError(t, l.Record(intent(model.ActionClose, model.SideShort, 100, 3)))

	trades := l.Trades()
	assert.Len(t, trades, 1)
	// Short entry 110, exit 100: price fell, the short profits.
	assert.True(t, trades[0].PnL.Equal(decimal.NewFromInt(30)), "got %s", trades[0].PnL)

	l2 := New(zap.NewNop())
	assert.NoError(t, l2.Record(intent(model.ActionOpen, model.SideShort, 100, 3)))
	assert.NoError(t, l2.Record(intent(model.ActionClose, model.SideShort, 110, 3)))
	assert.True(t, l2.Trades()[0].PnL.Equal(decimal.NewFromInt(-30)))
}

func TestLedger_DoubleOpenRejected(t *testing.T) {
	l := New(zap.NewNop())

	assert.NoError(t, l.Record(intent(model.ActionOpen, model.SideLong, 100, 1)))
	err := l.Record(intent(model.ActionOpen, model.SideLong, 101, 1))
	assert.ErrorIs(t, err, model.ErrInvalidStateTransition)
	assert.True(t, l.Incomplete())
}

func TestLedger_CloseWithoutOpenRejected(t *testing.T) {
	l := New(zap.NewNop())

	err := l.Record(intent(model.ActionClose, model.SideLong, 100, 1))
	assert.ErrorIs(t, err, model.ErrInvalidStateTransition)
	assert.True(t, l.Incomplete())
	assert.Empty(t, l.Trades())
}

func TestLedger_PartialTradesSurviveViolation(t *testing.T) {
	l := New(zap.NewNop())

	assert.NoError(t, l.Record(intent(model.ActionOpen, model.SideLong, 100, 1)))
	assert.NoError(t, l.Record(intent(model.ActionClose, model.SideLong, 105, 1)))

	assert.Error(t, l.Record(intent(model.ActionClose, model.SideLong, 110, 1)))
	assert.Len(t, l.Trades(), 1, "trades recorded before the violation stay available")
	assert.True(t, l.Incomplete())
}
