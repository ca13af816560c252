package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Intent actions and position sides.
type Action string

const (
	ActionOpen  Action = "OPEN"
	ActionClose Action = "CLOSE"
)

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Exit reasons, in the priority order they are evaluated.
const (
	ReasonStopLoss     = "stop_loss"
	ReasonTarget       = "target"
	ReasonTrailingStop = "trailing_stop"
	ReasonEODSquareOff = "eod_square_off"
	ReasonEMAExit      = "ema_exit"
	ReasonRangeBreak   = "range_breakout"
	ReasonEMACross     = "ema_cross"
)

// DirectionPolicy restricts which breakout directions a strategy may take.
type DirectionPolicy string

const (
	DirectionLong  DirectionPolicy = "long_only"
	DirectionShort DirectionPolicy = "short_only"
	DirectionBoth  DirectionPolicy = "both"
)

// Allows reports whether the policy permits opening on the given side.
func (p DirectionPolicy) Allows(s Side) bool {
	switch p {
	case DirectionLong:
		return s == SideLong
	case DirectionShort:
		return s == SideShort
	default:
		return true
	}
}

// ClockTime is a wall-clock time of day ("09:15"), applied to the date of
// whatever event stream a strategy run processes.
type ClockTime struct {
	Hour   int
	Minute int
}

func ParseClockTime(s string) (ClockTime, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return ClockTime{}, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return ClockTime{}, fmt.Errorf("invalid clock time %q", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

// On anchors the clock time to the date (and location) of ts.
func (c ClockTime) On(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), c.Hour, c.Minute, 0, 0, ts.Location())
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

func (c *ClockTime) UnmarshalJSON(b []byte) error {
	parsed, err := ParseClockTime(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// StrategyConfig holds the immutable parameters of one strategy run.
// It is owned by exactly one strategy instance and never mutated after
// construction.
type StrategyConfig struct {
	InstrumentToken int64           `json:"instrument_token"`
	Variant         string          `json:"variant"` // "orb", "ema_cross"
	CandleDuration  time.Duration   `json:"candle_duration"`
	SessionStart    ClockTime       `json:"session_start"`
	SessionEnd      ClockTime       `json:"session_end"`
	RangeCandles    int             `json:"range_candles"` // opening-range window length
	StopLoss        decimal.Decimal `json:"stop_loss"`     // points from entry
	Target          decimal.Decimal `json:"target"`        // points from entry
	TrailingStop    decimal.Decimal `json:"trailing_stop"` // trail delta, zero disables
	LotSize         int64           `json:"lot_size"`
	EMAPeriod       int             `json:"ema_period"`
	Direction       DirectionPolicy `json:"direction"`
	AllowReentry    bool            `json:"allow_reentry"`
	InitialBalance  decimal.Decimal `json:"initial_balance"`

	// ema_cross variant only.
	ShortPeriod int `json:"short_period,omitempty"`
	LongPeriod  int `json:"long_period,omitempty"`
}

// Validate rejects configs that cannot produce a well-defined run.
func (c StrategyConfig) Validate() error {
	if c.InstrumentToken == 0 {
		return fmt.Errorf("%w: missing instrument token", ErrMalformedEvent)
	}
	if c.CandleDuration <= 0 {
		return fmt.Errorf("candle duration must be positive, got %s", c.CandleDuration)
	}
	if c.LotSize <= 0 {
		return fmt.Errorf("lot size must be positive, got %d", c.LotSize)
	}
	if c.EMAPeriod <= 0 {
		return fmt.Errorf("ema period must be positive, got %d", c.EMAPeriod)
	}
	start, end := c.SessionStart, c.SessionEnd
	if start.Hour*60+start.Minute >= end.Hour*60+end.Minute {
		return fmt.Errorf("session start %s is not before session end %s", start, end)
	}
	return nil
}

// TradeIntent is a single open/close decision emitted by a strategy.
// Immutable after emission.
type TradeIntent struct {
	Action    Action          `json:"action"`
	Side      Side            `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Timestamp time.Time       `json:"ts"`
	Reason    string          `json:"reason"`
}

// ClosedTrade is one completed round trip, created when a CLOSE intent
// pairs with the preceding OPEN.
type ClosedTrade struct {
	Side       Side            `json:"side" db:"side"`
	EntryPrice decimal.Decimal `json:"entry_price" db:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price" db:"exit_price"`
	Quantity   int64           `json:"quantity" db:"quantity"`
	EntryTime  time.Time       `json:"entry_time" db:"entry_time"`
	ExitTime   time.Time       `json:"exit_time" db:"exit_time"`
	PnL        decimal.Decimal `json:"pnl" db:"pnl"`
	ExitReason string          `json:"exit_reason" db:"exit_reason"`
}

// PerformanceSummary is recomputed from the full ledger, never patched
// incrementally. Ratios that would divide by zero report zero.
type PerformanceSummary struct {
	TotalTrades      int             `json:"total_trades"`
	WinningTrades    int             `json:"winning_trades"`
	LosingTrades     int             `json:"losing_trades"`
	WinRate          float64         `json:"win_rate"`
	TotalPnL         decimal.Decimal `json:"total_pnl"`
	InitialBalance   decimal.Decimal `json:"initial_balance"`
	FinalBalance     decimal.Decimal `json:"final_balance"`
	CumulativeReturn float64         `json:"cumulative_return"`
	AverageWin       decimal.Decimal `json:"average_win"`
	AverageLoss      decimal.Decimal `json:"average_loss"`
	ProfitFactor     float64         `json:"profit_factor"`
	Incomplete       bool            `json:"incomplete,omitempty"`
}
