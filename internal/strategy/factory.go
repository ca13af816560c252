package strategy

import (
	"fmt"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"

	"go.uber.org/zap"
)

const (
	VariantORB      = "orb"
	VariantEMACross = "ema_cross"
)

// New builds the strategy for cfg.Variant. Unknown variants are fatal at
// run start; nothing is partially constructed.
func New(cfg model.StrategyConfig, logger *zap.Logger) (Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Variant {
	case VariantORB:
		if cfg.RangeCandles <= 0 {
			return nil, fmt.Errorf("orb: range_candles must be positive, got %d", cfg.RangeCandles)
		}
		return NewORB(cfg, logger), nil
	case VariantEMACross:
		if cfg.ShortPeriod <= 0 || cfg.LongPeriod <= cfg.ShortPeriod {
			return nil, fmt.Errorf("ema_cross: need 0 < short_period < long_period, got %d/%d",
				cfg.ShortPeriod, cfg.LongPeriod)
		}
		return NewEMACross(cfg, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownStrategyVariant, cfg.Variant)
	}
}
