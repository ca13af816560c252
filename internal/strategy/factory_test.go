package strategy

import (
	"testing"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNew_UnknownVariant(t *testing.T) {
	cfg := orbConfig()
	cfg.Variant = "capture_mountain_signal"

	_, err := New(cfg, zap.NewNop())
	assert.ErrorIs(t, err, model.ErrUnknownStrategyVariant)
}

func TestNew_KnownVariants(t *testing.T) {
	cfg := orbConfig()
	s, err := New(cfg, zap.NewNop())
	assert.NoError(t, err)
	assert.Equal(t, VariantORB, s.Name())

	cfg.Variant = VariantEMACross
	cfg.ShortPeriod = 2
	cfg.LongPeriod = 5
	s, err = New(cfg, zap.NewNop())
	assert.NoError(t, err)
	assert.Equal(t, VariantEMACross, s.Name())
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := orbConfig()
	cfg.RangeCandles = 0
	_, err := New(cfg, zap.NewNop())
	assert.Error(t, err)

	cfg = orbConfig()
	cfg.Variant = VariantEMACross
	cfg.ShortPeriod = 5
	cfg.LongPeriod = 2
	_, err = New(cfg, zap.NewNop())
	assert.Error(t, err)

	cfg = orbConfig()
	cfg.LotSize = 0
	_, err = New(cfg, zap.NewNop())
	assert.Error(t, err)
}
