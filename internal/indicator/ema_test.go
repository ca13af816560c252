package indicator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEMA_SeededWithFirstClose(t *testing.T) {
	ema := NewEMA(5)

	_, ok := ema.Value()
	assert.False(t, ok)

	v := ema.Update(decimal.NewFromInt(100))
	assert.True(t, v.Equal(decimal.NewFromInt(100)), "first value seeds the average")
}

func TestEMA_Recurrence(t *testing.T) {
	// Period 3 gives k = 2/4 = 0.5 exactly.
	ema := NewEMA(3)

	ema.Update(decimal.NewFromInt(10))
	v := ema.Update(decimal.NewFromInt(20))
	assert.True(t, v.Equal(decimal.NewFromInt(15)), "got %s", v)

	v = ema.Update(decimal.NewFromInt(30))
	assert.True(t, v.Equal(decimal.NewFromFloat(22.5)), "got %s", v)
}

func TestEMA_Deterministic(t *testing.T) {
	closes := []float64{100, 101.5, 99.25, 103, 102.4, 98.8, 100.1}

	run := func() []decimal.Decimal {
		ema := NewEMA(5)
		out := make([]decimal.Decimal, 0, len(closes))
		for _, c := range closes {
			out = append(out, ema.Update(decimal.NewFromFloat(c)))
		}
		return out
	}

	first, second := run(), run()
	for i := range first {
		assert.True(t, first[i].Equal(second[i]), "index %d: %s != %s", i, first[i], second[i])
	}
}

func TestEMA_Reset(t *testing.T) {
	ema := NewEMA(3)
	ema.Update(decimal.NewFromInt(10))
	ema.Update(decimal.NewFromInt(20))

	ema.Reset()
	_, ok := ema.Value()
	assert.False(t, ok)

	v := ema.Update(decimal.NewFromInt(50))
	assert.True(t, v.Equal(decimal.NewFromInt(50)), "reset engine reseeds from the next close")
}
