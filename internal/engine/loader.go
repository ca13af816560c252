package engine

import (
	"context"
	"time"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"

	"github.com/jackc/pgx/v4/pgxpool"
)

type DataLoader struct {
	pool *pgxpool.Pool
}

func NewDataLoader(pool *pgxpool.Pool) *DataLoader {
	return &DataLoader{pool: pool}
}

func (l *DataLoader) LoadCandles(ctx context.Context, token int64, period string, start, end time.Time) ([]model.Candle, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT time, instrument_token, period, open, high, low, close, volume
		FROM candles
		WHERE instrument_token = $1 AND period = $2 AND time >= $3 AND time <= $4
		ORDER BY time ASC`,
		token, period, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		if err := rows.Scan(&c.Timestamp, &c.InstrumentToken, &c.Period, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

func (l *DataLoader) LoadTicks(ctx context.Context, token int64, start, end time.Time) ([]model.Tick, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT time, instrument_token, last_price, volume
		FROM ticks
		WHERE instrument_token = $1 AND time >= $2 AND time <= $3
		ORDER BY time ASC`,
		token, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ticks []model.Tick
	for rows.Next() {
		var t model.Tick
		if err := rows.Scan(&t.Timestamp, &t.InstrumentToken, &t.LastPrice, &t.Volume); err != nil {
			return nil, err
		}
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}
