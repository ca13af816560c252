// Package storage persists market data and trade results in batches, so
// a burst of ticks never turns into a burst of single-row inserts.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/infrastructure"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

// TickSaver buffers ticks and flushes them with COPY on an interval or
// when the buffer fills.
type TickSaver struct {
	pool      *pgxpool.Pool
	logger    *zap.Logger
	interval  time.Duration
	batchSize int

	mu  sync.Mutex
	buf []model.Tick
}

func NewTickSaver(pool *pgxpool.Pool, logger *zap.Logger, interval time.Duration, batchSize int) *TickSaver {
	return &TickSaver{
		pool:      pool,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		buf:       make([]model.Tick, 0, batchSize),
	}
}

func (s *TickSaver) Add(tick model.Tick) {
	s.mu.Lock()
	s.buf = append(s.buf, tick)
	full := len(s.buf) >= s.batchSize
	s.mu.Unlock()

	if full {
		s.flush(context.Background())
	}
}

func (s *TickSaver) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.flush(context.Background())
			return
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

func (s *TickSaver) flush(ctx context.Context) {
	s.mu.Lock()
	if len(s.buf) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.buf
	s.buf = make([]model.Tick, 0, s.batchSize)
	s.mu.Unlock()

	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"ticks"},
		[]string{"time", "instrument_token", "last_price", "volume"},
		pgx.CopyFromSlice(len(batch), func(i int) ([]interface{}, error) {
			t := batch[i]
			return []interface{}{t.Timestamp, t.InstrumentToken, t.LastPrice, t.Volume}, nil
		}),
	)
	if err != nil {
		s.logger.Error("failed to flush ticks", zap.Int("count", len(batch)), zap.Error(err))
		return
	}
	infrastructure.DBInsertRate.WithLabelValues("ticks").Add(float64(len(batch)))
}

// CandleSaver buffers completed candles; much lower volume than ticks
// but the same flush discipline.
type CandleSaver struct {
	pool      *pgxpool.Pool
	logger    *zap.Logger
	interval  time.Duration
	batchSize int

	mu  sync.Mutex
	buf []model.Candle
}

func NewCandleSaver(pool *pgxpool.Pool, logger *zap.Logger, interval time.Duration, batchSize int) *CandleSaver {
	return &CandleSaver{
		pool:      pool,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		buf:       make([]model.Candle, 0, batchSize),
	}
}

func (s *CandleSaver) Add(candle model.Candle) {
	s.mu.Lock()
	s.buf = append(s.buf, candle)
	full := len(s.buf) >= s.batchSize
	s.mu.Unlock()

	if full {
		s.flush(context.Background())
	}
}

func (s *CandleSaver) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.flush(context.Background())
			return
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

func (s *CandleSaver) flush(ctx context.Context) {
	s.mu.Lock()
	if len(s.buf) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.buf
	s.buf = make([]model.Candle, 0, s.batchSize)
	s.mu.Unlock()

	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"candles"},
		[]string{"time", "instrument_token", "period", "open", "high", "low", "close", "volume"},
		pgx.CopyFromSlice(len(batch), func(i int) ([]interface{}, error) {
			c := batch[i]
			return []interface{}{c.Timestamp, c.InstrumentToken, c.Period, c.Open, c.High, c.Low, c.Close, c.Volume}, nil
		}),
	)
	if err != nil {
		s.logger.Error("failed to flush candles", zap.Int("count", len(batch)), zap.Error(err))
		return
	}
	infrastructure.DBInsertRate.WithLabelValues("candles").Add(float64(len(batch)))
}

// SaveTrades persists the closed trades of a finished run, keyed by run
// id so the web layer can fetch a backtest's ledger later.
func SaveTrades(ctx context.Context, pool *pgxpool.Pool, runID int64, trades []model.ClosedTrade) error {
	for _, t := range trades {
		_, err := pool.Exec(ctx, `
			INSERT INTO closed_trades
				(run_id, side, entry_price, exit_price, quantity, entry_time, exit_time, pnl, exit_reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			runID, t.Side, t.EntryPrice, t.ExitPrice, t.Quantity, t.EntryTime, t.ExitTime, t.PnL, t.ExitReason)
		if err != nil {
			return err
		}
	}
	infrastructure.DBInsertRate.WithLabelValues("closed_trades").Add(float64(len(trades)))
	return nil
}
