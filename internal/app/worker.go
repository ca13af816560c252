package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/feed"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/storage"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// ParseTokens splits a comma-separated instrument token list from config.
func ParseTokens(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	tokens := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		token, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid instrument token %q: %w", p, err)
		}
		tokens = append(tokens, token)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("no instrument tokens configured")
	}
	return tokens, nil
}

// startTickIngest runs the broker feed and republishes its ticks onto
// JetStream, where the processor, savers, and deployments pick them up.
func (a *App) startTickIngest(ctx context.Context) {
	tokens, err := ParseTokens(a.Config.InstrumentTokens)
	if err != nil {
		a.Logger.Fatal("bad instrument token config", zap.Error(err))
	}

	brokerFeed := feed.NewBrokerFeed(a.Config.BrokerWSURL, tokens, a.Logger)
	events := make(chan feed.Event, 1000)

	go func() {
		if err := brokerFeed.Run(ctx, events); err != nil && ctx.Err() == nil {
			a.Logger.Error("broker feed stopped", zap.Error(err))
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				if ev.Tick == nil {
					continue
				}
				subject := fmt.Sprintf("ticks.raw.%d", ev.Tick.InstrumentToken)
				data, err := json.Marshal(ev.Tick)
				if err != nil {
					a.Logger.Error("failed to marshal tick", zap.Error(err))
					continue
				}
				if _, err := a.JS.Publish(subject, data); err != nil {
					a.Logger.Error("failed to publish to NATS", zap.Error(err))
				}
			}
		}
	}()
}

// startPersistenceService subscribes to NATS and saves ticks and candles to the database
func (a *App) startPersistenceService(tickSaver *storage.TickSaver, candleSaver *storage.CandleSaver) {
	// 1. Subscribe to raw ticks
	_, err := a.JS.Subscribe("ticks.raw.*", func(m *nats.Msg) {
		var tick model.Tick
		if err := json.Unmarshal(m.Data, &tick); err != nil {
			a.Logger.Error("failed to unmarshal tick", zap.Error(err))
			return
		}
		tickSaver.Add(tick)
		m.Ack()
	}, nats.Durable("tick_saver"), nats.ManualAck())
	if err != nil {
		a.Logger.Fatal("failed to subscribe to ticks", zap.Error(err))
	}

	// 2. Subscribe to candles
	_, err = a.JS.Subscribe("candles.*.*", func(m *nats.Msg) {
		var candle model.Candle
		if err := json.Unmarshal(m.Data, &candle); err != nil {
			a.Logger.Error("failed to unmarshal candle", zap.Error(err))
			return
		}
		candleSaver.Add(candle)
		m.Ack()
	}, nats.Durable("candle_saver"), nats.ManualAck())
	if err != nil {
		a.Logger.Fatal("failed to subscribe to candles", zap.Error(err))
	}
}
