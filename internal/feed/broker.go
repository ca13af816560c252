package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/infrastructure"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BrokerFeed is the live EventSource: it subscribes to the broker's tick
// websocket for a set of instruments and emits raw tick events. It only
// reads market data; order placement never goes through here.
type BrokerFeed struct {
	logger *zap.Logger
	url    string
	tokens []int64
}

func NewBrokerFeed(url string, tokens []int64, logger *zap.Logger) *BrokerFeed {
	return &BrokerFeed{
		logger: logger,
		url:    url,
		tokens: tokens,
	}
}

// brokerTickEvent is the broker's wire format for a tick.
type brokerTickEvent struct {
	InstrumentToken int64  `json:"instrument_token"`
	LastPrice       string `json:"last_price"`
	Volume          string `json:"volume_traded"`
	Timestamp       int64  `json:"exchange_timestamp"` // unix millis
}

func (f *BrokerFeed) Run(ctx context.Context, out chan<- Event) error {
	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		f.logger.Info("connecting to broker websocket", zap.String("url", f.url))
		dialer := websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		}
		conn, _, err := dialer.Dial(f.url, nil)
		if err != nil {
			f.logger.Error("failed to connect to broker", zap.Error(err))
			time.Sleep(backoff)
			backoff = increaseBackoff(backoff)
			continue
		}

		backoff = time.Second // Reset backoff on successful connection
		infrastructure.WSConnections.Inc()

		if err := f.subscribe(conn); err != nil {
			f.logger.Error("failed to subscribe", zap.Error(err))
		} else if err := f.handleConnection(ctx, conn, out); err != nil {
			f.logger.Error("connection closed with error", zap.Error(err))
		}
		infrastructure.WSConnections.Dec()
		conn.Close()
	}
}

func (f *BrokerFeed) subscribe(conn *websocket.Conn) error {
	req := struct {
		Action string  `json:"a"`
		Tokens []int64 `json:"v"`
	}{Action: "subscribe", Tokens: f.tokens}
	return conn.WriteJSON(req)
}

func (f *BrokerFeed) handleConnection(ctx context.Context, conn *websocket.Conn, out chan<- Event) error {
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			_, message, err := conn.ReadMessage()
			if err != nil {
				return err
			}

			var event brokerTickEvent
			if err := json.Unmarshal(message, &event); err != nil {
				f.logger.Error("failed to unmarshal broker tick", zap.Error(err))
				continue
			}

			tick, err := event.toModel()
			if err != nil {
				f.logger.Warn("dropping malformed broker tick", zap.Error(err))
				continue
			}

			select {
			case out <- Event{Timestamp: tick.Timestamp, Tick: &tick}:
			default:
				f.logger.Warn("event channel full, dropping tick",
					zap.Int64("instrument_token", tick.InstrumentToken))
			}
		}
	}
}

func (e brokerTickEvent) toModel() (model.Tick, error) {
	price, err := decimal.NewFromString(e.LastPrice)
	if err != nil {
		return model.Tick{}, fmt.Errorf("bad last_price %q: %w", e.LastPrice, err)
	}
	volume, err := decimal.NewFromString(e.Volume)
	if err != nil {
		volume = decimal.Zero
	}
	if e.InstrumentToken == 0 || e.Timestamp == 0 {
		return model.Tick{}, fmt.Errorf("missing token or timestamp")
	}
	return model.Tick{
		InstrumentToken: e.InstrumentToken,
		LastPrice:       price,
		Volume:          volume,
		Timestamp:       time.Unix(0, e.Timestamp*int64(time.Millisecond)),
	}, nil
}

func increaseBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > time.Minute {
		return time.Minute
	}
	return next
}
