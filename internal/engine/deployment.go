package engine

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/indicator"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/infrastructure"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/ledger"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/strategy"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Deployment is one live strategy run: its own strategy instance, EMA,
// and ledger, with no state shared across deployments. Events are
// applied one at a time under a mutex, so a stop lands between events,
// never inside a state transition.
type Deployment struct {
	ID     string
	Config model.StrategyConfig

	mu          sync.Mutex
	strat       strategy.Strategy
	ema         *indicator.EMA
	ledger      *ledger.Ledger
	logger      *zap.Logger
	day         time.Time
	lastPrice   decimal.Decimal
	lastPriceTS time.Time
	sub         *nats.Subscription
}

// DeploymentStatus is the read-only snapshot exposed over the API.
type DeploymentStatus struct {
	ID              string `json:"id"`
	Variant         string `json:"variant"`
	InstrumentToken int64  `json:"instrument_token"`
	Trades          int    `json:"trades"`
	TotalPnL        string `json:"total_pnl"`
	OpenPosition    bool   `json:"open_position"`
	Incomplete      bool   `json:"incomplete"`
}

// Manager owns all live deployments for this process.
type Manager struct {
	js     nats.JetStreamContext
	logger *zap.Logger

	mu          sync.Mutex
	deployments map[string]*Deployment
	nextID      int64
}

func NewManager(js nats.JetStreamContext, logger *zap.Logger) *Manager {
	return &Manager{
		js:          js,
		logger:      logger,
		deployments: make(map[string]*Deployment),
	}
}

// Deploy builds the strategy for cfg and subscribes it to the candle
// stream of its instrument. Unknown variants fail here, before anything
// is wired up.
func (m *Manager) Deploy(cfg model.StrategyConfig) (string, error) {
	strat, err := strategy.New(cfg, m.logger)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.nextID++
	id := fmt.Sprintf("dep-%d", m.nextID)
	m.mu.Unlock()

	d := &Deployment{
		ID:     id,
		Config: cfg,
		strat:  strat,
		ema:    indicator.NewEMA(cfg.EMAPeriod),
		ledger: ledger.New(m.logger),
		logger: m.logger,
	}

	subject := fmt.Sprintf("candles.%s.%d", model.PeriodLabel(cfg.CandleDuration), cfg.InstrumentToken)
	sub, err := m.js.Subscribe(subject, func(msg *nats.Msg) {
		var candle model.Candle
		if err := json.Unmarshal(msg.Data, &candle); err != nil {
			m.logger.Error("failed to unmarshal candle for deployment",
				zap.String("deployment", id), zap.Error(err))
			return
		}
		m.apply(d, candle)
		msg.Ack()
	}, nats.Durable("deploy-"+id), nats.ManualAck())
	if err != nil {
		return "", fmt.Errorf("failed to subscribe deployment: %w", err)
	}
	d.sub = sub

	m.mu.Lock()
	m.deployments[id] = d
	m.mu.Unlock()

	infrastructure.ActiveDeployments.Inc()
	m.logger.Info("strategy deployed",
		zap.String("deployment", id),
		zap.String("variant", cfg.Variant),
		zap.Int64("instrument_token", cfg.InstrumentToken),
		zap.String("subject", subject),
	)
	return id, nil
}

func (m *Manager) apply(d *Deployment, candle model.Candle) {
	for _, intent := range d.apply(candle) {
		m.publishIntent(d, intent)
	}
}

// apply advances the deployment by one candle and returns the intents
// the ledger accepted, for publishing. A candle from a new trading day
// first squares off any position still pending from the previous
// session, then resets the strategy and EMA, same as the replay path.
func (d *Deployment) apply(candle model.Candle) []model.TradeIntent {
	d.mu.Lock()
	defer d.mu.Unlock()

	var accepted []model.TradeIntent

	day := time.Date(candle.Timestamp.Year(), candle.Timestamp.Month(), candle.Timestamp.Day(),
		0, 0, 0, 0, candle.Timestamp.Location())
	if !d.day.Equal(day) {
		if !d.day.IsZero() {
			if intent, ok := d.squareOff(); ok {
				accepted = append(accepted, intent)
			}
			d.strat.Reset()
			d.ema.Reset()
		}
		d.day = day
	}

	emaVal := d.ema.Update(candle.Close)
	candle.EMA = &emaVal
	d.lastPrice = candle.Close
	d.lastPriceTS = candle.Timestamp

	for _, intent := range d.strat.OnCandle(candle) {
		infrastructure.IntentsEmitted.WithLabelValues(d.strat.Name(), string(intent.Action)).Inc()
		if err := d.ledger.Record(intent); err != nil {
			d.logger.Error("ledger rejected intent",
				zap.String("deployment", d.ID), zap.Error(err))
			continue
		}
		accepted = append(accepted, intent)
	}
	return accepted
}

// squareOff closes a position left pending at a session boundary at the
// last seen price. Called with d.mu held.
func (d *Deployment) squareOff() (model.TradeIntent, bool) {
	if !d.ledger.Pending() {
		return model.TradeIntent{}, false
	}
	intent := model.TradeIntent{
		Action:    model.ActionClose,
		Price:     d.lastPrice,
		Quantity:  d.Config.LotSize,
		Timestamp: d.lastPriceTS,
		Reason:    model.ReasonEODSquareOff,
	}
	if err := d.ledger.Record(intent); err != nil {
		d.logger.Error("failed to square off at session roll",
			zap.String("deployment", d.ID), zap.Error(err))
		return model.TradeIntent{}, false
	}
	d.logger.Info("squared off pending position at session roll",
		zap.String("deployment", d.ID),
		zap.String("price", d.lastPrice.String()),
	)
	return intent, true
}

func (m *Manager) publishIntent(d *Deployment, intent model.TradeIntent) {
	subject := fmt.Sprintf("intents.%d", d.Config.InstrumentToken)
	data, _ := json.Marshal(intent)
	if _, err := m.js.Publish(subject, data); err != nil {
		m.logger.Error("failed to publish intent",
			zap.String("deployment", d.ID), zap.Error(err))
	}
}

// Stop unsubscribes the deployment; the in-flight event (if any)
// finishes under the deployment mutex before the state is torn down.
func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	d, ok := m.deployments[id]
	if ok {
		delete(m.deployments, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("deployment %s not found", id)
	}

	if d.sub != nil {
		if err := d.sub.Unsubscribe(); err != nil {
			m.logger.Warn("failed to unsubscribe deployment", zap.String("deployment", id), zap.Error(err))
		}
	}
	infrastructure.ActiveDeployments.Dec()
	m.logger.Info("deployment stopped", zap.String("deployment", id))
	return nil
}

// StopAll tears down every deployment, for process shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.deployments))
	for id := range m.deployments {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		_ = m.Stop(id)
	}
}

func (m *Manager) List() []DeploymentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := make([]DeploymentStatus, 0, len(m.deployments))
	for _, d := range m.deployments {
		statuses = append(statuses, m.status(d))
	}
	return statuses
}

func (m *Manager) status(d *Deployment) DeploymentStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	summary := ledger.Summarize(d.ledger.Trades(), d.Config.InitialBalance)
	return DeploymentStatus{
		ID:              d.ID,
		Variant:         d.Config.Variant,
		InstrumentToken: d.Config.InstrumentToken,
		Trades:          summary.TotalTrades,
		TotalPnL:        summary.TotalPnL.String(),
		OpenPosition:    d.ledger.Pending(),
		Incomplete:      d.ledger.Incomplete(),
	}
}
