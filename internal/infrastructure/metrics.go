package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TickIngestRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tick_ingest_total",
		Help: "Total number of ticks ingested",
	}, []string{"instrument"})

	LateTicksDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "late_ticks_dropped_total",
		Help: "Ticks dropped because their bucket had already closed",
	}, []string{"instrument"})

	CandlesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "candles_emitted_total",
		Help: "Completed candles emitted by the aggregator",
	}, []string{"instrument", "period"})

	IntentsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trade_intents_total",
		Help: "Trade intents emitted by strategy state machines",
	}, []string{"variant", "action"})

	ActiveDeployments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "active_deployments",
		Help: "Number of live strategy deployments",
	})

	ReplayDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "replay_duration_seconds",
		Help: "Wall time spent running a historical replay",
	})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	DBInsertRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "db_insert_total",
		Help: "Total number of records inserted into DB",
	}, []string{"table"})
)
