package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/engine"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/feed"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/model"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Handler struct {
	db       *pgxpool.Pool
	logger   *zap.Logger
	loader   *engine.DataLoader
	replayer *engine.Replayer
	manager  *engine.Manager
}

func NewHandler(db *pgxpool.Pool, manager *engine.Manager, logger *zap.Logger) *Handler {
	return &Handler{
		db:       db,
		logger:   logger,
		loader:   engine.NewDataLoader(db),
		replayer: engine.NewReplayer(logger),
		manager:  manager,
	}
}

// Auth Handlers

func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}

	var userID int64
	err = h.db.QueryRow(c.Request.Context(),
		"INSERT INTO users (email, password_hash) VALUES ($1, $2) RETURNING id",
		req.Email, string(hash)).Scan(&userID)

	if err != nil {
		h.logger.Error("failed to register user", zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
		return
	}

	h.logger.Info("user registered", zap.Int64("user_id", userID))
	c.JSON(http.StatusCreated, gin.H{"message": "user created", "id": userID})
}

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var userID int64
	var hash string
	err := h.db.QueryRow(c.Request.Context(),
		"SELECT id, password_hash FROM users WHERE email = $1", req.Email).Scan(&userID, &hash)

	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	token, err := GenerateToken(userID)
	if err != nil {
		h.logger.Error("failed to generate token", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Data Handlers

func (h *Handler) GetHistoryCandles(c *gin.Context) {
	var uri struct {
		Token int64 `uri:"token" binding:"required"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	period := c.DefaultQuery("period", "5m")

	end := time.Now()
	start := end.AddDate(0, 0, -7)
	candles, err := h.loader.LoadCandles(c.Request.Context(), uri.Token, period, start, end)
	if err != nil {
		h.logger.Error("failed to query candles", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, candles)
}

// strategyRequest is the wire form of a StrategyConfig; durations come
// in as strings ("5m"), clock times as "09:15".
type strategyRequest struct {
	InstrumentToken int64           `json:"instrument_token" binding:"required"`
	Variant         string          `json:"variant" binding:"required"`
	CandleDuration  string          `json:"candle_duration" binding:"required"`
	SessionStart    model.ClockTime `json:"session_start"`
	SessionEnd      model.ClockTime `json:"session_end"`
	RangeCandles    int             `json:"range_candles"`
	StopLoss        decimal.Decimal `json:"stop_loss"`
	Target          decimal.Decimal `json:"target"`
	TrailingStop    decimal.Decimal `json:"trailing_stop"`
	LotSize         int64           `json:"lot_size"`
	EMAPeriod       int             `json:"ema_period"`
	Direction       string          `json:"direction"`
	AllowReentry    bool            `json:"allow_reentry"`
	InitialBalance  decimal.Decimal `json:"initial_balance"`
	ShortPeriod     int             `json:"short_period"`
	LongPeriod      int             `json:"long_period"`
}

func (r strategyRequest) toConfig() (model.StrategyConfig, error) {
	duration, err := time.ParseDuration(r.CandleDuration)
	if err != nil {
		return model.StrategyConfig{}, err
	}
	direction := model.DirectionPolicy(r.Direction)
	if r.Direction == "" {
		direction = model.DirectionBoth
	}
	return model.StrategyConfig{
		InstrumentToken: r.InstrumentToken,
		Variant:         r.Variant,
		CandleDuration:  duration,
		SessionStart:    r.SessionStart,
		SessionEnd:      r.SessionEnd,
		RangeCandles:    r.RangeCandles,
		StopLoss:        r.StopLoss,
		Target:          r.Target,
		TrailingStop:    r.TrailingStop,
		LotSize:         r.LotSize,
		EMAPeriod:       r.EMAPeriod,
		Direction:       direction,
		AllowReentry:    r.AllowReentry,
		InitialBalance:  r.InitialBalance,
		ShortPeriod:     r.ShortPeriod,
		LongPeriod:      r.LongPeriod,
	}, nil
}

func (h *Handler) RunBacktest(c *gin.Context) {
	var req struct {
		strategyRequest
		StartTime time.Time `json:"start_time" binding:"required"`
		EndTime   time.Time `json:"end_time" binding:"required"`
		Source    string    `json:"source"` // "candles" (default) or "ticks"
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := req.toConfig()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 1. Fetch history for the replay
	var ticks []model.Tick
	var candles []model.Candle
	if req.Source == "ticks" {
		ticks, err = h.loader.LoadTicks(c.Request.Context(), cfg.InstrumentToken, req.StartTime, req.EndTime)
	} else {
		candles, err = h.loader.LoadCandles(c.Request.Context(), cfg.InstrumentToken,
			model.PeriodLabel(cfg.CandleDuration), req.StartTime, req.EndTime)
	}
	if err != nil {
		h.logger.Error("failed to fetch history for backtest", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch data"})
		return
	}

	// 2. Run the replay
	led, summary, err := h.replayer.Replay(feed.Merge(ticks, candles), cfg)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidStateTransition), errors.Is(err, model.ErrMalformedEvent):
			// Partial ledger still goes back for diagnostics.
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   err.Error(),
				"summary": summary,
				"trades":  led.Trades(),
			})
		case errors.Is(err, model.ErrEmptyEventStream):
			c.JSON(http.StatusNotFound, gin.H{"error": "no events in the requested range"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	// 3. Persist the run for later inspection
	h.saveBacktest(c, cfg, summary, led.Trades())

	c.JSON(http.StatusOK, gin.H{
		"summary": summary,
		"trades":  led.Trades(),
	})
}

func (h *Handler) saveBacktest(c *gin.Context, cfg model.StrategyConfig, summary model.PerformanceSummary, trades []model.ClosedTrade) {
	var runID int64
	err := h.db.QueryRow(c.Request.Context(), `
		INSERT INTO backtest_runs (instrument_token, variant, total_trades, total_pnl, win_rate)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		cfg.InstrumentToken, cfg.Variant, summary.TotalTrades, summary.TotalPnL, summary.WinRate).Scan(&runID)
	if err != nil {
		h.logger.Warn("failed to save backtest run", zap.Error(err))
		return
	}
	if err := storage.SaveTrades(c.Request.Context(), h.db, runID, trades); err != nil {
		h.logger.Warn("failed to save backtest trades", zap.Error(err))
	}
}

// Deployment Handlers

func (h *Handler) CreateDeployment(c *gin.Context) {
	var req strategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg, err := req.toConfig()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.manager.Deploy(cfg)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) StopDeployment(c *gin.Context) {
	if err := h.manager.Stop(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "stopped"})
}

func (h *Handler) ListDeployments(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.List())
}
