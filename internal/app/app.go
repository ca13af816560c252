package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/endevs/ZerodhaKiteCopy-sub001/api"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/aggregate"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/config"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/engine"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/infrastructure"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/push"
	"github.com/endevs/ZerodhaKiteCopy-sub001/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// App defines the application structure and its dependencies
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *pgxpool.Pool
	NC         *nats.Conn
	JS         nats.JetStreamContext
	Manager    *engine.Manager
	Gateway    *push.Gateway
	HTTPServer *http.Server

	candleDuration time.Duration
}

// NewApp creates a new application instance
func NewApp() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	infrastructure.Init()
	logger := infrastructure.Logger

	duration, err := time.ParseDuration(cfg.CandlePeriod)
	if err != nil {
		return nil, fmt.Errorf("invalid candle period %q: %w", cfg.CandlePeriod, err)
	}

	api.SetJWTSecret(cfg.JWTSecret)

	return &App{
		Config:         &cfg,
		Logger:         logger,
		candleDuration: duration,
	}, nil
}

// Init initializes all application components
func (a *App) Init(ctx context.Context) error {
	// 1. Database
	dbPool, err := pgxpool.Connect(ctx, a.Config.DB_DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.DB = dbPool

	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// 2. NATS
	nc, js, err := infrastructure.InitNATS(a.Config.NatsURL, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	a.NC = nc
	a.JS = js

	// 3. Services
	a.Manager = engine.NewManager(js, a.Logger)
	a.Gateway = push.NewGateway(js, a.Logger)

	return nil
}

// Run starts the application services and the HTTP server
func (a *App) Run(ctx context.Context) error {
	// Start Persistence Service
	tickSaver := storage.NewTickSaver(a.DB, a.Logger, 1*time.Second, 1000)
	candleSaver := storage.NewCandleSaver(a.DB, a.Logger, 1*time.Second, 100)
	go tickSaver.Run(ctx)
	go candleSaver.Run(ctx)
	a.startPersistenceService(tickSaver, candleSaver)

	// Start Stream Processor
	processor := aggregate.NewProcessor(a.JS, a.candleDuration, a.Logger)
	if err := processor.Run(ctx); err != nil {
		return fmt.Errorf("failed to start candle processor: %w", err)
	}

	// Start Broker Feed
	a.startTickIngest(ctx)

	// Setup HTTP Server
	a.HTTPServer = &http.Server{
		Addr:    ":" + a.Config.Port,
		Handler: a.setupRouter(),
	}

	go func() {
		a.Logger.Info("starting http server", zap.String("port", a.Config.Port))
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	return a.waitForShutdown()
}

// waitForShutdown handles graceful shutdown signals
func (a *App) waitForShutdown() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	a.Logger.Info("shutting down...")

	a.Manager.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.NC.Close()
	a.DB.Close()

	return nil
}

// initDatabase runs the database initialization script
func (a *App) initDatabase(ctx context.Context) error {
	sqlFile := "scripts/init.sql"
	content, err := os.ReadFile(sqlFile)
	if err != nil {
		return fmt.Errorf("failed to read init script: %w", err)
	}

	_, err = a.DB.Exec(ctx, string(content))
	if err != nil {
		return fmt.Errorf("failed to execute init script: %w", err)
	}

	a.Logger.Info("database initialized successfully")
	return nil
}

// setupRouter configures the Gin router and its routes
func (a *App) setupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	apiHandler := api.NewHandler(a.DB, a.Manager, a.Logger)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/register", apiHandler.Register)
		v1.POST("/login", apiHandler.Login)
		v1.GET("/candles/:token", apiHandler.GetHistoryCandles)
	}

	protected := r.Group("/api/v1")
	protected.Use(api.AuthMiddleware())
	{
		protected.POST("/backtest", apiHandler.RunBacktest)
		protected.POST("/deployments", apiHandler.CreateDeployment)
		protected.DELETE("/deployments/:id", apiHandler.StopDeployment)
		protected.GET("/deployments", apiHandler.ListDeployments)
	}

	r.GET("/ws", func(c *gin.Context) {
		a.Gateway.ServeHTTP(c.Writer, c.Request)
	})

	return r
}
