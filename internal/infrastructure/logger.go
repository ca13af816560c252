package infrastructure

import (
	"go.uber.org/zap"
)

var (
	Logger *zap.Logger
)

func Init() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	Logger = logger.Named("engine")
	Logger.Info("infrastructure initialized")
}
