package main

import (
	webconfig "github.com/NordCoder/CropSense/internal/config/web"
	"github.com/NordCoder/CropSense/internal/obs"
	"go.uber.org/zap"
)

func initLogger(cfg *webconfig.Config) (*zap.Logger, error) {
	logger, err := obs.NewLogger(cfg.AsLoggerConfig())
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}
