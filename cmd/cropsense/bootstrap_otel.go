package main

import (
	"context"

	webconfig "github.com/NordCoder/CropSense/internal/config/web"
	"github.com/NordCoder/CropSense/internal/obs"
	"go.uber.org/zap"
)

func initOTel(ctx context.Context, cfg *webconfig.Config, modelReady bool, logger *zap.Logger) (func(context.Context) error, error) {
	closer, err := obs.SetupOTel(ctx, cfg.AsOTELConfig(modelReady))
	if err != nil {
		return nil, err
	}
	if cfg.OTEL.Enable {
		logger.Info("tracing enabled", zap.String("endpoint", cfg.OTEL.OTLPEndpoint), zap.Float64("sample_ratio", cfg.OTEL.SampleRatio))
	}
	return closer.Shutdown, nil
}
