package main

import (
	"context"
	"time"

	webconfig "github.com/NordCoder/CropSense/internal/config/web"
	"github.com/NordCoder/CropSense/internal/obs"
	"github.com/NordCoder/CropSense/internal/repository/kafka"
	"go.uber.org/zap"
)

func main() {
	cfg, err := webconfig.Load(webconfig.Path())
	if err != nil {
		panic(err)
	}
	logger, err := obs.NewLogger(cfg.AsLoggerConfig())
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if len(cfg.Kafka.Brokers) == 0 {
		logger.Fatal("kafka.brokers is empty")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	err = kafka.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.AsTopicSpec(30*time.Second), logger)
	if err != nil {
		logger.Fatal("ensure topic", zap.String("topic", cfg.Kafka.Topic), zap.Error(err))
	}
	logger.Info("kafka-init ok", zap.String("topic", cfg.Kafka.Topic))
}
