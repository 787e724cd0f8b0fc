package main

import (
	"context"
	"time"

	webconfig "github.com/NordCoder/CropSense/internal/config/web"
	domainoutbox "github.com/NordCoder/CropSense/internal/domain/outbox"
	"github.com/NordCoder/CropSense/internal/domain/prediction"
	"github.com/NordCoder/CropSense/internal/obs/retry"
	"github.com/NordCoder/CropSense/internal/outbox"
	"github.com/NordCoder/CropSense/internal/repository/kafka"
	"go.uber.org/zap"
)

// initEvents returns the sink the pipeline writes to. With Kafka enabled it
// is the transactional outbox, drained by a runner publishing to the topic;
// stop waits for the runner and closes the producer once ctx is done.
func initEvents(ctx context.Context, cfg *webconfig.Config, logger *zap.Logger, repo domainoutbox.Repository) (prediction.Events, func()) {
	if !cfg.Kafka.Enable {
		return outbox.Discard(), func() {}
	}

	if err := kafka.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.AsTopicSpec(5*time.Second), logger); err != nil {
		logger.Warn("ensure topic failed, relying on auto-create", zap.String("topic", cfg.Kafka.Topic), zap.Error(err))
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic).WithLogger(logger)
	handler := outbox.MakeGlobalOutboxHandler(kafka.NewPredictionEventsKafka(producer), retry.PredictionPublishPolicy(cfg.Outbox.AsPublishConfig(), logger))
	runner := outbox.NewOutboxRunner(logger, repo, handler, outbox.RunnerConfig{
		Workers:       cfg.Outbox.Workers,
		BatchSize:     cfg.Outbox.BatchSize,
		Wait:          cfg.Outbox.Wait,
		InProgressTTL: cfg.Outbox.InProgressTTL,
	})
	runner.Start(ctx)
	logger.Info("outbox runner started", zap.String("topic", cfg.Kafka.Topic))

	return outbox.NewPredictionEnqueuer(repo), func() {
		runner.Wait()
		if err := producer.Close(); err != nil {
			logger.Warn("close kafka producer", zap.Error(err))
		}
	}
}
