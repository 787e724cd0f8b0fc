package retry

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// PublishConfig bounds how hard the outbox pushes one event at the broker
// before leaving it for the next pick.
type PublishConfig struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// KafkaRetryable treats broker errors the protocol marks as temporary, and
// transport errors, as retryable. Cancellation and permanent errors are not.
func KafkaRetryable(err error) bool {
	if err == nil || IsPermanent(err) || errors.Is(err, context.Canceled) {
		return false
	}
	var ke kafka.Error
	if errors.As(err, &ke) {
		return ke.Temporary()
	}
	return true
}

// PredictionPublishPolicy is the retry policy for prediction.recorded events.
func PredictionPublishPolicy(cfg PublishConfig, log *zap.Logger) Policy {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 6
	}
	if cfg.Base <= 0 {
		cfg.Base = 200 * time.Millisecond
	}
	if cfg.Max <= 0 {
		cfg.Max = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return Policy{
		Name:      "prediction_recorded_publish",
		Attempts:  cfg.Attempts,
		Backoff:   ExpoJitter{Base: cfg.Base, Max: cfg.Max, Jitter: 0.2},
		Retryable: KafkaRetryable,
		OnAttempt: func(i int, err error) {
			log.Warn("publish prediction event failed", zap.Int("attempt", i+1), zap.Int("of", cfg.Attempts), zap.Error(err))
		},
		OnExhaust: func(err error) {
			if !errors.Is(err, context.Canceled) {
				log.Error("prediction event left for next pick", zap.Bool("permanent", IsPermanent(err)), zap.Error(err))
			}
		},
	}
}
