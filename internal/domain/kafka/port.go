package kafka

import (
	"context"

	"github.com/NordCoder/CropSense/internal/domain/prediction"
)

type PredictionEvents interface {
	PublishPredictionRecorded(ctx context.Context, ev prediction.RecordedEvent) error
}
