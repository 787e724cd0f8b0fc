package kafka

import (
	"context"

	"github.com/NordCoder/CropSense/internal/domain/kafka"
	"github.com/NordCoder/CropSense/internal/domain/prediction"
)

// EventPredictionRecorded tags messages carrying a prediction.RecordedEvent.
const EventPredictionRecorded = "prediction.recorded"

type PredictionEventsKafka struct {
	p *Producer
}

func NewPredictionEventsKafka(p *Producer) *PredictionEventsKafka {
	return &PredictionEventsKafka{p: p}
}

var _ kafka.PredictionEvents = (*PredictionEventsKafka)(nil)

func (e *PredictionEventsKafka) PublishPredictionRecorded(ctx context.Context, ev prediction.RecordedEvent) error {
	return e.p.PublishJSON(ctx, KeyFromInt64(ev.ID), EventPredictionRecorded, ev)
}
