package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NordCoder/CropSense/internal/advisory"
	"github.com/NordCoder/CropSense/internal/domain/outbox"
	"github.com/NordCoder/CropSense/internal/domain/prediction"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// PredictionEnqueuer records a prediction.recorded message for every
// persisted prediction. Called with a transactional context, the message
// commits or rolls back together with the prediction row.
type PredictionEnqueuer struct {
	repo outbox.Repository
}

var _ prediction.Events = (*PredictionEnqueuer)(nil)

func NewPredictionEnqueuer(repo outbox.Repository) *PredictionEnqueuer {
	return &PredictionEnqueuer{repo: repo}
}

func (e *PredictionEnqueuer) Recorded(ctx context.Context, p *prediction.Prediction, userEmail string) error {
	data, err := json.Marshal(RecordedEvent(p, userEmail))
	if err != nil {
		return fmt.Errorf("marshal prediction event: %w", err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	return e.repo.Enqueue(ctx, outbox.Message{
		IdempotencyKey: fmt.Sprintf("prediction.recorded:%d", p.ID),
		Kind:           outbox.KindPredictionRecorded,
		Data:           data,
		Traceparent:    carrier.Get("traceparent"),
		Tracestate:     carrier.Get("tracestate"),
		Baggage:        carrier.Get("baggage"),
	})
}

func RecordedEvent(p *prediction.Prediction, userEmail string) prediction.RecordedEvent {
	ev := prediction.RecordedEvent{
		ID:        p.ID,
		UserEmail: userEmail,
		ImagePath: p.ImagePath,
		Disease:   p.Disease,
		Certainty: p.Certainty,
		CreatedAt: p.CreatedAt.In(advisory.IST).Format(time.RFC3339),
	}
	if p.UserID > 0 {
		uid := p.UserID
		ev.UserID = &uid
	}
	return ev
}

type discard struct{}

func (discard) Recorded(context.Context, *prediction.Prediction, string) error { return nil }

// Discard is the event sink used when event publishing is disabled.
func Discard() prediction.Events { return discard{} }
