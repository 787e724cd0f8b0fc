package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/NordCoder/CropSense/internal/domain/prediction"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { f.closed = true; return nil }

func TestPublishPredictionRecorded(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{w: w, topic: "prediction-recorded", log: zap.NewNop()}
	events := NewPredictionEventsKafka(p)

	uid := int64(7)
	ev := prediction.RecordedEvent{
		ID:        42,
		UserID:    &uid,
		UserEmail: "farmer@example.com",
		ImagePath: "https://store/x.jpg",
		Disease:   "Tomato Late Blight",
		Certainty: 87,
		CreatedAt: "2024-03-01T15:30:00+05:30",
	}
	require.NoError(t, events.PublishPredictionRecorded(context.Background(), ev))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	require.Equal(t, "42", string(msg.Key))

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	require.Equal(t, "Tomato Late Blight", got["disease"])
	require.EqualValues(t, 87, got["certainty"])
	require.EqualValues(t, 7, got["user_id"])
	require.Equal(t, "2024-03-01T15:30:00+05:30", got["created_at"])

	hs := headerMap(msg.Headers)
	require.Equal(t, "application/json", hs[HeaderContentType])
	require.Equal(t, EventPredictionRecorded, hs[HeaderEventType])

	require.NoError(t, p.Close())
	require.True(t, w.closed)
}

func TestPublishJSON_WriteError(t *testing.T) {
	p := &Producer{w: &fakeWriter{err: errors.New("leader not available")}, topic: "t", log: zap.NewNop()}
	require.Error(t, p.PublishJSON(context.Background(), []byte("1"), "test", map[string]int{"a": 1}))
	require.Error(t, p.PublishJSON(context.Background(), []byte("1"), "test", func() {}))
}

func TestAnonymousEventHasNullUser(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{w: w, topic: "t", log: zap.NewNop()}
	require.NoError(t, NewPredictionEventsKafka(p).PublishPredictionRecorded(context.Background(),
		prediction.RecordedEvent{ID: 1, Disease: "model-not-loaded"}))
	require.Contains(t, string(w.msgs[0].Value), `"user_id":null`)
	require.NotContains(t, string(w.msgs[0].Value), "user_email")
}

func TestHeadersCarryTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	w := &fakeWriter{}
	p := &Producer{w: w, topic: "t", log: zap.NewNop()}
	require.NoError(t, p.PublishJSON(ctx, KeyFromInt64(9), "test", map[string]int{"a": 1}))

	hs := headerMap(w.msgs[0].Headers)
	require.Contains(t, hs["traceparent"], sc.TraceID().String())
	require.Equal(t, "test", hs[HeaderEventType])

	keys := make([]string, 0, len(w.msgs[0].Headers))
	for _, h := range w.msgs[0].Headers {
		keys = append(keys, h.Key)
	}
	require.IsIncreasing(t, keys)
}

func headerMap(hs []kafka.Header) map[string]string {
	m := make(map[string]string, len(hs))
	for _, h := range hs {
		m[h.Key] = string(h.Value)
	}
	return m
}
