package kafka

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"

	"github.com/NordCoder/CropSense/internal/obs"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	HeaderContentType = "content-type"
	HeaderEventType   = "event-type"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes JSON events to a single topic. Messages are keyed so every
// event about one prediction lands on the same partition.
type Producer struct {
	w     messageWriter
	topic string
	log   *zap.Logger
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireAll,
		},
		topic: topic,
		log:   zap.L().With(zap.String("component", "kafka.producer"), zap.String("topic", topic)),
	}
}

func (p *Producer) WithLogger(l *zap.Logger) *Producer {
	if l == nil {
		return p
	}
	cp := *p
	cp.log = l.With(zap.String("component", "kafka.producer"), zap.String("topic", p.topic))
	return &cp
}

// PublishJSON writes v as one message tagged with eventType. The current trace
// context travels in the headers.
func (p *Producer) PublishJSON(ctx context.Context, key []byte, eventType string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		p.log.Error("encode event failed", zap.String("event", eventType), zap.Error(err))
		return err
	}

	ctx, span := obs.Tracer().Start(ctx, "kafka.produce "+p.topic, trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingOperationPublish,
			semconv.MessagingKafkaMessageKey(string(key)),
		),
	)
	defer span.End()

	msg := kafka.Message{Key: key, Value: value, Headers: headers(ctx, eventType)}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		obs.Fail(span, err)
		p.log.Warn("kafka write failed", zap.String("event", eventType), zap.ByteString("key", key), zap.Error(err))
		return err
	}
	p.log.Debug("event published",
		zap.String("event", eventType),
		zap.ByteString("key", key),
		zap.Int("value_len", len(value)),
	)
	return nil
}

func (p *Producer) Close() error { return p.w.Close() }

func headers(ctx context.Context, eventType string) []kafka.Header {
	c := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, c)
	c.Set(HeaderContentType, "application/json")
	c.Set(HeaderEventType, eventType)

	keys := c.Keys()
	sort.Strings(keys)
	hs := make([]kafka.Header, 0, len(keys))
	for _, k := range keys {
		hs = append(hs, kafka.Header{Key: k, Value: []byte(c.Get(k))})
	}
	return hs
}

func KeyFromInt64(id int64) []byte { return []byte(strconv.FormatInt(id, 10)) }
