package obs

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

const (
	attrModelFile  = attribute.Key("cropsense.model.file")
	attrModelReady = attribute.Key("cropsense.model.ready")
	attrDBDriver   = attribute.Key("cropsense.db.driver")
)

type OTELConfig struct {
	Enable      bool
	Endpoint    string
	Insecure    bool
	SampleRatio float64
	Service     Service
	ModelReady  bool
}

type OTel struct {
	TracerProvider *sdktrace.TracerProvider
}

// Resource describes this instance to the collector, including whether the
// classifier is serving real predictions.
func Resource(cfg *OTELConfig) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.Service.Name),
		semconv.DeploymentEnvironment(cfg.Service.Env),
		attrModelReady.Bool(cfg.ModelReady),
	}
	if cfg.Service.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.Service.Version))
	}
	if cfg.Service.Model != "" {
		attrs = append(attrs, attrModelFile.String(cfg.Service.Model))
	}
	if cfg.Service.DBDriver != "" {
		attrs = append(attrs, attrDBDriver.String(cfg.Service.DBDriver))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func SetupOTel(ctx context.Context, cfg *OTELConfig) (*OTel, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	if !cfg.Enable {
		return &OTel{}, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter %s: %w", cfg.Endpoint, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithMaxExportBatchSize(512), sdktrace.WithBatchTimeout(2*time.Second)),
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
		sdktrace.WithResource(Resource(cfg)),
	)
	otel.SetTracerProvider(tp)
	return &OTel{TracerProvider: tp}, nil
}

func (o *OTel) Shutdown(ctx context.Context) error {
	if o.TracerProvider != nil {
		return o.TracerProvider.Shutdown(ctx)
	}
	return nil
}

func GRPCServerOpts() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	}
}
