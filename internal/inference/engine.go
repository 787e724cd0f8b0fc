package inference

import (
	"context"
	"image"
	"math"
	"time"

	"github.com/NordCoder/CropSense/internal/domain/prediction"
	"github.com/NordCoder/CropSense/internal/obs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

const (
	LabelModelNotLoaded  = "model-not-loaded"
	LabelInferenceFailed = "inference-failed"
)

// Classifier maps a preprocessed input tensor to a probability vector.
type Classifier interface {
	Classify(ctx context.Context, input []float32) ([]float32, error)
	Close() error
}

type Result struct {
	Label     string
	Certainty int
	Index     int // -1 for sentinel results
}

func (r Result) Sentinel() bool { return IsSentinel(r.Label) }

func modelNotLoaded() Result { return Result{Label: LabelModelNotLoaded, Index: -1} }

func inferenceFailed() Result { return Result{Label: LabelInferenceFailed, Index: -1} }

// IsSentinel reports whether a stored label is a placeholder instead of a diagnosis.
func IsSentinel(label string) bool {
	return label == LabelModelNotLoaded || label == LabelInferenceFailed
}

var inferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "cropsense_inference_duration_seconds",
	Help:    "Time spent decoding, preprocessing and classifying one image.",
	Buckets: prometheus.DefBuckets,
}, []string{"outcome"})

// Engine turns an image into a (label, certainty) pair. A nil classifier puts
// it in sentinel mode: every call returns model-not-loaded.
type Engine struct {
	clf    Classifier
	labels *Labels
	size   int
	log    *zap.Logger
}

func NewEngine(clf Classifier, labels *Labels, inputSize int, log *zap.Logger) *Engine {
	if inputSize <= 0 {
		inputSize = DefaultInputSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{clf: clf, labels: labels, size: inputSize, log: log.With(zap.String("component", "inference"))}
}

func (e *Engine) Ready() bool { return e.clf != nil }

// Classify decodes the image at path and classifies it.
func (e *Engine) Classify(ctx context.Context, path string) Result {
	if e.clf == nil {
		return modelNotLoaded()
	}
	img, err := DecodeFile(path)
	if err != nil {
		obs.WithTrace(ctx, e.log).Warn("image unreadable", zap.String("path", path), zap.Error(err))
		inferenceDuration.WithLabelValues("failed").Observe(0)
		return inferenceFailed()
	}
	return e.ClassifyImage(ctx, img)
}

func (e *Engine) ClassifyImage(ctx context.Context, img image.Image) Result {
	if e.clf == nil {
		return modelNotLoaded()
	}
	ctx, span := obs.Tracer().Start(ctx, "inference.classify")
	defer span.End()
	start := time.Now()

	probs, err := e.clf.Classify(ctx, Preprocess(img, e.size))
	if err != nil || len(probs) == 0 {
		obs.Fail(span, err)
		obs.WithTrace(ctx, e.log).Warn("classifier failed", zap.Int("outputs", len(probs)), zap.Error(err))
		inferenceDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
		return inferenceFailed()
	}

	res := e.decide(probs)
	span.SetAttributes(
		attribute.String("inference.label", res.Label),
		attribute.Int("inference.certainty", res.Certainty),
	)
	inferenceDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	return res
}

// decide picks the first maximal probability.
func (e *Engine) decide(probs []float32) Result {
	p := make([]float64, len(probs))
	for i, v := range probs {
		if math.IsNaN(float64(v)) {
			p[i] = math.Inf(-1)
			continue
		}
		p[i] = float64(v)
	}
	idx := floats.MaxIdx(p)
	return Result{
		Label:     e.labels.Resolve(idx),
		Certainty: certainty(p[idx]),
		Index:     idx,
	}
}

func certainty(p float64) int {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	return prediction.ClampCertainty(int(math.RoundToEven(100 * p)))
}

func (e *Engine) Close() error {
	if e.clf == nil {
		return nil
	}
	return e.clf.Close()
}
