package inference

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

type ONNXConfig struct {
	ModelPath   string
	LibraryPath string
	InputSize   int
}

// ONNXClassifier runs a single-input, single-output image classifier.
// The session is bound to one pair of tensors, so Classify calls are serialized.
type ONNXClassifier struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	classes int
}

var _ Classifier = (*ONNXClassifier)(nil)

func NewONNXClassifier(cfg ONNXConfig) (*ONNXClassifier, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}
	size := cfg.InputSize
	if size <= 0 {
		size = DefaultInputSize
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect model: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("model must have one input and one output, got %d/%d", len(inputs), len(outputs))
	}
	outDims := outputs[0].Dimensions
	if len(outDims) == 0 || outDims[len(outDims)-1] <= 0 {
		return nil, fmt.Errorf("model output shape %v has no class dimension", outDims)
	}
	classes := outDims[len(outDims)-1]

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(size), int64(size), 3))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, classes))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ONNXClassifier{
		session: session,
		input:   input,
		output:  output,
		classes: int(classes),
	}, nil
}

func (c *ONNXClassifier) Classify(ctx context.Context, input []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	dst := c.input.GetData()
	if len(input) != len(dst) {
		return nil, fmt.Errorf("input has %d values, model expects %d", len(input), len(dst))
	}
	copy(dst, input)

	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	probs := make([]float32, c.classes)
	copy(probs, c.output.GetData())
	return probs, nil
}

func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		_ = c.session.Destroy()
		c.session = nil
	}
	if c.input != nil {
		_ = c.input.Destroy()
		c.input = nil
	}
	if c.output != nil {
		_ = c.output.Destroy()
		c.output = nil
	}
	return ort.DestroyEnvironment()
}
