package main

import (
	webconfig "github.com/NordCoder/CropSense/internal/config/web"
	"github.com/NordCoder/CropSense/internal/inference"
	"go.uber.org/zap"
)

// initEngine never fails: a missing label table falls back to class_<n>
// names and a missing model puts the engine in sentinel mode.
func initEngine(cfg *webconfig.Config, logger *zap.Logger) *inference.Engine {
	labels, err := inference.LoadLabels(cfg.Model.LabelsPath)
	if err != nil {
		logger.Warn("label table unavailable", zap.String("path", cfg.Model.LabelsPath), zap.Error(err))
		labels = inference.NewLabels(nil)
	}

	clf, err := inference.NewONNXClassifier(inference.ONNXConfig{
		ModelPath:   cfg.Model.Path,
		LibraryPath: cfg.Model.ORTLibraryPath,
		InputSize:   cfg.Model.InputSize,
	})
	if err != nil {
		logger.Warn("model not loaded, predictions will be model-not-loaded",
			zap.String("path", cfg.Model.Path), zap.Error(err))
		return inference.NewEngine(nil, labels, cfg.Model.InputSize, logger)
	}
	logger.Info("model loaded", zap.String("path", cfg.Model.Path), zap.Int("labels", labels.Len()))
	return inference.NewEngine(clf, labels, cfg.Model.InputSize, logger)
}
