package obs

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service identifies the running process. It is stamped on every log line
// and on the trace resource.
type Service struct {
	Name     string
	Env      string
	Version  string
	DBDriver string
	Model    string // model file name
}

type LogConfig struct {
	Level   string
	Pretty  bool
	Service Service
}

func (s Service) fields() []zap.Field {
	fs := []zap.Field{
		zap.String("service", s.Name),
		zap.String("env", s.Env),
	}
	if s.Version != "" {
		fs = append(fs, zap.String("version", s.Version))
	}
	if s.DBDriver != "" {
		fs = append(fs, zap.String("db_driver", s.DBDriver))
	}
	if s.Model != "" {
		fs = append(fs, zap.String("model", s.Model))
	}
	return fs
}

func NewLogger(c LogConfig) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if c.Pretty {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	lvl, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Sampling = nil
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build(zap.Fields(c.Service.fields()...))
}

// WithModelState tags log with whether the classifier is loaded. Instances
// running in sentinel mode log model_ready=false on every line.
func WithModelState(log *zap.Logger, ready bool) *zap.Logger {
	if log == nil {
		return nil
	}
	return log.With(zap.Bool("model_ready", ready))
}
