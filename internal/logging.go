package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger described by cfg.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, &ConfigError{Field: "logging.level", Reason: err.Error()}
		}
		level = parsed
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.Sampling = nil
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch cfg.Format {
	case "", "console":
		zcfg.Encoding = "console"
	case "json":
		zcfg.Encoding = "json"
	default:
		return nil, &ConfigError{Field: "logging.format", Reason: fmt.Sprintf("unknown format %q", cfg.Format)}
	}

	if len(cfg.Outputs) > 0 {
		for _, out := range cfg.Outputs {
			if out == "stdout" || out == "stderr" {
				continue
			}
			if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
				return nil, fmt.Errorf("create log directory: %w", err)
			}
		}
		zcfg.OutputPaths = cfg.Outputs
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
