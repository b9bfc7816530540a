package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Service     string
	Level       string
	Development bool
}

// New builds the service logger; every entry carries the service name.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	service := cfg.Service
	if service == "" {
		service = "default"
	}
	return l.With(zap.String("service", service)), nil
}
