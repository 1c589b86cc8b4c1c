package util

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "storefront"

var logger *zap.Logger

// InitLogger builds the process logger. Production emits JSON at info,
// anything else a colored console at debug. A non-empty level overrides
// the default for either.
func InitLogger(env, level string) error {
	config, err := loggerConfig(env, level)
	if err != nil {
		return err
	}

	l, err := config.Build()
	if err != nil {
		return err
	}
	SetLogger(l)
	return nil
}

func loggerConfig(env, level string) (zap.Config, error) {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.InitialFields = map[string]interface{}{"service": serviceName, "env": env}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return config, fmt.Errorf("log level %q: %w", level, err)
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	return config, nil
}

// GetLogger returns the process logger, a development one until
// InitLogger has run.
func GetLogger() *zap.Logger {
	if logger == nil {
		logger, _ = zap.NewDevelopment()
	}
	return logger
}

// SetLogger swaps the global logger, mostly for tests that want zap.NewNop.
func SetLogger(l *zap.Logger) {
	logger = l
	zap.ReplaceGlobals(l)
}

func SyncLogger() {
	if logger != nil {
		_ = logger.Sync()
	}
}
