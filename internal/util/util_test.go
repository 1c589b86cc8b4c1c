package util

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLoggerConfig(t *testing.T) {
	cfg, err := loggerConfig("production", "")
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Encoding)
	assert.Equal(t, zapcore.InfoLevel, cfg.Level.Level())

	cfg, err = loggerConfig("development", "warn")
	require.NoError(t, err)
	assert.Equal(t, "console", cfg.Encoding)
	assert.Equal(t, zapcore.WarnLevel, cfg.Level.Level())
	assert.Equal(t, "development", cfg.InitialFields["env"])

	_, err = loggerConfig("production", "loud")
	assert.Error(t, err)
}

func TestInitTracer_WithoutExporter(t *testing.T) {
	SetLogger(zap.NewNop())
	tp, err := InitTracer(TracerOptions{SampleRatio: 1, Env: "test"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		tracer = nil
	})

	_, span := StartSpan(context.Background(), "test")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.SpanContext().IsSampled())
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}
