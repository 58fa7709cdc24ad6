package telemetry_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/internal/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestMetrics_RecordsAgainstInjectedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	m.RecordTransition("draft", "awaiting_pickup")
	m.RecordTransition("draft", "awaiting_pickup")
	m.RecordWebhookParked("GHTK")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("draft", "awaiting_pickup")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhooksParked.WithLabelValues("GHTK")))
}

func TestMetrics_SeparateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.NewMetrics(prometheus.NewRegistry())
		telemetry.NewMetrics(prometheus.NewRegistry())
	})
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("create_order", "GHTK", "ok", 0.1)
		m.RecordError("GHTK", "timeout")
		m.ObserveSweep(1)
	})
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "WARN", "error", "bogus"} {
		logger, err := telemetry.NewLogger(level)
		assert.NoError(t, err)
		assert.NotNil(t, logger)
	}
}

func TestNewLogger_Level(t *testing.T) {
	debug, err := telemetry.NewLogger("DEBUG")
	assert.NoError(t, err)
	assert.True(t, debug.Core().Enabled(zapcore.DebugLevel))

	fallback, err := telemetry.NewLogger("bogus")
	assert.NoError(t, err)
	assert.False(t, fallback.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, fallback.Core().Enabled(zapcore.InfoLevel))
}

func TestNewLogger_CtxLogging(t *testing.T) {
	logger, err := telemetry.NewLogger("info", zap.String("service", "tournevent-fulfillment"))
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		logger.Ctx(context.Background()).Info("webhook received", zap.String("carrier", "GHN"))
		logger.Ctx(context.Background()).Debug("below the minimum level")
	})
}
