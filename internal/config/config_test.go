package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 80, cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 15*time.Second, cfg.AdapterTimeout)
	assert.Equal(t, 5, cfg.WebhookMaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.DraftTimeout)
	assert.Equal(t, "cheapest", cfg.RatePolicy)
	assert.False(t, cfg.RedisEnabled())
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("SWEEP_INTERVAL", "10s")
	t.Setenv("RATE_POLICY", "fastest")
	t.Setenv("GHN_USE_MOCK", "true")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.RedisEnabled())
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, 10*time.Second, cfg.SweepInterval)
	assert.Equal(t, "fastest", cfg.RatePolicy)
	assert.True(t, cfg.GHNUseMock)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{"unknown policy", map[string]string{"RATE_POLICY": "random"}, "RATE_POLICY"},
		{"zero attempts", map[string]string{"WEBHOOK_MAX_ATTEMPTS": "0"}, "WEBHOOK_MAX_ATTEMPTS"},
		{"zero batch", map[string]string{"SWEEP_BATCH_SIZE": "0"}, "SWEEP_BATCH_SIZE"},
		{"draft shorter than adapter", map[string]string{"DRAFT_TIMEOUT": "5s"}, "DRAFT_TIMEOUT must exceed"},
		{"malformed duration", map[string]string{"SWEEP_INTERVAL": "often"}, "SWEEP_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAttributes(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	attrs := map[string]string{}
	for _, kv := range cfg.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "tournevent-fulfillment", attrs["service.name"])
	assert.Equal(t, "true", attrs["ghtk.enabled"])
	assert.Equal(t, "false", attrs["kafka.enabled"])
}
