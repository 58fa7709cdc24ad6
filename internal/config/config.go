package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"80"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Database
	DBDriver        string        `envconfig:"DB_DRIVER" default:"postgres"`
	DatabaseURL     string        `envconfig:"DATABASE_URL" default:"host=localhost user=fulfillment dbname=fulfillment sslmode=disable"`
	DBMaxOpenConns  int           `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	DBMaxIdleConns  int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	DBConnLifetime  time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
	AutoMigrate     bool          `envconfig:"DB_AUTO_MIGRATE" default:"false"`
	DBLogQueries    bool          `envconfig:"DB_LOG_QUERIES" default:"false"`

	// Redis (sweep lease and provider cache invalidation). Empty address disables both.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Kafka. Empty brokers disables the publisher and the request consumer.
	KafkaBrokers      []string `envconfig:"KAFKA_BROKERS"`
	KafkaStatusTopic  string   `envconfig:"KAFKA_STATUS_TOPIC" default:"fulfillment.shipment-status"`
	KafkaRequestTopic string   `envconfig:"KAFKA_REQUEST_TOPIC" default:"fulfillment.shipment-requests"`
	KafkaGroupID      string   `envconfig:"KAFKA_GROUP_ID" default:"fulfillment"`

	// Fulfillment
	AdapterTimeout      time.Duration `envconfig:"ADAPTER_TIMEOUT" default:"15s"`
	SweepInterval       time.Duration `envconfig:"SWEEP_INTERVAL" default:"30s"`
	SweepBatchSize      int           `envconfig:"SWEEP_BATCH_SIZE" default:"100"`
	WebhookMaxAttempts  int           `envconfig:"WEBHOOK_MAX_ATTEMPTS" default:"5"`
	SweepLeaseTTL       time.Duration `envconfig:"SWEEP_LEASE_TTL" default:"2m"`
	DraftTimeout        time.Duration `envconfig:"DRAFT_TIMEOUT" default:"15m"`
	ReaperInterval      time.Duration `envconfig:"REAPER_INTERVAL" default:"5m"`
	HealthCheckInterval time.Duration `envconfig:"HEALTH_CHECK_INTERVAL" default:"5m"`
	ProviderCacheTTL    time.Duration `envconfig:"PROVIDER_CACHE_TTL" default:"1m"`
	RatePolicy          string        `envconfig:"RATE_POLICY" default:"cheapest"`

	// GHTK
	GHTKEnabled       bool   `envconfig:"GHTK_ENABLED" default:"true"`
	GHTKUseMock       bool   `envconfig:"GHTK_USE_MOCK" default:"false"`
	GHTKProductionURL string `envconfig:"GHTK_PRODUCTION_URL" default:"https://services.giaohangtietkiem.vn"`
	GHTKSandboxURL    string `envconfig:"GHTK_SANDBOX_URL" default:"https://services-staging.ghtklab.com"`
	GHTKPartnerCode   string `envconfig:"GHTK_PARTNER_CODE"`

	// GHN
	GHNEnabled       bool   `envconfig:"GHN_ENABLED" default:"true"`
	GHNUseMock       bool   `envconfig:"GHN_USE_MOCK" default:"false"`
	GHNProductionURL string `envconfig:"GHN_PRODUCTION_URL" default:"https://online-gateway.ghn.vn/shiip/public-api"`
	GHNSandboxURL    string `envconfig:"GHN_SANDBOX_URL" default:"https://dev-online-gateway.ghn.vn/shiip/public-api"`

	// Freightcom
	FreightcomEnabled         bool   `envconfig:"FREIGHTCOM_ENABLED" default:"true"`
	FreightcomUseMock         bool   `envconfig:"FREIGHTCOM_USE_MOCK" default:"false"`
	FreightcomProductionURL   string `envconfig:"FREIGHTCOM_PRODUCTION_URL" default:"https://external-api.freightcom.com"`
	FreightcomSandboxURL      string `envconfig:"FREIGHTCOM_SANDBOX_URL" default:"https://customer-external-api.ssd-test.freightcom.com"`
	FreightcomPaymentMethodID int    `envconfig:"FREIGHTCOM_PAYMENT_METHOD_ID"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"true"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://jaeger-collector.claude.svc.cluster.local:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"tournevent-fulfillment"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects bounds and enums the service cannot run with.
func (c *Config) Validate() error {
	var problems []string

	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver))
	}
	switch c.RatePolicy {
	case "cheapest", "fastest":
	default:
		problems = append(problems, fmt.Sprintf("RATE_POLICY must be cheapest or fastest, got %q", c.RatePolicy))
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"ADAPTER_TIMEOUT", c.AdapterTimeout},
		{"SWEEP_INTERVAL", c.SweepInterval},
		{"SWEEP_LEASE_TTL", c.SweepLeaseTTL},
		{"DRAFT_TIMEOUT", c.DraftTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			problems = append(problems, d.name+" must be positive")
		}
	}
	if c.SweepBatchSize <= 0 {
		problems = append(problems, "SWEEP_BATCH_SIZE must be positive")
	}
	if c.WebhookMaxAttempts <= 0 {
		problems = append(problems, "WEBHOOK_MAX_ATTEMPTS must be positive")
	}
	if c.DraftTimeout > 0 && c.DraftTimeout <= c.AdapterTimeout {
		problems = append(problems, "DRAFT_TIMEOUT must exceed ADAPTER_TIMEOUT")
	}
	if c.ProviderCacheTTL < 0 {
		problems = append(problems, "PROVIDER_CACHE_TTL must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// RedisEnabled reports whether a Redis address is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// KafkaEnabled reports whether Kafka brokers are configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.String("db.driver", c.DBDriver),
		attribute.Bool("ghtk.enabled", c.GHTKEnabled),
		attribute.Bool("ghn.enabled", c.GHNEnabled),
		attribute.Bool("freightcom.enabled", c.FreightcomEnabled),
		attribute.Bool("redis.enabled", c.RedisEnabled()),
		attribute.Bool("kafka.enabled", c.KafkaEnabled()),
	}
}
